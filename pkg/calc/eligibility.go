package calc

import (
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
)

// band maps a value to points: the first threshold the value satisfies wins.
type band struct {
	threshold decimal.Decimal
	points    int
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

var (
	incomeBands = []band{
		{d(50_000), 40},
		{d(30_000), 30},
		{d(20_000), 20},
		{d(15_000), 10},
	}
	completionBands = []band{
		{d(95), 30},
		{d(90), 25},
		{d(80), 20},
		{d(70), 15},
	}
	// lower is better
	debtToIncomeBands = []band{
		{d(30), 20},
		{d(40), 15},
		{d(50), 10},
		{d(60), 5},
	}
	balanceBands = []band{
		{d(100_000), 10},
		{d(50_000), 8},
		{d(25_000), 5},
		{d(10_000), 3},
	}
)

func atLeast(v decimal.Decimal, bands []band) int {
	for _, b := range bands {
		if v.GreaterThanOrEqual(b.threshold) {
			return b.points
		}
	}
	return 0
}

func atMost(v decimal.Decimal, bands []band) int {
	for _, b := range bands {
		if v.LessThanOrEqual(b.threshold) {
			return b.points
		}
	}
	return 0
}

// AverageMonthlyIncome estimates monthly income from wallet history, treating
// every TransactionsPerMonth transactions as one month. Without any history
// the declared salary is used instead.
func AverageMonthlyIncome(profile models.FinancialProfile) decimal.Decimal {
	if len(profile.Transactions) == 0 {
		return profile.DeclaredSalary
	}

	total := decimal.Zero
	for _, tx := range profile.Transactions {
		if tx.Type == models.TransactionTypeIncome && tx.Status == models.TransactionStatusCompleted {
			total = total.Add(tx.Amount)
		}
	}

	months := decimal.NewFromInt(int64(len(profile.Transactions))).Div(d(TransactionsPerMonth))
	if months.LessThan(decimal.NewFromInt(1)) {
		months = decimal.NewFromInt(1)
	}
	return total.Div(months)
}

// CompletionRate is the percentage of transactions that completed.
func CompletionRate(transactions []models.Transaction) decimal.Decimal {
	if len(transactions) == 0 {
		return decimal.Zero
	}
	completed := 0
	for _, tx := range transactions {
		if tx.Status == models.TransactionStatusCompleted {
			completed++
		}
	}
	return d(int64(completed)).Mul(hundred).Div(d(int64(len(transactions))))
}

// DebtToIncome is existing monthly obligations as a percentage of income.
func DebtToIncome(monthlyObligations, monthlyIncome decimal.Decimal) decimal.Decimal {
	if !monthlyIncome.IsPositive() {
		return decimal.Zero
	}
	return monthlyObligations.Mul(hundred).Div(monthlyIncome)
}

// ScoreEligibility scores a profile on four additive bands: income capacity,
// payment reliability, existing leverage and liquidity. The result is always
// computed fresh from the snapshot it is given.
func ScoreEligibility(profile models.FinancialProfile) models.EligibilityResult {
	income := AverageMonthlyIncome(profile)
	dti := DebtToIncome(profile.MonthlyObligations, income)

	res := models.EligibilityResult{
		AverageMonthlyIncome: income.Round(2),
		DebtToIncomeRatio:    int(dti.Round(0).IntPart()),
		IncomeScore:          atLeast(income, incomeBands),
		ReliabilityScore:     atLeast(CompletionRate(profile.Transactions), completionBands),
		LeverageScore:        atMost(dti, debtToIncomeBands),
		LiquidityScore:       atLeast(profile.Balance, balanceBands),
		MaxEligibleAmount:    decimal.Zero,
	}
	res.EligibilityScore = res.IncomeScore + res.ReliabilityScore + res.LeverageScore + res.LiquidityScore
	res.IsEligible = res.EligibilityScore >= EligibilityThreshold

	if res.IsEligible {
		res.MaxEligibleAmount = decimal.Min(income.Mul(d(IncomeMultiplier)), MaxEligibleCap).Round(2)
	}
	return res
}
