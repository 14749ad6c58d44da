// Package calc holds the pure financial calculators: installment terms,
// eligibility scoring and debt repayment planning.
package calc

import "github.com/shopspring/decimal"

const (
	// MonthsPerYear is the number of months in a year.
	MonthsPerYear = 12

	// MaxPlanMonths caps repayment simulations at ten years.
	MaxPlanMonths = 120

	// EligibilityThreshold is the minimum score for a loan to be granted.
	EligibilityThreshold = 60

	// TransactionsPerMonth approximates a month of wallet history by count.
	TransactionsPerMonth = 30

	// IncomeMultiplier scales average monthly income into the maximum principal.
	IncomeMultiplier = 10
)

var (
	hundred          = decimal.NewFromInt(100)
	monthlyRateScale = decimal.NewFromInt(100 * MonthsPerYear)

	// MaxEligibleCap bounds the maximum principal regardless of income.
	MaxEligibleCap = decimal.NewFromInt(5_000_000)

	// QuickPaymentHorizons are the payoff horizons offered as shortcuts.
	QuickPaymentHorizons = []int{12, 24, 36, 60}
)

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(monthlyRateScale)
}
