package calc

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
)

// history builds n transactions: income entries first, then deposits, with
// the last failed entries marked failed.
func history(n, incomes int, incomeAmount int64, failed int) []models.Transaction {
	txs := make([]models.Transaction, 0, n)
	for i := 0; i < n; i++ {
		tx := models.Transaction{
			Type:      models.TransactionTypeDeposit,
			Amount:    decimal.NewFromInt(100),
			Status:    models.TransactionStatusCompleted,
			Timestamp: time.Now(),
		}
		if i < incomes {
			tx.Type = models.TransactionTypeIncome
			tx.Amount = decimal.NewFromInt(incomeAmount)
		}
		if i >= n-failed {
			tx.Status = models.TransactionStatusFailed
		}
		txs = append(txs, tx)
	}
	return txs
}

func TestScoreEligibility(t *testing.T) {
	tests := []struct {
		name        string
		profile     models.FinancialProfile
		score       int
		eligible    bool
		maxEligible int64
		dti         int
	}{
		{
			name: "declared salary fallback",
			profile: models.FinancialProfile{
				Balance:        decimal.NewFromInt(120000),
				DeclaredSalary: decimal.NewFromInt(60000),
			},
			score:       40 + 0 + 20 + 10,
			eligible:    true,
			maxEligible: 600000,
		},
		{
			name:    "empty profile",
			profile: models.FinancialProfile{},
			score:   20,
		},
		{
			name: "strong history",
			profile: models.FinancialProfile{
				Balance:            decimal.NewFromInt(30000),
				Transactions:       history(30, 3, 20000, 1),
				MonthlyObligations: decimal.NewFromInt(15000),
			},
			score:       40 + 30 + 20 + 5,
			eligible:    true,
			maxEligible: 600000,
			dti:         25,
		},
		{
			name: "two months of history halves income",
			profile: models.FinancialProfile{
				Balance:      decimal.NewFromInt(50000),
				Transactions: history(60, 3, 20000, 6),
			},
			score:       30 + 25 + 20 + 8,
			eligible:    true,
			maxEligible: 300000,
		},
		{
			name: "over-leveraged",
			profile: models.FinancialProfile{
				Balance:            decimal.NewFromInt(5000),
				Transactions:       history(10, 2, 10000, 3),
				MonthlyObligations: decimal.NewFromInt(14000),
			},
			score: 20 + 15 + 0 + 0,
			dti:   70,
		},
		{
			name: "history without income ignores declared salary",
			profile: models.FinancialProfile{
				Balance:        decimal.NewFromInt(60000),
				Transactions:   history(5, 0, 0, 0),
				DeclaredSalary: decimal.NewFromInt(80000),
			},
			score: 0 + 30 + 20 + 8,
		},
		{
			name: "cap on maximum principal",
			profile: models.FinancialProfile{
				Balance:        decimal.NewFromInt(200000),
				DeclaredSalary: decimal.NewFromInt(900000),
			},
			score:       70,
			eligible:    true,
			maxEligible: 5000000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ScoreEligibility(tt.profile)
			if res.EligibilityScore != tt.score {
				t.Errorf("Expected score %d, got %d (%+v)", tt.score, res.EligibilityScore, res)
			}
			if res.IsEligible != tt.eligible {
				t.Errorf("Expected eligible %v, got %v", tt.eligible, res.IsEligible)
			}
			if !res.MaxEligibleAmount.Equal(decimal.NewFromInt(tt.maxEligible)) {
				t.Errorf("Expected max eligible %d, got %s", tt.maxEligible, res.MaxEligibleAmount)
			}
			if res.DebtToIncomeRatio != tt.dti {
				t.Errorf("Expected debt-to-income %d, got %d", tt.dti, res.DebtToIncomeRatio)
			}
		})
	}
}

func TestScoreEligibilityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(90)
		incomes := 0
		if n > 0 {
			incomes = rng.Intn(n + 1)
		}
		failed := 0
		if n > 0 {
			failed = rng.Intn(n + 1)
		}
		profile := models.FinancialProfile{
			Balance:            decimal.NewFromInt(rng.Int63n(300000)),
			Transactions:       history(n, incomes, rng.Int63n(80000)+1, failed),
			MonthlyObligations: decimal.NewFromInt(rng.Int63n(50000)),
			DeclaredSalary:     decimal.NewFromInt(rng.Int63n(100000)),
		}

		res := ScoreEligibility(profile)
		if res.EligibilityScore < 0 || res.EligibilityScore > 100 {
			t.Fatalf("Score out of range: %d", res.EligibilityScore)
		}
		if res.IsEligible != (res.EligibilityScore >= EligibilityThreshold) {
			t.Fatalf("Eligibility %v does not match score %d", res.IsEligible, res.EligibilityScore)
		}
		if !res.IsEligible && !res.MaxEligibleAmount.IsZero() {
			t.Fatalf("Ineligible profile has max amount %s", res.MaxEligibleAmount)
		}
		if res.MaxEligibleAmount.GreaterThan(MaxEligibleCap) {
			t.Fatalf("Max amount %s exceeds cap", res.MaxEligibleAmount)
		}
	}
}

func TestCompletionRate(t *testing.T) {
	txs := history(4, 0, 0, 1)
	txs[0].Status = models.TransactionStatusPending
	rate := CompletionRate(txs)
	if !rate.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected completion rate 50, got %s", rate)
	}
	if !CompletionRate(nil).IsZero() {
		t.Error("Expected zero completion rate without history")
	}
}
