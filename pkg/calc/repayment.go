package calc

import (
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
)

// PlanRepayment simulates paying monthlyPayment against currentAmount month by
// month until the balance is cleared or MaxPlanMonths is reached.
//
// A payment that does not exceed the first month's interest can never reduce
// the principal; that case is reported as PlanOutcomeNonAmortizing without
// simulating. Hitting the month cap is reported as PlanOutcomeExceedsHorizon
// with the unpaid residual in FinalPayment.
func PlanRepayment(currentAmount, annualRatePercent, monthlyPayment decimal.Decimal) (models.RepaymentPlan, error) {
	if !currentAmount.IsPositive() {
		return models.RepaymentPlan{}, apperr.Validation("debt balance must be positive")
	}
	if annualRatePercent.IsNegative() {
		return models.RepaymentPlan{}, apperr.Validation("interest rate cannot be negative")
	}
	if !monthlyPayment.IsPositive() {
		return models.RepaymentPlan{}, apperr.Validation("monthly payment must be positive")
	}

	rate := MonthlyRate(annualRatePercent)
	plan := models.RepaymentPlan{
		MonthlyPayment: monthlyPayment,
		TotalInterest:  decimal.Zero,
		FinalPayment:   decimal.Zero,
	}

	if monthlyPayment.LessThanOrEqual(currentAmount.Mul(rate)) {
		plan.Outcome = models.PlanOutcomeNonAmortizing
		plan.FinalPayment = currentAmount
		return plan, nil
	}

	remaining := currentAmount
	interestPaid := decimal.Zero
	months := 0
	for remaining.IsPositive() && months < MaxPlanMonths {
		interest := remaining.Mul(rate).Round(10)
		principal := decimal.Min(monthlyPayment.Sub(interest), remaining)
		interestPaid = interestPaid.Add(interest)
		remaining = remaining.Sub(principal)
		months++
	}

	plan.Months = months
	plan.TotalInterest = interestPaid.Round(2)
	if remaining.IsPositive() {
		plan.Outcome = models.PlanOutcomeExceedsHorizon
		plan.FinalPayment = remaining.Round(2)
		return plan, nil
	}
	plan.Outcome = models.PlanOutcomePaidOff
	return plan, nil
}

// RequiredPayment estimates the payment that clears currentAmount in months by
// dividing evenly. Interest is ignored, so at a positive rate the estimate is
// lower than a true amortizing payment.
func RequiredPayment(currentAmount decimal.Decimal, months int) (decimal.Decimal, error) {
	if !currentAmount.IsPositive() {
		return decimal.Zero, apperr.Validation("debt balance must be positive")
	}
	if months <= 0 {
		return decimal.Zero, apperr.Validation("target horizon must be a positive number of months")
	}
	return currentAmount.Div(decimal.NewFromInt(int64(months))).Round(2), nil
}

// QuickPayment is a payoff shortcut for a fixed horizon.
type QuickPayment struct {
	Months  int             `json:"months"`
	Payment decimal.Decimal `json:"payment"`
}

// QuickPayments returns RequiredPayment for every QuickPaymentHorizons entry.
func QuickPayments(currentAmount decimal.Decimal) ([]QuickPayment, error) {
	out := make([]QuickPayment, 0, len(QuickPaymentHorizons))
	for _, months := range QuickPaymentHorizons {
		p, err := RequiredPayment(currentAmount, months)
		if err != nil {
			return nil, err
		}
		out = append(out, QuickPayment{Months: months, Payment: p})
	}
	return out, nil
}
