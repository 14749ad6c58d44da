package calc

import (
	"math"

	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
)

// ComputeEMI returns the equated monthly installment that amortizes principal
// over termMonths at annualRatePercent. Interest-bearing installments are
// rounded to whole currency units.
func ComputeEMI(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, apperr.Validation("principal must be positive")
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, apperr.Validation("interest rate cannot be negative")
	}
	if termMonths <= 0 {
		return decimal.Zero, apperr.Validation("term must be a positive number of months")
	}

	if annualRatePercent.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2), nil
	}

	// math.Pow needs float64; the result goes straight back into decimal.
	r := MonthlyRate(annualRatePercent).InexactFloat64()
	power := math.Pow(1+r, float64(termMonths))
	emi := principal.InexactFloat64() * r * power / (power - 1)
	if math.IsNaN(emi) || math.IsInf(emi, 0) {
		return decimal.Zero, apperr.Validation("installment is not computable for these terms")
	}
	return decimal.NewFromFloat(emi).Round(0), nil
}

// Terms computes the full repayment terms, including the processing fee
// charged as a percentage of principal.
func Terms(principal, annualRatePercent decimal.Decimal, termMonths int, feePercent decimal.Decimal) (models.LoanTerms, error) {
	emi, err := ComputeEMI(principal, annualRatePercent, termMonths)
	if err != nil {
		return models.LoanTerms{}, err
	}
	total := emi.Mul(decimal.NewFromInt(int64(termMonths)))
	interest := total.Sub(principal)
	if interest.IsNegative() {
		// cent rounding on zero-rate loans
		interest = decimal.Zero
	}
	return models.LoanTerms{
		Principal:      principal,
		InterestRate:   annualRatePercent,
		TenureMonths:   termMonths,
		MonthlyEMI:     emi,
		TotalRepayment: total,
		TotalInterest:  interest,
		ProcessingFee:  principal.Mul(feePercent).Div(hundred).Round(2),
	}, nil
}
