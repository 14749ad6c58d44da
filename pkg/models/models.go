package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanProduct is a static catalog entry. Rates and fees are percentages.
type LoanProduct struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	MinAmount         decimal.Decimal `json:"minAmount"`
	MaxAmount         decimal.Decimal `json:"maxAmount"`
	InterestRate      decimal.Decimal `json:"interestRate"`
	TenureMonths      []int           `json:"tenureMonths"`
	ProcessingFee     decimal.Decimal `json:"processingFee"`
	RequiredDocuments []string        `json:"requiredDocuments"`
}

// AllowsTenure reports whether months is one of the product's tenure options.
func (p LoanProduct) AllowsTenure(months int) bool {
	for _, t := range p.TenureMonths {
		if t == months {
			return true
		}
	}
	return false
}

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusDisbursed ApplicationStatus = "disbursed"
)

// LoanApplication is the audit record of one loan request. The interest rate
// and repayment terms are frozen at application time.
type LoanApplication struct {
	ID                   uuid.UUID         `json:"id"`
	ProductID            string            `json:"productId"`
	LoanType             string            `json:"loanType"` // product name
	Amount               decimal.Decimal   `json:"amount"`
	Tenure               int               `json:"tenure"` // months
	InterestRate         decimal.Decimal   `json:"interestRate"`
	MonthlyEMI           decimal.Decimal   `json:"monthlyEMI"`
	TotalRepayment       decimal.Decimal   `json:"totalRepayment"`
	ProcessingFee        decimal.Decimal   `json:"processingFee"`
	Status               ApplicationStatus `json:"status"`
	AppliedDate          time.Time         `json:"appliedDate"`
	ApprovedDate         *time.Time        `json:"approvedDate,omitempty"`
	DisbursedDate        *time.Time        `json:"disbursedDate,omitempty"`
	DebtID               *uuid.UUID        `json:"debtId,omitempty"`
	PendingTransactionID uuid.UUID         `json:"pendingTransactionId"`
}

type DebtStatus string

const (
	DebtStatusActive  DebtStatus = "active"
	DebtStatusPaid    DebtStatus = "paid"
	DebtStatusOverdue DebtStatus = "overdue"
)

// DebtObligation is a debt tracked by the debt ledger.
type DebtObligation struct {
	ID             uuid.UUID       `json:"id"`
	Creditor       string          `json:"creditor"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	CurrentAmount  decimal.Decimal `json:"currentAmount"` // never below zero
	InterestRate   decimal.Decimal `json:"interestRate"`
	DueDate        time.Time       `json:"dueDate"`
	Category       string          `json:"category"`
	Status         DebtStatus      `json:"status"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeExpense    TransactionType = "expense"
)

// Inflow reports whether a completed transaction of this type credits the wallet.
func (t TransactionType) Inflow() bool {
	return t == TransactionTypeIncome || t == TransactionTypeDeposit
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeDeposit, TransactionTypeWithdrawal,
		TransactionTypeTransfer, TransactionTypeExpense:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is a wallet ledger entry. Memo entries are hold records that
// never move the balance.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description"`
	Reference   string            `json:"reference,omitempty"`
	Memo        bool              `json:"memo"`
	Timestamp   time.Time         `json:"timestamp"`
}

// TransactionDescriptor is what callers hand the wallet ledger to post.
type TransactionDescriptor struct {
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Reference   string
	Memo        bool
}

// DebtDescriptor is what callers hand the debt ledger to open a debt.
type DebtDescriptor struct {
	Creditor       string          `json:"creditor"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	DueDate        time.Time       `json:"dueDate"`
	Category       string          `json:"category"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
}

// FinancialProfile is the snapshot eligibility is scored from. It is built on
// demand and never stored.
type FinancialProfile struct {
	Balance            decimal.Decimal
	Transactions       []Transaction
	MonthlyObligations decimal.Decimal // sum of active debts' monthly payments
	DeclaredSalary     decimal.Decimal
}

// EligibilityResult is derived from a FinancialProfile and never persisted.
type EligibilityResult struct {
	ProductID            string          `json:"productId,omitempty"`
	EligibilityScore     int             `json:"eligibilityScore"`
	IsEligible           bool            `json:"isEligible"`
	MaxEligibleAmount    decimal.Decimal `json:"maxEligibleAmount"`
	DebtToIncomeRatio    int             `json:"debtToIncomeRatio"`
	AverageMonthlyIncome decimal.Decimal `json:"averageMonthlyIncome"`
	IncomeScore          int             `json:"incomeScore"`
	ReliabilityScore     int             `json:"reliabilityScore"`
	LeverageScore        int             `json:"leverageScore"`
	LiquidityScore       int             `json:"liquidityScore"`
}

// LoanTerms are the repayment terms of a principal at a rate and tenure.
type LoanTerms struct {
	Principal      decimal.Decimal `json:"principal"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	TenureMonths   int             `json:"tenureMonths"`
	MonthlyEMI     decimal.Decimal `json:"monthlyEMI"`
	TotalRepayment decimal.Decimal `json:"totalRepayment"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
	ProcessingFee  decimal.Decimal `json:"processingFee"`
}

type PlanOutcome string

const (
	PlanOutcomePaidOff        PlanOutcome = "paid_off"
	PlanOutcomeExceedsHorizon PlanOutcome = "exceeds_horizon" // residual left at the month cap
	PlanOutcomeNonAmortizing  PlanOutcome = "non_amortizing"  // payment never covers interest
)

// RepaymentPlan is derived and never persisted.
type RepaymentPlan struct {
	Months         int             `json:"months"`
	TotalInterest  decimal.Decimal `json:"totalInterest"`
	FinalPayment   decimal.Decimal `json:"finalPayment"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
	Outcome        PlanOutcome     `json:"outcome"`
}

// Feasible reports whether the plan clears the debt within the horizon.
func (p RepaymentPlan) Feasible() bool {
	return p.Outcome == PlanOutcomePaidOff
}
