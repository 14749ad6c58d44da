package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/metrics"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/mcclellann/fredWallet/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultDebtCategory = "other"

// Debts is the debt ledger. Payments are posted to the wallet as expenses in
// the same unit of work that reduces the debt.
type Debts struct {
	storage store.Storage
	wallet  *Wallet
	logger  *zap.Logger
}

// NewDebts creates a debt ledger over s that posts payments through wallet.
func NewDebts(s store.Storage, wallet *Wallet, logger *zap.Logger) *Debts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debts{storage: s, wallet: wallet, logger: logger}
}

// With returns a copy of the ledger, and its wallet, bound to s.
func (d *Debts) With(s store.Storage) *Debts {
	c := *d
	c.storage = s
	c.wallet = d.wallet.With(s)
	return &c
}

func validateDebt(desc models.DebtDescriptor) error {
	if strings.TrimSpace(desc.Creditor) == "" {
		return apperr.Validation("creditor is required")
	}
	if !desc.OriginalAmount.IsPositive() {
		return apperr.Validation("original amount must be positive")
	}
	if desc.InterestRate.IsNegative() {
		return apperr.Validation("interest rate cannot be negative")
	}
	if desc.MonthlyPayment.IsNegative() {
		return apperr.Validation("monthly payment cannot be negative")
	}
	return nil
}

func (d *Debts) open(ctx context.Context, desc models.DebtDescriptor) (*models.DebtObligation, error) {
	if err := validateDebt(desc); err != nil {
		return nil, err
	}
	if desc.Category == "" {
		desc.Category = defaultDebtCategory
	}

	now := time.Now()
	debt := &models.DebtObligation{
		ID:             uuid.New(),
		Creditor:       desc.Creditor,
		OriginalAmount: desc.OriginalAmount,
		CurrentAmount:  desc.OriginalAmount,
		InterestRate:   desc.InterestRate,
		DueDate:        desc.DueDate,
		Category:       desc.Category,
		Status:         models.DebtStatusActive,
		MonthlyPayment: desc.MonthlyPayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.storage.CreateDebt(ctx, debt); err != nil {
		return nil, apperr.Collaborator(err, "failed to store debt")
	}

	d.logger.Info("opened debt",
		zap.String("op", "ledger.Debts.open"),
		zap.String("id", debt.ID.String()),
		zap.String("creditor", debt.Creditor),
		zap.String("amount", debt.OriginalAmount.StringFixed(2)),
	)
	return debt, nil
}

// CreateDebt opens a debt and returns its id.
func (d *Debts) CreateDebt(ctx context.Context, desc models.DebtDescriptor) (uuid.UUID, error) {
	debt, err := d.open(ctx, desc)
	if err != nil {
		return uuid.Nil, err
	}
	return debt.ID, nil
}

// AddDebt records an obligation entered by the user.
func (d *Debts) AddDebt(ctx context.Context, desc models.DebtDescriptor) (*models.DebtObligation, error) {
	return d.open(ctx, desc)
}

// Get returns one debt.
func (d *Debts) Get(ctx context.Context, id uuid.UUID) (*models.DebtObligation, error) {
	debt, err := d.storage.GetDebt(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("debt %s not found", id)
		}
		return nil, apperr.Collaborator(err, "failed to load debt")
	}
	return debt, nil
}

// List returns every debt in creation order.
func (d *Debts) List(ctx context.Context) ([]*models.DebtObligation, error) {
	debts, err := d.storage.ListDebts(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "failed to list debts")
	}
	return debts, nil
}

// ApplyPayment reduces a debt by amount, flooring it at zero, and posts the
// amount actually applied as a wallet expense. A debt paid down to zero is
// marked paid.
func (d *Debts) ApplyPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (debt *models.DebtObligation, err error) {
	defer func() {
		metrics.DebtPayments.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	if !amount.IsPositive() {
		return nil, apperr.Validation("payment amount must be positive")
	}

	err = d.storage.Atomic(ctx, func(tx store.Storage) error {
		unit := d.With(tx)

		current, err := unit.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == models.DebtStatusPaid {
			return apperr.Conflict("debt %s is already paid", id)
		}

		applied := decimal.Min(amount, current.CurrentAmount)
		if _, err := unit.wallet.PostTransaction(ctx, models.TransactionDescriptor{
			Type:        models.TransactionTypeExpense,
			Amount:      applied,
			Description: fmt.Sprintf("Debt payment: %s", current.Creditor),
			Reference:   current.ID.String(),
		}); err != nil {
			return err
		}

		current.CurrentAmount = current.CurrentAmount.Sub(applied)
		if !current.CurrentAmount.IsPositive() {
			current.CurrentAmount = decimal.Zero
			current.Status = models.DebtStatusPaid
		}
		current.UpdatedAt = time.Now()

		if err := tx.UpdateDebt(ctx, current); err != nil {
			return apperr.Collaborator(err, "failed to update debt balance")
		}
		debt = current
		return nil
	})
	if err != nil {
		d.logger.Debug("debt payment failed",
			zap.String("op", "ledger.Debts.ApplyPayment"),
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	d.logger.Info("applied debt payment",
		zap.String("op", "ledger.Debts.ApplyPayment"),
		zap.String("id", id.String()),
		zap.String("remaining", debt.CurrentAmount.StringFixed(2)),
		zap.String("status", string(debt.Status)),
	)
	return debt, nil
}

// SetMonthlyPayment adopts payment as the debt's scheduled monthly payment.
func (d *Debts) SetMonthlyPayment(ctx context.Context, id uuid.UUID, payment decimal.Decimal) (*models.DebtObligation, error) {
	if !payment.IsPositive() {
		return nil, apperr.Validation("monthly payment must be positive")
	}

	debt, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if debt.Status == models.DebtStatusPaid {
		return nil, apperr.Conflict("debt %s is already paid", id)
	}

	debt.MonthlyPayment = payment
	debt.UpdatedAt = time.Now()
	if err := d.storage.UpdateDebt(ctx, debt); err != nil {
		return nil, apperr.Collaborator(err, "failed to update monthly payment")
	}
	return debt, nil
}

// RefreshOverdue marks active debts past their due date as overdue and
// returns how many debts changed status.
func (d *Debts) RefreshOverdue(ctx context.Context, now time.Time) (int, error) {
	changed := 0
	err := d.storage.Atomic(ctx, func(tx store.Storage) error {
		debts, err := tx.ListDebts(ctx)
		if err != nil {
			return apperr.Collaborator(err, "failed to list debts")
		}

		for _, debt := range debts {
			next := debt.Status
			switch {
			case debt.Status != models.DebtStatusPaid && !debt.CurrentAmount.IsPositive():
				next = models.DebtStatusPaid
			case debt.Status == models.DebtStatusActive && !debt.DueDate.IsZero() && now.After(debt.DueDate):
				next = models.DebtStatusOverdue
			}
			if next == debt.Status {
				continue
			}

			debt.Status = next
			debt.UpdatedAt = now
			if err := tx.UpdateDebt(ctx, debt); err != nil {
				return apperr.Collaborator(err, "failed to update debt status")
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if changed > 0 {
		d.logger.Info("refreshed debt statuses",
			zap.String("op", "ledger.Debts.RefreshOverdue"),
			zap.Int("changed", changed),
		)
	}
	return changed, nil
}

// MonthlyObligations sums the monthly payment of every debt not yet paid.
func (d *Debts) MonthlyObligations(ctx context.Context) (decimal.Decimal, error) {
	debts, err := d.List(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, debt := range debts {
		if debt.Status != models.DebtStatusPaid {
			total = total.Add(debt.MonthlyPayment)
		}
	}
	return total, nil
}
