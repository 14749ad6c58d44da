package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/mcclellann/fredWallet/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Balances summarizes the wallet. Available excludes funds held by pending
// outflows.
type Balances struct {
	Current   decimal.Decimal `json:"currentBalance"`
	Available decimal.Decimal `json:"availableBalance"`
}

// Wallet is the wallet ledger: it owns the transaction list and derives the
// balance from it.
type Wallet struct {
	storage        store.Storage
	openingBalance decimal.Decimal
	logger         *zap.Logger
}

// NewWallet creates a Wallet over the given Storage.
func NewWallet(s store.Storage, openingBalance decimal.Decimal, logger *zap.Logger) *Wallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wallet{storage: s, openingBalance: openingBalance, logger: logger}
}

// With returns a copy of the wallet bound to s, typically a unit of work.
func (w *Wallet) With(s store.Storage) *Wallet {
	c := *w
	c.storage = s
	return &c
}

func validateDescriptor(desc models.TransactionDescriptor) error {
	if !desc.Type.Valid() {
		return apperr.Validation("unknown transaction type %q", desc.Type)
	}
	if !desc.Amount.IsPositive() {
		return apperr.Validation("transaction amount must be positive")
	}
	return nil
}

func (w *Wallet) post(ctx context.Context, desc models.TransactionDescriptor, status models.TransactionStatus) (uuid.UUID, error) {
	if err := validateDescriptor(desc); err != nil {
		return uuid.Nil, err
	}

	tx := &models.Transaction{
		ID:          uuid.New(),
		Type:        desc.Type,
		Amount:      desc.Amount,
		Status:      status,
		Description: desc.Description,
		Reference:   desc.Reference,
		Memo:        desc.Memo,
		Timestamp:   time.Now(),
	}
	if err := w.storage.CreateTransaction(ctx, tx); err != nil {
		return uuid.Nil, apperr.Collaborator(err, "failed to record wallet transaction")
	}

	w.logger.Debug("posted wallet transaction",
		zap.String("op", "ledger.Wallet.post"),
		zap.String("id", tx.ID.String()),
		zap.String("type", string(tx.Type)),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.StringFixed(2)),
	)
	return tx.ID, nil
}

// PostPendingTransaction records a pending transaction. It does not move the
// current balance.
func (w *Wallet) PostPendingTransaction(ctx context.Context, desc models.TransactionDescriptor) (uuid.UUID, error) {
	return w.post(ctx, desc, models.TransactionStatusPending)
}

// PostTransaction records a completed transaction. Outflows may not exceed
// the available balance.
func (w *Wallet) PostTransaction(ctx context.Context, desc models.TransactionDescriptor) (uuid.UUID, error) {
	if err := validateDescriptor(desc); err != nil {
		return uuid.Nil, err
	}
	if !desc.Type.Inflow() && !desc.Memo {
		b, err := w.Balances(ctx)
		if err != nil {
			return uuid.Nil, err
		}
		if desc.Amount.GreaterThan(b.Available) {
			return uuid.Nil, apperr.Validation("insufficient funds: available %s, requested %s",
				b.Available.StringFixed(2), desc.Amount.StringFixed(2))
		}
	}
	return w.post(ctx, desc, models.TransactionStatusCompleted)
}

func (w *Wallet) settle(ctx context.Context, id uuid.UUID, to models.TransactionStatus) error {
	tx, err := w.storage.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("transaction %s not found", id)
		}
		return apperr.Collaborator(err, "failed to load wallet transaction")
	}
	if tx.Status != models.TransactionStatusPending {
		return apperr.Conflict("transaction %s is %s, not pending", id, tx.Status)
	}

	tx.Status = to
	if err := w.storage.UpdateTransaction(ctx, tx); err != nil {
		return apperr.Collaborator(err, "failed to update wallet transaction")
	}
	return nil
}

// ApproveTransaction completes a pending transaction.
func (w *Wallet) ApproveTransaction(ctx context.Context, id uuid.UUID) error {
	return w.settle(ctx, id, models.TransactionStatusCompleted)
}

// FailTransaction marks a pending transaction failed, releasing any hold.
func (w *Wallet) FailTransaction(ctx context.Context, id uuid.UUID) error {
	return w.settle(ctx, id, models.TransactionStatusFailed)
}

// Transactions returns the wallet history, oldest first.
func (w *Wallet) Transactions(ctx context.Context) ([]models.Transaction, error) {
	txs, err := w.storage.ListTransactions(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "failed to list wallet transactions")
	}
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, *tx)
	}
	return out, nil
}

// Balances derives the current and available balance from the history.
func (w *Wallet) Balances(ctx context.Context) (Balances, error) {
	txs, err := w.Transactions(ctx)
	if err != nil {
		return Balances{}, err
	}

	current := w.openingBalance
	held := decimal.Zero
	for _, tx := range txs {
		if tx.Memo {
			continue
		}
		switch tx.Status {
		case models.TransactionStatusCompleted:
			if tx.Type.Inflow() {
				current = current.Add(tx.Amount)
			} else {
				current = current.Sub(tx.Amount)
			}
		case models.TransactionStatusPending:
			if !tx.Type.Inflow() {
				held = held.Add(tx.Amount)
			}
		}
	}
	return Balances{Current: current, Available: current.Sub(held)}, nil
}

// CurrentBalance is the opening balance plus every completed movement.
func (w *Wallet) CurrentBalance(ctx context.Context) (decimal.Decimal, error) {
	b, err := w.Balances(ctx)
	return b.Current, err
}

// AvailableBalance is the current balance less pending outflows.
func (w *Wallet) AvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	b, err := w.Balances(ctx)
	return b.Available, err
}

// Deposit credits the wallet.
func (w *Wallet) Deposit(ctx context.Context, amount decimal.Decimal, description string) (uuid.UUID, error) {
	if description == "" {
		description = "Deposit"
	}
	return w.PostTransaction(ctx, models.TransactionDescriptor{
		Type:        models.TransactionTypeDeposit,
		Amount:      amount,
		Description: description,
	})
}

// Withdraw debits the wallet.
func (w *Wallet) Withdraw(ctx context.Context, amount decimal.Decimal, description string) (uuid.UUID, error) {
	if description == "" {
		description = "Withdrawal"
	}
	id, err := w.PostTransaction(ctx, models.TransactionDescriptor{
		Type:        models.TransactionTypeWithdrawal,
		Amount:      amount,
		Description: description,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("withdraw: %w", err)
	}
	return id, nil
}
