package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the persistence operations for loan applications, debts and
// wallet transactions.
type Storage interface {
	CreateApplication(ctx context.Context, app *models.LoanApplication) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error)
	UpdateApplication(ctx context.Context, app *models.LoanApplication) error
	ListApplications(ctx context.Context) ([]*models.LoanApplication, error)

	CreateDebt(ctx context.Context, debt *models.DebtObligation) error
	GetDebt(ctx context.Context, id uuid.UUID) (*models.DebtObligation, error)
	UpdateDebt(ctx context.Context, debt *models.DebtObligation) error
	ListDebts(ctx context.Context) ([]*models.DebtObligation, error)

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context) ([]*models.Transaction, error)

	// Atomic runs fn as one unit of work: every write fn makes through the
	// Storage it is handed is committed together, or none is if fn fails.
	// Calling Atomic on that Storage again joins the same unit.
	Atomic(ctx context.Context, fn func(s Storage) error) error

	Close() error
}
