package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/models"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  dbtx
	tx *sql.Tx
}

// NewSQLiteStore opens (or creates) the database and initializes the schema.
func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	s, err := prepareSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database connection established and schema initialized",
		zap.String("op", "store.NewSQLiteStore"),
		zap.String("dsn", dataSourceName),
	)
	return s, nil
}

// prepareSQLite configures a freshly opened handle and creates the schema.
// The caller owns db and closes it on error.
func prepareSQLite(db *sql.DB) (*SQLiteStore, error) {
	// A single connection keeps writers serialized and :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables if they don't already exist. Decimal fields
// are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		memo INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		creditor TEXT NOT NULL,
		original_amount TEXT NOT NULL,
		current_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		monthly_payment TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_applications (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		loan_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		tenure INTEGER NOT NULL,
		interest_rate TEXT NOT NULL,
		monthly_emi TEXT NOT NULL,
		total_repayment TEXT NOT NULL,
		processing_fee TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		applied_date DATETIME NOT NULL,
		approved_date DATETIME,
		disbursed_date DATETIME,
		debt_id TEXT,
		pending_transaction_id TEXT NOT NULL,
		FOREIGN KEY(debt_id) REFERENCES debts(id),
		FOREIGN KEY(pending_transaction_id) REFERENCES wallet_transactions(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Atomic runs fn inside a database transaction.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(Storage) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func parseNullID(v sql.NullString) (*uuid.UUID, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

const applicationColumns = `id, product_id, loan_type, amount, tenure, interest_rate, monthly_emi, total_repayment, processing_fee, status, applied_date, approved_date, disbursed_date, debt_id, pending_transaction_id`

func scanApplication(row scanner) (*models.LoanApplication, error) {
	var app models.LoanApplication
	var idStr, pendingStr string
	var approved, disbursed sql.NullTime
	var debtID sql.NullString

	if err := row.Scan(&idStr, &app.ProductID, &app.LoanType, &app.Amount, &app.Tenure, &app.InterestRate,
		&app.MonthlyEMI, &app.TotalRepayment, &app.ProcessingFee, &app.Status, &app.AppliedDate,
		&approved, &disbursed, &debtID, &pendingStr); err != nil {
		return nil, err
	}

	var err error
	if app.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("invalid application id %q: %w", idStr, err)
	}
	if app.PendingTransactionID, err = uuid.Parse(pendingStr); err != nil {
		return nil, fmt.Errorf("invalid pending transaction id %q: %w", pendingStr, err)
	}
	if app.DebtID, err = parseNullID(debtID); err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", debtID.String, err)
	}
	app.ApprovedDate = nullTime(approved)
	app.DisbursedDate = nullTime(disbursed)
	return &app, nil
}

func idOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// CreateApplication inserts a new loan application.
func (s *SQLiteStore) CreateApplication(ctx context.Context, app *models.LoanApplication) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO loan_applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID.String(), app.ProductID, app.LoanType, app.Amount, app.Tenure, app.InterestRate, app.MonthlyEMI,
		app.TotalRepayment, app.ProcessingFee, app.Status, app.AppliedDate, app.ApprovedDate, app.DisbursedDate,
		idOrNil(app.DebtID), app.PendingTransactionID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create loan application: %w", err)
	}
	return nil
}

// GetApplication retrieves a loan application by its ID.
func (s *SQLiteStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM loan_applications WHERE id = ?`, id.String())
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan application: %w", err)
	}
	return app, nil
}

// UpdateApplication writes the mutable lifecycle fields of an application.
func (s *SQLiteStore) UpdateApplication(ctx context.Context, app *models.LoanApplication) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE loan_applications SET status = ?, approved_date = ?, disbursed_date = ?, debt_id = ? WHERE id = ?`,
		app.Status, app.ApprovedDate, app.DisbursedDate, idOrNil(app.DebtID), app.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan application: %w", err)
	}
	return checkAffected(result)
}

// ListApplications returns every application, newest first.
func (s *SQLiteStore) ListApplications(ctx context.Context) ([]*models.LoanApplication, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+applicationColumns+` FROM loan_applications ORDER BY applied_date DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan application row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return apps, nil
}

const debtColumns = `id, creditor, original_amount, current_amount, interest_rate, due_date, category, status, monthly_payment, created_at, updated_at`

func scanDebt(row scanner) (*models.DebtObligation, error) {
	var debt models.DebtObligation
	var idStr string
	if err := row.Scan(&idStr, &debt.Creditor, &debt.OriginalAmount, &debt.CurrentAmount, &debt.InterestRate,
		&debt.DueDate, &debt.Category, &debt.Status, &debt.MonthlyPayment, &debt.CreatedAt, &debt.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid debt id %q: %w", idStr, err)
	}
	debt.ID = id
	return &debt, nil
}

// CreateDebt inserts a new debt obligation.
func (s *SQLiteStore) CreateDebt(ctx context.Context, debt *models.DebtObligation) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO debts (`+debtColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		debt.ID.String(), debt.Creditor, debt.OriginalAmount, debt.CurrentAmount, debt.InterestRate, debt.DueDate,
		debt.Category, debt.Status, debt.MonthlyPayment, debt.CreatedAt, debt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create debt: %w", err)
	}
	return nil
}

// GetDebt retrieves a debt by its ID.
func (s *SQLiteStore) GetDebt(ctx context.Context, id uuid.UUID) (*models.DebtObligation, error) {
	debt, err := scanDebt(s.q.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get debt: %w", err)
	}
	return debt, nil
}

// UpdateDebt writes the mutable fields of a debt.
func (s *SQLiteStore) UpdateDebt(ctx context.Context, debt *models.DebtObligation) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE debts SET current_amount = ?, status = ?, monthly_payment = ?, updated_at = ? WHERE id = ?`,
		debt.CurrentAmount, debt.Status, debt.MonthlyPayment, debt.UpdatedAt, debt.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	return checkAffected(result)
}

// ListDebts returns every debt in creation order.
func (s *SQLiteStore) ListDebts(ctx context.Context) ([]*models.DebtObligation, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	var debts []*models.DebtObligation
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt row: %w", err)
		}
		debts = append(debts, debt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return debts, nil
}

const transactionColumns = `id, type, amount, status, description, reference, memo, timestamp`

func scanTransaction(row scanner) (*models.Transaction, error) {
	var tx models.Transaction
	var idStr string
	if err := row.Scan(&idStr, &tx.Type, &tx.Amount, &tx.Status, &tx.Description, &tx.Reference, &tx.Memo, &tx.Timestamp); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", idStr, err)
	}
	tx.ID = id
	return &tx, nil
}

// CreateTransaction inserts a new wallet transaction.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO wallet_transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.Type, tx.Amount, tx.Status, tx.Description, tx.Reference, tx.Memo, tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a wallet transaction by its ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := scanTransaction(s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction writes a transaction's status.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	result, err := s.q.ExecContext(ctx, `UPDATE wallet_transactions SET status = ? WHERE id = ?`, tx.Status, tx.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return checkAffected(result)
}

// ListTransactions returns every wallet transaction, oldest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions ORDER BY timestamp ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return txs, nil
}

// Close closes the database connection. It is a no-op inside Atomic.
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}
