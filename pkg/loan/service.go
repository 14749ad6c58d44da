// Package loan runs the loan application lifecycle: quoting, eligibility,
// and the pending, approved, rejected and disbursed transitions.
package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/calc"
	"github.com/mcclellann/fredWallet/pkg/catalog"
	"github.com/mcclellann/fredWallet/pkg/ledger"
	"github.com/mcclellann/fredWallet/pkg/metrics"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/mcclellann/fredWallet/pkg/notify"
	"github.com/mcclellann/fredWallet/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	daysPerTenureMonth = 30
	debtCategory       = "loan"
)

// DebtLedger is the part of the debt ledger the service writes to.
type DebtLedger interface {
	CreateDebt(ctx context.Context, desc models.DebtDescriptor) (uuid.UUID, error)
	MonthlyObligations(ctx context.Context) (decimal.Decimal, error)
}

// ApplyRequest is a loan request as submitted by the applicant.
type ApplyRequest struct {
	ProductID string          `json:"productId"`
	Amount    decimal.Decimal `json:"amount"`
	Tenure    int             `json:"tenure"`
}

// Service owns loan applications. Every transition runs in one unit of work
// together with its wallet and debt ledger postings.
type Service struct {
	catalog        *catalog.Catalog
	storage        store.Storage
	wallet         *ledger.Wallet
	debts          func(store.Storage) DebtLedger
	notifier       notify.Notifier
	logger         *zap.Logger
	now            func() time.Time
	declaredSalary decimal.Decimal
}

type Option func(*Service)

// WithNotifier sets where lifecycle events are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDeclaredSalary sets the income signal used when the wallet has no
// history.
func WithDeclaredSalary(salary decimal.Decimal) Option {
	return func(s *Service) { s.declaredSalary = salary }
}

// WithDebtLedger replaces how the debt ledger is bound to a unit of work.
func WithDebtLedger(bind func(store.Storage) DebtLedger) Option {
	return func(s *Service) { s.debts = bind }
}

// NewService creates a Service. wallet and debts are rebound to the unit of
// work of each transition.
func NewService(cat *catalog.Catalog, s store.Storage, wallet *ledger.Wallet, debts *ledger.Debts, opts ...Option) *Service {
	svc := &Service{
		catalog:  cat,
		storage:  s,
		wallet:   wallet,
		debts:    func(tx store.Storage) DebtLedger { return debts.With(tx) },
		notifier: notify.NewDispatcher(nil),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Products lists the catalog.
func (s *Service) Products() []models.LoanProduct {
	return s.catalog.Products()
}

// Product returns one catalog entry.
func (s *Service) Product(id string) (models.LoanProduct, error) {
	p, ok := s.catalog.Product(id)
	if !ok {
		return models.LoanProduct{}, apperr.NotFound("loan product %q not found", id)
	}
	return p, nil
}

func checkBounds(p models.LoanProduct, amount decimal.Decimal, tenure int) error {
	if !p.AllowsTenure(tenure) {
		return apperr.Validation("tenure of %d months is not offered for %s", tenure, p.Name)
	}
	if amount.LessThan(p.MinAmount) {
		return apperr.Validation("amount %s is below the %s minimum of %s",
			amount.StringFixed(2), p.Name, p.MinAmount.StringFixed(2))
	}
	if amount.GreaterThan(p.MaxAmount) {
		return apperr.Validation("amount %s is above the %s maximum of %s",
			amount.StringFixed(2), p.Name, p.MaxAmount.StringFixed(2))
	}
	return nil
}

// Quote computes the repayment terms of a product without creating anything.
func (s *Service) Quote(productID string, amount decimal.Decimal, tenure int) (models.LoanTerms, error) {
	p, err := s.Product(productID)
	if err != nil {
		return models.LoanTerms{}, err
	}
	if err := checkBounds(p, amount, tenure); err != nil {
		return models.LoanTerms{}, err
	}
	return calc.Terms(amount, p.InterestRate, tenure, p.ProcessingFee)
}

// Profile builds a fresh financial snapshot from the ledgers.
func (s *Service) Profile(ctx context.Context) (models.FinancialProfile, error) {
	balances, err := s.wallet.Balances(ctx)
	if err != nil {
		return models.FinancialProfile{}, err
	}
	txs, err := s.wallet.Transactions(ctx)
	if err != nil {
		return models.FinancialProfile{}, err
	}
	obligations, err := s.debts(s.storage).MonthlyObligations(ctx)
	if err != nil {
		return models.FinancialProfile{}, err
	}
	return models.FinancialProfile{
		Balance:            balances.Current,
		Transactions:       txs,
		MonthlyObligations: obligations,
		DeclaredSalary:     s.declaredSalary,
	}, nil
}

// Eligibility scores the current profile for one product.
func (s *Service) Eligibility(ctx context.Context, productID string) (models.EligibilityResult, error) {
	if _, err := s.Product(productID); err != nil {
		return models.EligibilityResult{}, err
	}
	profile, err := s.Profile(ctx)
	if err != nil {
		return models.EligibilityResult{}, err
	}
	result := calc.ScoreEligibility(profile)
	result.ProductID = productID
	return result, nil
}

// EligibilityAll scores the current profile once for every product.
func (s *Service) EligibilityAll(ctx context.Context) ([]models.EligibilityResult, error) {
	profile, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}
	base := calc.ScoreEligibility(profile)

	products := s.catalog.Products()
	out := make([]models.EligibilityResult, 0, len(products))
	for _, p := range products {
		r := base
		r.ProductID = p.ID
		out = append(out, r)
	}
	return out, nil
}

// Apply validates the request against the product and a fresh eligibility
// score, then records a pending application and its wallet hold.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (app *models.LoanApplication, err error) {
	defer s.record("apply", &err)

	p, err := s.Product(req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := checkBounds(p, req.Amount, req.Tenure); err != nil {
		return nil, err
	}

	eligibility, err := s.Eligibility(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !eligibility.IsEligible {
		return nil, apperr.Validation("not eligible for %s: score %d is below %d",
			p.Name, eligibility.EligibilityScore, calc.EligibilityThreshold)
	}
	if req.Amount.GreaterThan(eligibility.MaxEligibleAmount) {
		return nil, apperr.Validation("amount %s exceeds the maximum eligible amount of %s",
			req.Amount.StringFixed(2), eligibility.MaxEligibleAmount.StringFixed(2))
	}

	terms, err := calc.Terms(req.Amount, p.InterestRate, req.Tenure, p.ProcessingFee)
	if err != nil {
		return nil, err
	}

	app = &models.LoanApplication{
		ID:             uuid.New(),
		ProductID:      p.ID,
		LoanType:       p.Name,
		Amount:         req.Amount,
		Tenure:         req.Tenure,
		InterestRate:   p.InterestRate,
		MonthlyEMI:     terms.MonthlyEMI,
		TotalRepayment: terms.TotalRepayment,
		ProcessingFee:  terms.ProcessingFee,
		Status:         models.ApplicationStatusPending,
		AppliedDate:    s.now(),
	}

	err = s.storage.Atomic(ctx, func(tx store.Storage) error {
		hold, err := s.wallet.With(tx).PostPendingTransaction(ctx, models.TransactionDescriptor{
			Type:        models.TransactionTypeDeposit,
			Amount:      app.Amount,
			Description: fmt.Sprintf("Loan application: %s", app.LoanType),
			Reference:   app.ID.String(),
			Memo:        true,
		})
		if err != nil {
			return collaborator(err, "failed to post application hold")
		}
		app.PendingTransactionID = hold

		if err := tx.CreateApplication(ctx, app); err != nil {
			return apperr.Collaborator(err, "failed to store application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan application submitted",
		zap.String("op", "loan.Service.Apply"),
		zap.String("id", app.ID.String()),
		zap.String("product", app.ProductID),
		zap.String("amount", app.Amount.StringFixed(2)),
		zap.Int("tenure", app.Tenure),
	)
	s.notify(ctx, notify.Event{Kind: notify.KindApplied, Amount: app.Amount, Name: app.LoanType})
	return app, nil
}

// Approve moves a pending application to approved and settles its hold.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	app, err := s.transition(ctx, "approve", id, models.ApplicationStatusPending,
		func(tx store.Storage, app *models.LoanApplication) error {
			if err := s.wallet.With(tx).ApproveTransaction(ctx, app.PendingTransactionID); err != nil {
				return collaborator(err, "failed to approve application hold")
			}
			now := s.now()
			app.Status = models.ApplicationStatusApproved
			app.ApprovedDate = &now
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Event{Kind: notify.KindApproved, Amount: app.Amount, Name: app.LoanType})
	return app, nil
}

// Reject moves a pending application to rejected and releases its hold.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	return s.transition(ctx, "reject", id, models.ApplicationStatusPending,
		func(tx store.Storage, app *models.LoanApplication) error {
			if err := s.wallet.With(tx).FailTransaction(ctx, app.PendingTransactionID); err != nil {
				return collaborator(err, "failed to release application hold")
			}
			app.Status = models.ApplicationStatusRejected
			return nil
		})
}

// Disburse opens the debt for an approved application and credits the
// principal to the wallet. Nothing is written unless both succeed.
func (s *Service) Disburse(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	app, err := s.transition(ctx, "disburse", id, models.ApplicationStatusApproved,
		func(tx store.Storage, app *models.LoanApplication) error {
			now := s.now()
			debtID, err := s.debts(tx).CreateDebt(ctx, models.DebtDescriptor{
				Creditor:       app.LoanType,
				OriginalAmount: app.Amount,
				InterestRate:   app.InterestRate,
				DueDate:        now.AddDate(0, 0, app.Tenure*daysPerTenureMonth),
				Category:       debtCategory,
				MonthlyPayment: app.MonthlyEMI,
			})
			if err != nil {
				return collaborator(err, "failed to create debt")
			}

			if _, err := s.wallet.With(tx).PostTransaction(ctx, models.TransactionDescriptor{
				Type:        models.TransactionTypeDeposit,
				Amount:      app.Amount,
				Description: fmt.Sprintf("Loan disbursement: %s", app.LoanType),
				Reference:   app.ID.String(),
			}); err != nil {
				return collaborator(err, "failed to post disbursement")
			}

			app.Status = models.ApplicationStatusDisbursed
			app.DisbursedDate = &now
			app.DebtID = &debtID
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Event{Kind: notify.KindDisbursed, Amount: app.Amount, Name: app.LoanType})
	return app, nil
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	return getApplication(ctx, s.storage, id)
}

// List returns every application, newest first.
func (s *Service) List(ctx context.Context) ([]*models.LoanApplication, error) {
	apps, err := s.storage.ListApplications(ctx)
	if err != nil {
		return nil, apperr.Collaborator(err, "failed to list applications")
	}
	return apps, nil
}

func getApplication(ctx context.Context, s store.Storage, id uuid.UUID) (*models.LoanApplication, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("application %s not found", id)
		}
		return nil, apperr.Collaborator(err, "failed to load application")
	}
	return app, nil
}

// transition loads the application inside a unit of work, checks it is in
// from, lets apply mutate it and persists the result.
func (s *Service) transition(ctx context.Context, name string, id uuid.UUID, from models.ApplicationStatus,
	apply func(tx store.Storage, app *models.LoanApplication) error) (app *models.LoanApplication, err error) {
	defer s.record(name, &err)

	err = s.storage.Atomic(ctx, func(tx store.Storage) error {
		current, err := getApplication(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != from {
			return apperr.Conflict("cannot %s application %s: status is %s, expected %s",
				name, id, current.Status, from)
		}
		if err := apply(tx, current); err != nil {
			return err
		}
		if err := tx.UpdateApplication(ctx, current); err != nil {
			return apperr.Collaborator(err, "failed to update application")
		}
		app = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan application transitioned",
		zap.String("op", "loan.Service.transition"),
		zap.String("transition", name),
		zap.String("id", id.String()),
		zap.String("status", string(app.Status)),
	)
	return app, nil
}

func (s *Service) record(transition string, err *error) {
	metrics.LoanTransitions.WithLabelValues(transition, metrics.Outcome(*err)).Inc()
	if *err == nil {
		return
	}

	fields := []zap.Field{
		zap.String("op", "loan.Service."+transition),
		zap.Error(*err),
	}
	if apperr.Is(*err, apperr.KindCollaborator) || apperr.Is(*err, apperr.KindInternal) {
		s.logger.Error("loan transition failed", fields...)
	} else {
		s.logger.Debug("loan transition refused", fields...)
	}
}

// notify delivers e after the unit of work has committed. Delivery problems
// are logged only.
func (s *Service) notify(ctx context.Context, e notify.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notifier panicked",
				zap.String("op", "loan.Service.notify"),
				zap.String("kind", string(e.Kind)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.notifier.Notify(ctx, e); err != nil {
		s.logger.Warn("notification failed",
			zap.String("op", "loan.Service.notify"),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}

// collaborator reports a failed ledger call as a collaborator failure.
func collaborator(err error, msg string) error {
	if apperr.Is(err, apperr.KindCollaborator) {
		return err
	}
	return apperr.Collaborator(err, msg)
}
