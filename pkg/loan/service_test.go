package loan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/catalog"
	"github.com/mcclellann/fredWallet/pkg/ledger"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/mcclellann/fredWallet/pkg/notify"
	"github.com/mcclellann/fredWallet/pkg/store"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	wallet *ledger.Wallet
	debts  *ledger.Debts
	events []notify.Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemoryStore()}
	f.wallet = ledger.NewWallet(f.store, decimal.NewFromInt(50000), nil)
	f.debts = ledger.NewDebts(f.store, f.wallet, nil)

	recorder := notify.NotifierFunc(func(_ context.Context, e notify.Event) error {
		f.events = append(f.events, e)
		return nil
	})
	opts = append([]Option{WithNotifier(recorder), WithClock(func() time.Time { return fixedNow })}, opts...)
	f.svc = NewService(catalog.Default(), f.store, f.wallet, f.debts, opts...)
	return f
}

// seedIncome gives the wallet three completed salary credits, which scores
// the profile at 100 with a maximum eligible amount of 600000.
func (f *fixture) seedIncome(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, err := f.wallet.PostTransaction(context.Background(), models.TransactionDescriptor{
			Type:        models.TransactionTypeIncome,
			Amount:      decimal.NewFromInt(20000),
			Description: "Salary",
		})
		if err != nil {
			t.Fatalf("Failed to seed income: %v", err)
		}
	}
}

func personalLoan() ApplyRequest {
	return ApplyRequest{ProductID: "personal", Amount: decimal.NewFromInt(100000), Tenure: 24}
}

type failingDebts struct {
	err error
}

func (f failingDebts) CreateDebt(context.Context, models.DebtDescriptor) (uuid.UUID, error) {
	return uuid.Nil, f.err
}

func (f failingDebts) MonthlyObligations(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// lateFailingDebts writes the debt and then fails, so only a rollback can
// keep it out of the ledger.
type lateFailingDebts struct {
	*ledger.Debts
}

func (l lateFailingDebts) CreateDebt(ctx context.Context, desc models.DebtDescriptor) (uuid.UUID, error) {
	if _, err := l.Debts.CreateDebt(ctx, desc); err != nil {
		return uuid.Nil, err
	}
	return uuid.Nil, errors.New("replication timeout")
}

func TestEndToEndPersonalLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	app, err := f.svc.Apply(ctx, personalLoan())
	if err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	if app.Status != models.ApplicationStatusPending {
		t.Errorf("Expected status pending, got %s", app.Status)
	}
	if !app.MonthlyEMI.Equal(decimal.NewFromInt(4731)) {
		t.Errorf("Expected EMI 4731, got %s", app.MonthlyEMI)
	}
	if !app.TotalRepayment.Equal(decimal.NewFromInt(113544)) {
		t.Errorf("Expected total repayment 113544, got %s", app.TotalRepayment)
	}
	if !app.ProcessingFee.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected processing fee 2000, got %s", app.ProcessingFee)
	}
	if !app.InterestRate.Equal(decimal.NewFromFloat(12.5)) {
		t.Errorf("Expected rate 12.5, got %s", app.InterestRate)
	}

	app, err = f.svc.Approve(ctx, app.ID)
	if err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	if app.Status != models.ApplicationStatusApproved || app.ApprovedDate == nil {
		t.Errorf("Expected approved with a date, got %s %v", app.Status, app.ApprovedDate)
	}

	balanceBefore, _ := f.wallet.CurrentBalance(ctx)
	if !balanceBefore.Equal(decimal.NewFromInt(110000)) {
		t.Errorf("Expected approval to leave the balance at 110000, got %s", balanceBefore)
	}

	app, err = f.svc.Disburse(ctx, app.ID)
	if err != nil {
		t.Fatalf("Failed to disburse: %v", err)
	}
	if app.Status != models.ApplicationStatusDisbursed || app.DisbursedDate == nil || app.DebtID == nil {
		t.Fatalf("Expected disbursed with date and debt id, got %+v", app)
	}

	debt, err := f.debts.Get(ctx, *app.DebtID)
	if err != nil {
		t.Fatalf("Failed to load debt: %v", err)
	}
	if !debt.OriginalAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("Expected original amount 100000, got %s", debt.OriginalAmount)
	}
	if !debt.MonthlyPayment.Equal(decimal.NewFromInt(4731)) {
		t.Errorf("Expected monthly payment 4731, got %s", debt.MonthlyPayment)
	}
	if debt.Creditor != "Personal Loan" || debt.Status != models.DebtStatusActive {
		t.Errorf("Unexpected debt %+v", debt)
	}
	if want := fixedNow.AddDate(0, 0, 720); !debt.DueDate.Equal(want) {
		t.Errorf("Expected due date %s, got %s", want, debt.DueDate)
	}

	balanceAfter, _ := f.wallet.CurrentBalance(ctx)
	if !balanceAfter.Equal(decimal.NewFromInt(210000)) {
		t.Errorf("Expected the principal credited once, got balance %s", balanceAfter)
	}

	kinds := []notify.Kind{notify.KindApplied, notify.KindApproved, notify.KindDisbursed}
	if len(f.events) != len(kinds) {
		t.Fatalf("Expected %d notifications, got %d", len(kinds), len(f.events))
	}
	for i, k := range kinds {
		if f.events[i].Kind != k {
			t.Errorf("Expected notification %d to be %s, got %s", i, k, f.events[i].Kind)
		}
	}
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	tests := []struct {
		name string
		req  ApplyRequest
		kind apperr.Kind
	}{
		{"unknown product", ApplyRequest{ProductID: "yacht", Amount: decimal.NewFromInt(100000), Tenure: 24}, apperr.KindNotFound},
		{"tenure not offered", ApplyRequest{ProductID: "personal", Amount: decimal.NewFromInt(100000), Tenure: 18}, apperr.KindValidation},
		{"below minimum", ApplyRequest{ProductID: "personal", Amount: decimal.NewFromInt(9999), Tenure: 24}, apperr.KindValidation},
		{"above product maximum", ApplyRequest{ProductID: "personal", Amount: decimal.NewFromInt(1000001), Tenure: 24}, apperr.KindValidation},
		{"above eligible maximum", ApplyRequest{ProductID: "personal", Amount: decimal.NewFromInt(700000), Tenure: 24}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Apply(ctx, tt.req); !apperr.Is(err, tt.kind) {
				t.Errorf("Expected %s error, got %v", tt.kind, err)
			}
		})
	}

	apps, _ := f.svc.List(ctx)
	if len(apps) != 0 {
		t.Errorf("Expected no applications after refused requests, got %d", len(apps))
	}
}

func TestApplyRequiresEligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Apply(ctx, personalLoan())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Expected validation error for an ineligible profile, got %v", err)
	}
	txs, _ := f.wallet.Transactions(ctx)
	if len(txs) != 0 {
		t.Errorf("Expected no hold to be posted, got %d transactions", len(txs))
	}
}

func TestApplyUsesDeclaredSalaryWithoutHistory(t *testing.T) {
	f := newFixture(t, WithDeclaredSalary(decimal.NewFromInt(60000)))

	result, err := f.svc.Eligibility(context.Background(), "personal")
	if err != nil {
		t.Fatalf("Failed to score: %v", err)
	}
	// income 40 + leverage 20 + liquidity 8
	if result.EligibilityScore != 68 || !result.IsEligible {
		t.Errorf("Expected eligible score 68, got %d", result.EligibilityScore)
	}
	if !result.MaxEligibleAmount.Equal(decimal.NewFromInt(600000)) {
		t.Errorf("Expected max eligible 600000, got %s", result.MaxEligibleAmount)
	}
}

func TestEligibilityAll(t *testing.T) {
	f := newFixture(t)
	f.seedIncome(t)

	results, err := f.svc.EligibilityAll(context.Background())
	if err != nil {
		t.Fatalf("Failed to score: %v", err)
	}
	if len(results) != len(catalog.Default().Products()) {
		t.Fatalf("Expected one result per product, got %d", len(results))
	}
	for _, r := range results {
		if r.ProductID == "" || r.EligibilityScore != 100 {
			t.Errorf("Unexpected result %+v", r)
		}
	}

	if _, err := f.svc.Eligibility(context.Background(), "yacht"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestEligibilityReflectsNewDebts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	before, _ := f.svc.Eligibility(ctx, "personal")
	_, err := f.debts.AddDebt(ctx, models.DebtDescriptor{
		Creditor:       "Car Loan",
		OriginalAmount: decimal.NewFromInt(300000),
		MonthlyPayment: decimal.NewFromInt(40000),
	})
	if err != nil {
		t.Fatalf("Failed to add debt: %v", err)
	}
	after, _ := f.svc.Eligibility(ctx, "personal")

	if after.DebtToIncomeRatio != 67 {
		t.Errorf("Expected debt-to-income 67, got %d", after.DebtToIncomeRatio)
	}
	if after.EligibilityScore >= before.EligibilityScore {
		t.Errorf("Expected score to drop from %d, got %d", before.EligibilityScore, after.EligibilityScore)
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	terms, err := f.svc.Quote("home", decimal.NewFromInt(500000), 240)
	if err != nil {
		t.Fatalf("Failed to quote: %v", err)
	}
	if !terms.MonthlyEMI.Equal(decimal.NewFromInt(4339)) {
		t.Errorf("Expected EMI 4339, got %s", terms.MonthlyEMI)
	}
	if !terms.TotalRepayment.GreaterThan(terms.Principal) {
		t.Errorf("Expected total repayment above principal, got %s", terms.TotalRepayment)
	}
	if !terms.ProcessingFee.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected processing fee 2500, got %s", terms.ProcessingFee)
	}

	if _, err := f.svc.Quote("home", decimal.NewFromInt(500000), 24); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
	apps, _ := f.svc.List(context.Background())
	if len(apps) != 0 {
		t.Errorf("Expected quoting to create nothing, got %d applications", len(apps))
	}
}

func TestRejectReleasesHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	app, _ := f.svc.Apply(ctx, personalLoan())
	rejected, err := f.svc.Reject(ctx, app.ID)
	if err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}
	if rejected.Status != models.ApplicationStatusRejected || rejected.ApprovedDate != nil {
		t.Errorf("Expected bare rejected status, got %+v", rejected)
	}

	txs, _ := f.wallet.Transactions(ctx)
	var hold *models.Transaction
	for i := range txs {
		if txs[i].ID == app.PendingTransactionID {
			hold = &txs[i]
		}
	}
	if hold == nil || hold.Status != models.TransactionStatusFailed {
		t.Errorf("Expected the hold to be failed, got %+v", hold)
	}
}

func TestTransitionsAreForwardOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	rejected, _ := f.svc.Apply(ctx, personalLoan())
	if _, err := f.svc.Reject(ctx, rejected.ID); err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}
	disbursed, _ := f.svc.Apply(ctx, personalLoan())
	if _, err := f.svc.Approve(ctx, disbursed.ID); err != nil {
		t.Fatalf("Failed to approve: %v", err)
	}
	if _, err := f.svc.Disburse(ctx, disbursed.ID); err != nil {
		t.Fatalf("Failed to disburse: %v", err)
	}

	transitions := map[string]func(context.Context, uuid.UUID) (*models.LoanApplication, error){
		"approve":  f.svc.Approve,
		"reject":   f.svc.Reject,
		"disburse": f.svc.Disburse,
	}
	for _, app := range []*models.LoanApplication{rejected, disbursed} {
		before, _ := f.svc.Get(ctx, app.ID)
		for name, fn := range transitions {
			if _, err := fn(ctx, app.ID); !apperr.Is(err, apperr.KindConflict) {
				t.Errorf("Expected conflict on %s of a %s application, got %v", name, before.Status, err)
			}
		}
		after, _ := f.svc.Get(ctx, app.ID)
		if after.Status != before.Status {
			t.Errorf("Expected status %s unchanged, got %s", before.Status, after.Status)
		}
	}

	debts, _ := f.debts.List(ctx)
	if len(debts) != 1 {
		t.Errorf("Expected exactly one debt, got %d", len(debts))
	}
	deposits := 0
	txs, _ := f.wallet.Transactions(ctx)
	for _, tx := range txs {
		if tx.Type == models.TransactionTypeDeposit && !tx.Memo {
			deposits++
		}
	}
	if deposits != 1 {
		t.Errorf("Expected exactly one disbursement posting, got %d", deposits)
	}
}

func TestDisburseRequiresApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedIncome(t)

	app, _ := f.svc.Apply(ctx, personalLoan())
	if _, err := f.svc.Disburse(ctx, app.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Expected conflict disbursing a pending application, got %v", err)
	}
	if _, err := f.svc.Approve(ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestDisbursementIsAtomic(t *testing.T) {
	tests := []struct {
		name string
		bind func(*fixture) func(store.Storage) DebtLedger
	}{
		{
			name: "debt ledger refuses",
			bind: func(*fixture) func(store.Storage) DebtLedger {
				return func(store.Storage) DebtLedger { return failingDebts{err: errors.New("ledger offline")} }
			},
		},
		{
			name: "debt ledger fails after writing",
			bind: func(f *fixture) func(store.Storage) DebtLedger {
				return func(s store.Storage) DebtLedger { return lateFailingDebts{f.debts.With(s)} }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.seedIncome(t)
			f.svc.debts = tt.bind(f)

			app, err := f.svc.Apply(ctx, personalLoan())
			if err != nil {
				t.Fatalf("Failed to apply: %v", err)
			}
			if _, err := f.svc.Approve(ctx, app.ID); err != nil {
				t.Fatalf("Failed to approve: %v", err)
			}
			balance, _ := f.wallet.CurrentBalance(ctx)

			_, err = f.svc.Disburse(ctx, app.ID)
			if !apperr.Is(err, apperr.KindCollaborator) {
				t.Fatalf("Expected collaborator error, got %v", err)
			}

			after, _ := f.svc.Get(ctx, app.ID)
			if after.Status != models.ApplicationStatusApproved {
				t.Errorf("Expected status approved, got %s", after.Status)
			}
			if after.DebtID != nil || after.DisbursedDate != nil {
				t.Errorf("Expected no debt id or disbursed date, got %v %v", after.DebtID, after.DisbursedDate)
			}
			debts, _ := f.debts.List(ctx)
			if len(debts) != 0 {
				t.Errorf("Expected no debts, got %d", len(debts))
			}
			if now, _ := f.wallet.CurrentBalance(ctx); !now.Equal(balance) {
				t.Errorf("Expected balance %s unchanged, got %s", balance, now)
			}
		})
	}
}

func TestNotifierFailuresDoNotFailTransitions(t *testing.T) {
	ctx := context.Background()
	panicking := notify.NotifierFunc(func(context.Context, notify.Event) error { panic("toast renderer crashed") })
	failing := notify.NotifierFunc(func(context.Context, notify.Event) error { return errors.New("queue full") })

	for name, n := range map[string]notify.Notifier{"panic": panicking, "error": failing} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, WithNotifier(n))
			f.seedIncome(t)

			app, err := f.svc.Apply(ctx, personalLoan())
			if err != nil {
				t.Fatalf("Expected apply to succeed, got %v", err)
			}
			if _, err := f.svc.Approve(ctx, app.ID); err != nil {
				t.Fatalf("Expected approve to succeed, got %v", err)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	f := newFixture(t, WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	f.seedIncome(t)

	first, _ := f.svc.Apply(ctx, personalLoan())
	second, _ := f.svc.Apply(ctx, personalLoan())

	apps, err := f.svc.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(apps) != 2 || apps[0].ID != second.ID || apps[1].ID != first.ID {
		t.Errorf("Expected newest application first")
	}
}
