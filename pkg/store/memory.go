package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcclellann/fredWallet/pkg/models"
)

// MemoryStore is an in-process Storage. Records are copied in and out so
// callers never share state with the store.
//
// Every call, read or write, holds the unit lock, so a unit of work never
// interleaves with other callers and rolling it back only undoes its own
// writes.
type MemoryStore struct {
	unit sync.Mutex
	data *memoryData
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		applications: make(map[uuid.UUID]models.LoanApplication),
		debts:        make(map[uuid.UUID]models.DebtObligation),
		transactions: make(map[uuid.UUID]models.Transaction),
		seq:          make(map[uuid.UUID]int),
	}}
}

// Atomic runs fn with the store locked and restores the prior state if fn
// fails.
func (m *MemoryStore) Atomic(_ context.Context, fn func(Storage) error) error {
	m.unit.Lock()
	defer m.unit.Unlock()

	before := m.data.snapshot()
	if err := fn(memoryUnit{m.data}); err != nil {
		*m.data = before
		return err
	}
	return nil
}

func (m *MemoryStore) CreateApplication(ctx context.Context, app *models.LoanApplication) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.CreateApplication(ctx, app)
}

func (m *MemoryStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.GetApplication(ctx, id)
}

func (m *MemoryStore) UpdateApplication(ctx context.Context, app *models.LoanApplication) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.UpdateApplication(ctx, app)
}

func (m *MemoryStore) ListApplications(ctx context.Context) ([]*models.LoanApplication, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.ListApplications(ctx)
}

func (m *MemoryStore) CreateDebt(ctx context.Context, debt *models.DebtObligation) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.CreateDebt(ctx, debt)
}

func (m *MemoryStore) GetDebt(ctx context.Context, id uuid.UUID) (*models.DebtObligation, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.GetDebt(ctx, id)
}

func (m *MemoryStore) UpdateDebt(ctx context.Context, debt *models.DebtObligation) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.UpdateDebt(ctx, debt)
}

func (m *MemoryStore) ListDebts(ctx context.Context) ([]*models.DebtObligation, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.ListDebts(ctx)
}

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.CreateTransaction(ctx, tx)
}

func (m *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.GetTransaction(ctx, id)
}

func (m *MemoryStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.UpdateTransaction(ctx, tx)
}

func (m *MemoryStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	m.unit.Lock()
	defer m.unit.Unlock()
	return memoryUnit{m.data}.ListTransactions(ctx)
}

func (m *MemoryStore) Close() error { return nil }

type memoryData struct {
	applications map[uuid.UUID]models.LoanApplication
	debts        map[uuid.UUID]models.DebtObligation
	transactions map[uuid.UUID]models.Transaction
	seq          map[uuid.UUID]int
	next         int
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memoryData) snapshot() memoryData {
	return memoryData{
		applications: copyMap(d.applications),
		debts:        copyMap(d.debts),
		transactions: copyMap(d.transactions),
		seq:          copyMap(d.seq),
		next:         d.next,
	}
}

func (d *memoryData) stamp(id uuid.UUID) {
	if _, ok := d.seq[id]; !ok {
		d.next++
		d.seq[id] = d.next
	}
}

// memoryUnit is the Storage handed to an Atomic callback. It runs with the
// unit lock already held, and nested Atomic calls join the outer unit.
type memoryUnit struct {
	*memoryData
}

func (u memoryUnit) Atomic(_ context.Context, fn func(Storage) error) error {
	return fn(u)
}

func (u memoryUnit) Close() error { return nil }

func cloneApplication(app models.LoanApplication) *models.LoanApplication {
	if app.ApprovedDate != nil {
		t := *app.ApprovedDate
		app.ApprovedDate = &t
	}
	if app.DisbursedDate != nil {
		t := *app.DisbursedDate
		app.DisbursedDate = &t
	}
	if app.DebtID != nil {
		id := *app.DebtID
		app.DebtID = &id
	}
	return &app
}

func (u memoryUnit) CreateApplication(_ context.Context, app *models.LoanApplication) error {
	u.applications[app.ID] = *cloneApplication(*app)
	u.stamp(app.ID)
	return nil
}

func (u memoryUnit) GetApplication(_ context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	app, ok := u.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneApplication(app), nil
}

func (u memoryUnit) UpdateApplication(_ context.Context, app *models.LoanApplication) error {
	if _, ok := u.applications[app.ID]; !ok {
		return ErrNotFound
	}
	u.applications[app.ID] = *cloneApplication(*app)
	return nil
}

// ListApplications returns applications newest first.
func (u memoryUnit) ListApplications(_ context.Context) ([]*models.LoanApplication, error) {
	out := make([]*models.LoanApplication, 0, len(u.applications))
	for _, app := range u.applications {
		out = append(out, cloneApplication(app))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedDate.Equal(out[j].AppliedDate) {
			return out[i].AppliedDate.After(out[j].AppliedDate)
		}
		return u.seq[out[i].ID] > u.seq[out[j].ID]
	})
	return out, nil
}

func (u memoryUnit) CreateDebt(_ context.Context, debt *models.DebtObligation) error {
	u.debts[debt.ID] = *debt
	u.stamp(debt.ID)
	return nil
}

func (u memoryUnit) GetDebt(_ context.Context, id uuid.UUID) (*models.DebtObligation, error) {
	debt, ok := u.debts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &debt, nil
}

func (u memoryUnit) UpdateDebt(_ context.Context, debt *models.DebtObligation) error {
	if _, ok := u.debts[debt.ID]; !ok {
		return ErrNotFound
	}
	u.debts[debt.ID] = *debt
	return nil
}

// ListDebts returns debts in creation order.
func (u memoryUnit) ListDebts(_ context.Context) ([]*models.DebtObligation, error) {
	out := make([]*models.DebtObligation, 0, len(u.debts))
	for _, debt := range u.debts {
		d := debt
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return u.seq[out[i].ID] < u.seq[out[j].ID] })
	return out, nil
}

func (u memoryUnit) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	u.transactions[tx.ID] = *tx
	u.stamp(tx.ID)
	return nil
}

func (u memoryUnit) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, ok := u.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (u memoryUnit) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	existing, ok := u.transactions[tx.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = tx.Status
	u.transactions[tx.ID] = existing
	return nil
}

// ListTransactions returns transactions in posting order.
func (u memoryUnit) ListTransactions(_ context.Context) ([]*models.Transaction, error) {
	out := make([]*models.Transaction, 0, len(u.transactions))
	for _, tx := range u.transactions {
		t := tx
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return u.seq[out[i].ID] < u.seq[out[j].ID] })
	return out, nil
}
