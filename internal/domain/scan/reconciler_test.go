package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warehox/stocktake/internal/domain/inventory"
)

// fakeStore mirrors the transactional guarantees of the real store in
// memory: one mutex plays the role of the DB transaction, so the ledger
// check and the increment are atomic with respect to concurrent calls.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[string]*inventory.Product // key: model|warehouse
	ledger   map[string]bool               // key: barcode|warehouse
	failWith error

	// beforeCount runs inside Count before the ledger check, to interleave
	// state changes between the reconciler's lookup and its mutation.
	beforeCount func(*fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		products: make(map[string]*inventory.Product),
		ledger:   make(map[string]bool),
	}
}

func key(a, b string) string { return a + "|" + b }

func (f *fakeStore) addProduct(model, warehouse string, invQty int) *inventory.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &inventory.Product{ID: f.nextID, Warehouse: warehouse, Model: model, InvQty: invQty}
	f.nextID++
	f.products[key(model, warehouse)] = p
	return p
}

func (f *fakeStore) FindProduct(_ context.Context, model, warehouse string) (*inventory.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.products[key(model, warehouse)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) Count(_ context.Context, barcode, warehouse string, productID int64) (LedgerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	if f.beforeCount != nil {
		f.beforeCount(f)
	}
	if f.ledger[key(barcode, warehouse)] {
		return LedgerExists, nil
	}
	var target *inventory.Product
	for _, p := range f.products {
		if p.ID == productID {
			target = p
			break
		}
	}
	// The real store's transaction rolls the ledger insert back when the
	// increment matches no row, so the ledger stays untouched here too.
	if target == nil {
		return 0, ErrProductMissing
	}
	f.ledger[key(barcode, warehouse)] = true
	target.ActQty++
	return LedgerInserted, nil
}

func (f *fakeStore) AddOrBumpUnknown(_ context.Context, barcode, model, warehouse string) (LedgerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	if f.ledger[key(barcode, warehouse)] {
		return LedgerExists, nil
	}
	f.ledger[key(barcode, warehouse)] = true
	if p, ok := f.products[key(model, warehouse)]; ok {
		p.InvQty++
		p.ActQty++
	} else {
		f.products[key(model, warehouse)] = &inventory.Product{
			ID: f.nextID, Warehouse: warehouse, Model: model,
			Description: "unknown", InvQty: 1, ActQty: 1,
		}
		f.nextID++
	}
	return LedgerInserted, nil
}

func (f *fakeStore) actQty(model, warehouse string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.products[key(model, warehouse)]; ok {
		return p.ActQty
	}
	return -1
}

func newTestReconciler(f *fakeStore) *Reconciler {
	return NewReconciler(f, slog.New(slog.DiscardHandler))
}

func TestModelCode(t *testing.T) {
	assert.Equal(t, "ABC123456", ModelCode("abc123456789"))
	assert.Equal(t, "ABC123456", ModelCode("ABC123456"))
	// Shorter than the prefix: the whole string, upper-cased, becomes the
	// model. Preserved behavior, not a bug.
	assert.Equal(t, "AB12", ModelCode("ab12"))
	assert.Equal(t, "", ModelCode(""))
}

func TestScanInvalidInput(t *testing.T) {
	r := newTestReconciler(newFakeStore())
	ctx := context.Background()

	for _, tc := range []struct{ name, barcode, warehouse string }{
		{"empty barcode", "", "WH1"},
		{"empty warehouse", "ABC123456789", ""},
		{"both empty", "", ""},
		{"whitespace barcode", "   ", "WH1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Scan(ctx, tc.barcode, tc.warehouse)
			assert.Equal(t, StatusInvalidInput, res.Status)
		})
	}
}

func TestScanNotFoundLeavesStateUntouched(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	r := newTestReconciler(f)

	res := r.Scan(context.Background(), "ZZZ999999001", "WH1")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, "ZZZ999999", res.Model)
	assert.Empty(t, f.ledger)
	assert.Equal(t, 0, f.actQty("ABC123456", "WH1"))

	// A NotFound scan is not ledgered, so it can be retried after the
	// product is loaded.
	f.addProduct("ZZZ999999", "WH1", 1)
	res = r.Scan(context.Background(), "ZZZ999999001", "WH1")
	assert.Equal(t, StatusAccepted, res.Status)
}

func TestScanAcceptThenDuplicate(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	r := newTestReconciler(f)
	ctx := context.Background()

	res := r.Scan(ctx, "ABC123456789", "WH1")
	require.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, "ABC123456", res.Model)
	assert.Equal(t, 1, f.actQty("ABC123456", "WH1"))

	res = r.Scan(ctx, "ABC123456789", "WH1")
	assert.Equal(t, StatusDuplicate, res.Status)
	assert.Equal(t, 1, f.actQty("ABC123456", "WH1"))

	// A different unit of the same model counts again.
	res = r.Scan(ctx, "ABC123456000", "WH1")
	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, 2, f.actQty("ABC123456", "WH1"))
}

func TestScanWarehousesAreIsolated(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	f.addProduct("ABC123456", "WH2", 10)
	r := newTestReconciler(f)
	ctx := context.Background()

	assert.Equal(t, StatusAccepted, r.Scan(ctx, "ABC123456789", "WH1").Status)
	assert.Equal(t, StatusAccepted, r.Scan(ctx, "ABC123456789", "WH2").Status)
	assert.Equal(t, 1, f.actQty("ABC123456", "WH1"))
	assert.Equal(t, 1, f.actQty("ABC123456", "WH2"))
}

func TestScanShortBarcode(t *testing.T) {
	f := newFakeStore()
	f.addProduct("AB12", "WH1", 5)
	r := newTestReconciler(f)

	res := r.Scan(context.Background(), "ab12", "WH1")
	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, "AB12", res.Model)
	assert.Equal(t, 1, f.actQty("AB12", "WH1"))
}

func TestScanProductDeletedMidScan(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	f.beforeCount = func(f *fakeStore) {
		delete(f.products, key("ABC123456", "WH1"))
	}
	r := newTestReconciler(f)

	// The product disappears between lookup and count; nothing may be
	// ledgered and nothing reported as counted.
	res := r.Scan(context.Background(), "ABC123456789", "WH1")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Empty(t, f.ledger)

	// Once the product is back, the same barcode counts normally.
	f.beforeCount = nil
	f.addProduct("ABC123456", "WH1", 10)
	res = r.Scan(context.Background(), "ABC123456789", "WH1")
	assert.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, 1, f.actQty("ABC123456", "WH1"))
}

func TestScanStoreError(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	f.failWith = errors.New("connection reset")
	r := newTestReconciler(f)

	res := r.Scan(context.Background(), "ABC123456789", "WH1")
	assert.Equal(t, StatusStoreError, res.Status)
	assert.Error(t, res.Err)
}

func TestScanConcurrentDistinctBarcodes(t *testing.T) {
	for _, n := range []int{2, 10, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newFakeStore()
			f.addProduct("ABC123456", "WH1", n)
			r := newTestReconciler(f)

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res := r.Scan(context.Background(), fmt.Sprintf("ABC123456%04d", i), "WH1")
					assert.Equal(t, StatusAccepted, res.Status)
				}(i)
			}
			wg.Wait()
			assert.Equal(t, n, f.actQty("ABC123456", "WH1"), "no lost updates")
		})
	}
}

func TestScanConcurrentDuplicateRace(t *testing.T) {
	f := newFakeStore()
	f.addProduct("ABC123456", "WH1", 10)
	r := newTestReconciler(f)

	const workers = 8
	results := make(chan Status, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Scan(context.Background(), "ABC123456789", "WH1").Status
		}()
	}
	wg.Wait()
	close(results)

	accepted, duplicate := 0, 0
	for st := range results {
		switch st {
		case StatusAccepted:
			accepted++
		case StatusDuplicate:
			duplicate++
		default:
			t.Fatalf("unexpected status %q", st)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one winner")
	assert.Equal(t, workers-1, duplicate)
	assert.Equal(t, 1, f.actQty("ABC123456", "WH1"))
}

func TestIntakeCreatesThenBumps(t *testing.T) {
	f := newFakeStore()
	r := newTestReconciler(f)
	ctx := context.Background()

	res := r.Intake(ctx, "NEW000001AAA", "WH1")
	require.Equal(t, StatusAccepted, res.Status)
	p := f.products[key("NEW000001", "WH1")]
	require.NotNil(t, p)
	assert.Equal(t, "unknown", p.Description)
	assert.Equal(t, 1, p.InvQty)
	assert.Equal(t, 1, p.ActQty)

	// Second distinct unit of the same unknown model bumps both counts.
	res = r.Intake(ctx, "NEW000001BBB", "WH1")
	require.Equal(t, StatusAccepted, res.Status)
	assert.Equal(t, 2, p.InvQty)
	assert.Equal(t, 2, p.ActQty)

	// Same label again is a duplicate, nothing moves.
	res = r.Intake(ctx, "NEW000001AAA", "WH1")
	assert.Equal(t, StatusDuplicate, res.Status)
	assert.Equal(t, 2, p.InvQty)
	assert.Equal(t, 2, p.ActQty)
}

func TestIntakeInvalidInput(t *testing.T) {
	r := newTestReconciler(newFakeStore())
	res := r.Intake(context.Background(), "", "WH1")
	assert.Equal(t, StatusInvalidInput, res.Status)
}
