package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/warehox/stocktake/internal/domain/inventory"
)

// Store is what the reconciler needs from durable state. *Repo together with
// *inventory.Repo satisfies it; tests use an in-memory fake.
type Store interface {
	// FindProduct resolves (model, warehouse) to a product, (nil, nil) when
	// absent.
	FindProduct(ctx context.Context, model, warehouse string) (*inventory.Product, error)
	// Count ledgers the barcode and increments the product, atomically.
	Count(ctx context.Context, barcode, warehouse string, productID int64) (LedgerStatus, error)
	// AddOrBumpUnknown creates or bumps a placeholder product for an
	// unrecognized model, ledgering the barcode.
	AddOrBumpUnknown(ctx context.Context, barcode, model, warehouse string) (LedgerStatus, error)
}

// Reconciler turns one physical scan event into at most one durable
// increment of observed quantity.
type Reconciler struct {
	store Store
	log   *slog.Logger
}

func NewReconciler(store Store, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Scan decides the fate of one barcode read:
//
//	Accepted  — new physical unit, act_qty incremented
//	Duplicate — this exact barcode was already counted here; no-op
//	NotFound  — derived model has no product in the warehouse; no state change
//
// Duplicates are side-effect-free: the ledger check happens before any
// mutation, and both mutations share one transaction in the store.
func (r *Reconciler) Scan(ctx context.Context, barcode, warehouse string) Result {
	barcode = strings.TrimSpace(barcode)
	warehouse = strings.TrimSpace(warehouse)
	if barcode == "" || warehouse == "" {
		return Result{Status: StatusInvalidInput}
	}
	model := ModelCode(barcode)

	p, err := r.store.FindProduct(ctx, model, warehouse)
	if err != nil {
		r.log.Error("scan: product lookup failed", "model", model, "warehouse", warehouse, "err", err)
		return Result{Status: StatusStoreError, Err: err}
	}
	if p == nil {
		return Result{Status: StatusNotFound, Model: model}
	}

	st, err := r.store.Count(ctx, barcode, warehouse, p.ID)
	if err != nil {
		// Lost a race with a product delete: nothing was counted and the
		// rollback kept the barcode out of the ledger, so the scan can be
		// retried once the product is loaded again.
		if errors.Is(err, ErrProductMissing) {
			r.log.Warn("scan: product deleted mid-scan", "model", model, "warehouse", warehouse)
			return Result{Status: StatusNotFound, Model: model}
		}
		r.log.Error("scan: count failed", "model", model, "warehouse", warehouse, "err", err)
		return Result{Status: StatusStoreError, Err: err}
	}
	if st == LedgerExists {
		return Result{Status: StatusDuplicate, Model: model}
	}
	return Result{Status: StatusAccepted, Model: model}
}

// Intake is the explicit operator action for barcodes Scan reported as
// NotFound: it shifts the expected baseline too (inv_qty and act_qty both
// move), so it is a separate entry point and never a silent fallback.
func (r *Reconciler) Intake(ctx context.Context, barcode, warehouse string) Result {
	barcode = strings.TrimSpace(barcode)
	warehouse = strings.TrimSpace(warehouse)
	if barcode == "" || warehouse == "" {
		return Result{Status: StatusInvalidInput}
	}
	model := ModelCode(barcode)

	st, err := r.store.AddOrBumpUnknown(ctx, barcode, model, warehouse)
	if err != nil {
		r.log.Error("scan: unknown intake failed", "model", model, "warehouse", warehouse, "err", err)
		return Result{Status: StatusStoreError, Err: err}
	}
	if st == LedgerExists {
		return Result{Status: StatusDuplicate, Model: model}
	}
	return Result{Status: StatusAccepted, Model: model}
}
