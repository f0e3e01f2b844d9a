package scan

import (
	"context"
	"errors"

	"github.com/warehox/stocktake/internal/infra/db"
)

// ErrProductMissing means the product vanished between the reconciler's
// lookup and the counting transaction (e.g. a concurrent delete). The
// transaction rolls back, so the ledger row is not kept either.
var ErrProductMissing = errors.New("scan: product no longer exists")

// Repo owns the two transactional mutations of the reconciliation core. Both
// lean on the DB's uniqueness machinery rather than any in-process lock: the
// ledger insert uses ON CONFLICT DO NOTHING as a designed insert-if-absent,
// and the quantity bump is a single atomic UPDATE.
type Repo struct{ db *db.Provider }

func NewRepo(db *db.Provider) *Repo { return &Repo{db: db} }

// Count records the full barcode in the ledger and increments the product's
// observed quantity, atomically. If the ledger row already exists nothing is
// mutated and LedgerExists is returned. The ledger insert and the increment
// commit or roll back together — a ledger row without its increment (or the
// reverse) must never be observable.
func (r *Repo) Count(ctx context.Context, barcode, warehouse string, productID int64) (LedgerStatus, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO scans (full_barcode, warehouse)
		VALUES ($1, $2)
		ON CONFLICT (full_barcode, warehouse) DO NOTHING
	`, barcode, warehouse)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return LedgerExists, nil
	}

	upd, err := tx.Exec(ctx, `
		UPDATE products SET act_qty = act_qty + 1
		WHERE id = $1
	`, productID)
	if err != nil {
		return 0, err
	}
	// A ledger row must never commit without its increment. Zero matched
	// rows means the product was deleted under us; bail out so the
	// deferred rollback drops the ledger insert too.
	if upd.RowsAffected() != 1 {
		return 0, ErrProductMissing
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return LedgerInserted, nil
}

// AddOrBumpUnknown is the operator entry point for barcodes with no loaded
// product: first scan of a model creates a placeholder row with
// inv_qty = act_qty = 1, later scans bump both by one. The full barcode is
// still ledgered, so rescanning the same label stays a no-op here too.
func (r *Repo) AddOrBumpUnknown(ctx context.Context, barcode, model, warehouse string) (LedgerStatus, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO scans (full_barcode, warehouse)
		VALUES ($1, $2)
		ON CONFLICT (full_barcode, warehouse) DO NOTHING
	`, barcode, warehouse)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return LedgerExists, nil
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO products (warehouse, location, model, description, inv_qty, act_qty)
		VALUES ($1, '', $2, 'unknown', 1, 1)
		ON CONFLICT (model, warehouse)
		DO UPDATE SET inv_qty = products.inv_qty + 1, act_qty = products.act_qty + 1
	`, warehouse, model); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return LedgerInserted, nil
}
