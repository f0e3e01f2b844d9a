package inventory

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/warehox/stocktake/internal/infra/db"
)

type Repo struct{ db *db.Provider }

func NewRepo(db *db.Provider) *Repo { return &Repo{db: db} }

// FindByModel resolves a product by its model code within one warehouse.
// Returns (nil, nil) when absent.
func (r *Repo) FindByModel(ctx context.Context, model, warehouse string) (*Product, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
		SELECT id, warehouse, location, model, description, inv_qty, act_qty
		FROM products
		WHERE model = $1 AND warehouse = $2
	`, model, warehouse)
	var p Product
	if err := row.Scan(&p.ID, &p.Warehouse, &p.Location, &p.Model, &p.Description, &p.InvQty, &p.ActQty); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// List returns the warehouse's products in insertion order.
func (r *Repo) List(ctx context.Context, warehouse string) ([]Product, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, warehouse, location, model, description, inv_qty, act_qty
		FROM products
		WHERE warehouse = $1
		ORDER BY id
	`, warehouse)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Warehouse, &p.Location, &p.Model, &p.Description, &p.InvQty, &p.ActQty); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceAll swaps out a warehouse's whole product set in one transaction:
// existing products and the scan ledger are cleared, then the new rows go in
// with act_qty = 0. A failure anywhere leaves the previous state intact.
func (r *Repo) ReplaceAll(ctx context.Context, warehouse string, items []Row) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `DELETE FROM products WHERE warehouse = $1`, warehouse); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `DELETE FROM scans WHERE warehouse = $1`, warehouse); err != nil {
		return err
	}
	for _, it := range items {
		if _, err = tx.Exec(ctx, `
			INSERT INTO products (warehouse, location, model, description, inv_qty, act_qty)
			VALUES ($1, $2, $3, $4, $5, 0)
		`, warehouse, it.Location, strings.ToUpper(it.Model), it.Description, it.InvQty); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteByIDs removes the given products of one warehouse; ids from other
// warehouses are ignored.
func (r *Repo) DeleteByIDs(ctx context.Context, warehouse string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
		DELETE FROM products
		WHERE warehouse = $1 AND id = ANY($2)
	`, warehouse, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) DeleteAll(ctx context.Context, warehouse string) (int64, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM products WHERE warehouse = $1`, warehouse)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
