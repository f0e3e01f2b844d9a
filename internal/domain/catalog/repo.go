package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehox/stocktake/internal/infra/db"
)

var (
	ErrEmptyName = errors.New("catalog: warehouse name must not be empty")

	// ErrHasProducts is returned when deleting a warehouse that still owns
	// product rows. Callers clear products first; there is no cascade.
	ErrHasProducts = errors.New("catalog: warehouse still has products")
)

type Repo struct{ db *db.Provider }

func NewRepo(db *db.Provider) *Repo { return &Repo{db: db} }

// Register creates the warehouse if it does not exist and returns the row
// either way.
func (r *Repo) Register(ctx context.Context, name string) (*Warehouse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
		INSERT INTO warehouses (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, created_at
	`, name)
	var w Warehouse
	err = row.Scan(&w.ID, &w.Name, &w.CreatedAt)
	if err == pgx.ErrNoRows {
		// Already registered — return the existing row.
		return r.getByNameConn(ctx, conn, name)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repo) GetByName(ctx context.Context, name string) (*Warehouse, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()
	return r.getByNameConn(ctx, conn, name)
}

func (r *Repo) getByNameConn(ctx context.Context, conn *pgxpool.Conn, name string) (*Warehouse, error) {
	row := conn.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM warehouses WHERE name = $1
	`, name)
	var w Warehouse
	if err := row.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repo) List(ctx context.Context) ([]Warehouse, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, name, created_at
		FROM warehouses
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Delete removes a warehouse by name. Fails with ErrHasProducts while any
// product rows still reference it.
func (r *Repo) Delete(ctx context.Context, name string) (bool, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM warehouses WHERE name = $1`, name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrHasProducts
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
