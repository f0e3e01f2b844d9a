package scan

import (
	"context"

	"github.com/warehox/stocktake/internal/domain/inventory"
)

// PgStore binds the pgx-backed repos into the Store interface the
// reconciler consumes.
type PgStore struct {
	Products *inventory.Repo
	Scans    *Repo
}

func (s PgStore) FindProduct(ctx context.Context, model, warehouse string) (*inventory.Product, error) {
	return s.Products.FindByModel(ctx, model, warehouse)
}

func (s PgStore) Count(ctx context.Context, barcode, warehouse string, productID int64) (LedgerStatus, error) {
	return s.Scans.Count(ctx, barcode, warehouse, productID)
}

func (s PgStore) AddOrBumpUnknown(ctx context.Context, barcode, model, warehouse string) (LedgerStatus, error) {
	return s.Scans.AddOrBumpUnknown(ctx, barcode, model, warehouse)
}
