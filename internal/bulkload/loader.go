package bulkload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warehox/stocktake/internal/domain/inventory"
)

// Store is the one store operation bulk loading needs. Satisfied by
// *inventory.Repo, whose ReplaceAll swaps the warehouse in one transaction.
type Store interface {
	ReplaceAll(ctx context.Context, warehouse string, items []inventory.Row) error
}

// Loader replaces a warehouse's product set from an uploaded xlsx workbook.
// The swap is all-or-nothing: a workbook that fails to parse never touches
// the store, and the store-side replace runs in one transaction.
type Loader struct {
	products Store
	log      *slog.Logger
}

func New(products Store, log *slog.Logger) *Loader {
	return &Loader{products: products, log: log}
}

// Load parses the workbook and swaps the warehouse contents. Returns the
// number of product rows loaded.
func (l *Loader) Load(ctx context.Context, warehouse string, r io.Reader) (int, error) {
	items, err := ParseRows(r)
	if err != nil {
		return 0, err
	}
	if err := l.products.ReplaceAll(ctx, warehouse, items); err != nil {
		return 0, err
	}
	l.log.Info("bulk load complete", "warehouse", warehouse, "rows", len(items))
	return len(items), nil
}

// ParseRows reads the active sheet: a header row followed by
// (location, model, description, inv_qty) tuples. Fully blank rows are
// skipped; anything else malformed aborts with the sheet row number.
func ParseRows(r io.Reader) ([]inventory.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	items := make([]inventory.Row, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		it := inventory.Row{Location: cell(row, 0), Model: cell(row, 1), Description: cell(row, 2)}
		if it.Model == "" {
			return nil, fmt.Errorf("row %d: missing model code", i+1)
		}
		qtyStr := cell(row, 3)
		if qtyStr != "" {
			qty, err := strconv.Atoi(qtyStr)
			if err != nil || qty < 0 {
				return nil, fmt.Errorf("row %d: bad inv_qty %q", i+1, qtyStr)
			}
			it.InvQty = qty
		}
		items = append(items, it)
	}
	return items, nil
}

// checkHeader verifies row 1 carries the expected column titles, so a
// workbook whose first row is already data is rejected instead of silently
// losing that row.
func checkHeader(row []string) error {
	want := []string{"location", "model", "description", "inv"}
	if len(row) < len(want) {
		return fmt.Errorf("row 1: expected header [Location, Model Code, Description, Inv.Qty]")
	}
	for i, prefix := range want {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(row[i])), prefix) {
			return fmt.Errorf("row 1: expected header [Location, Model Code, Description, Inv.Qty], got %q in column %d", row[i], i+1)
		}
	}
	return nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
