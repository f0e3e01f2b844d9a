package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warehox/stocktake/internal/domain/inventory"
)

// Store is the read side the exporter needs; *inventory.Repo satisfies it.
type Store interface {
	List(ctx context.Context, warehouse string) ([]inventory.Product, error)
}

// Exporter serializes a warehouse's current count state to an xlsx sheet.
// The workbook is also mirrored into the upload dir, matching the legacy
// behavior of keeping the last export on disk; a mirror failure only warns.
type Exporter struct {
	products Store
	dir      string
	log      *slog.Logger
}

func New(products Store, dir string, log *slog.Logger) *Exporter {
	return &Exporter{products: products, dir: dir, log: log}
}

// Warehouse builds the export for one warehouse and returns the suggested
// file name and the workbook bytes.
func (e *Exporter) Warehouse(ctx context.Context, warehouse string) (string, []byte, error) {
	items, err := e.products.List(ctx, warehouse)
	if err != nil {
		return "", nil, err
	}

	data, err := BuildSheet(items)
	if err != nil {
		return "", nil, err
	}

	name := fmt.Sprintf("%s_%s.xlsx", warehouse, time.Now().Format("20060102_150405"))
	if e.dir != "" {
		path := filepath.Join(e.dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			e.log.Warn("export mirror failed", "path", path, "err", err)
		}
	}
	return name, data, nil
}

// BuildSheet renders product rows under the fixed header, preserving the
// order they are given in.
func BuildSheet(items []inventory.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{"Location", "Model Code", "Description", "Inv.Qty", "Act.Qty"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, p := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{p.Location, p.Model, p.Description, p.InvQty, p.ActQty}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
