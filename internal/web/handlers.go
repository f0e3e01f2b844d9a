package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/warehox/stocktake/internal/domain/catalog"
	"github.com/warehox/stocktake/internal/domain/inventory"
	"github.com/warehox/stocktake/internal/domain/scan"
	"github.com/warehox/stocktake/internal/infra/db"
	"github.com/warehox/stocktake/internal/infra/metrics"
)

// Collaborator contracts the handlers call through. Satisfied by the scan
// reconciler, the catalog/inventory repos, the bulk loader and the exporter;
// tests substitute fakes.
type (
	Scanner interface {
		Scan(ctx context.Context, barcode, warehouse string) scan.Result
		Intake(ctx context.Context, barcode, warehouse string) scan.Result
	}

	WarehouseStore interface {
		Register(ctx context.Context, name string) (*catalog.Warehouse, error)
		GetByName(ctx context.Context, name string) (*catalog.Warehouse, error)
		List(ctx context.Context) ([]catalog.Warehouse, error)
		Delete(ctx context.Context, name string) (bool, error)
	}

	ProductStore interface {
		List(ctx context.Context, warehouse string) ([]inventory.Product, error)
		DeleteByIDs(ctx context.Context, warehouse string, ids []int64) (int64, error)
		DeleteAll(ctx context.Context, warehouse string) (int64, error)
	}

	Loader interface {
		Load(ctx context.Context, warehouse string, r io.Reader) (int, error)
	}

	Exporter interface {
		Warehouse(ctx context.Context, warehouse string) (string, []byte, error)
	}
)

type Handler struct {
	Log        *slog.Logger
	Scans      Scanner
	Warehouses WarehouseStore
	Products   ProductStore
	Loader     Loader
	Exporter   Exporter
	Metrics    *metrics.Metrics
}

// Routes builds the API handler, wrapped in request-id and access-log
// middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scan", h.handleScan)
	mux.HandleFunc("POST /api/scan/unknown", h.handleScanUnknown)

	mux.HandleFunc("POST /api/warehouses", h.handleWarehouseCreate)
	mux.HandleFunc("GET /api/warehouses", h.handleWarehouseList)
	mux.HandleFunc("DELETE /api/warehouses/{name}", h.handleWarehouseDelete)

	mux.HandleFunc("GET /api/warehouses/{name}/products", h.handleProductList)
	mux.HandleFunc("POST /api/warehouses/{name}/products/delete", h.handleProductDelete)
	mux.HandleFunc("DELETE /api/warehouses/{name}/products", h.handleProductClear)
	mux.HandleFunc("POST /api/warehouses/{name}/import", h.handleImport)
	mux.HandleFunc("GET /api/warehouses/{name}/export", h.handleExport)

	return RequestID(AccessLog(h.Log, mux))
}

type scanRequest struct {
	Barcode   string `json:"barcode"`
	Warehouse string `json:"warehouse"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Model   string `json:"model,omitempty"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON body"})
		return
	}
	res := h.Scans.Scan(r.Context(), req.Barcode, req.Warehouse)
	h.countScan(res)
	h.writeScanResult(w, res)
}

func (h *Handler) handleScanUnknown(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON body"})
		return
	}
	if req.Warehouse != "" {
		wh, err := h.Warehouses.GetByName(r.Context(), req.Warehouse)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		if wh == nil {
			writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: "warehouse not registered"})
			return
		}
	}
	res := h.Scans.Intake(r.Context(), req.Barcode, req.Warehouse)
	h.countScan(res)
	h.writeScanResult(w, res)
}

func (h *Handler) countScan(res scan.Result) {
	if h.Metrics != nil {
		h.Metrics.Scans.WithLabelValues(string(res.Status)).Inc()
	}
}

func (h *Handler) writeScanResult(w http.ResponseWriter, res scan.Result) {
	switch res.Status {
	case scan.StatusAccepted:
		writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "OK", Model: res.Model})
	case scan.StatusDuplicate:
		writeJSON(w, http.StatusConflict, statusResponse{Status: "duplicate", Message: "barcode already counted", Model: res.Model})
	case scan.StatusNotFound:
		writeJSON(w, http.StatusNotFound, statusResponse{Status: "not_found", Message: "no product for this model in the warehouse; register the item first", Model: res.Model})
	case scan.StatusInvalidInput:
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "barcode and warehouse are required"})
	default:
		h.writeStoreError(w, res.Err)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, db.ErrUnavailable) {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, statusResponse{Status: "error", Message: "store failure, please retry"})
}

type warehouseRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleWarehouseCreate(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON body"})
		return
	}
	wh, err := h.Warehouses.Register(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, catalog.ErrEmptyName) {
			writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "warehouse name is required"})
			return
		}
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wh)
}

func (h *Handler) handleWarehouseList(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Warehouses.List(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if ws == nil {
		ws = []catalog.Warehouse{}
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *Handler) handleWarehouseDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ok, err := h.Warehouses.Delete(r.Context(), name)
	if err != nil {
		if errors.Is(err, catalog.ErrHasProducts) {
			writeJSON(w, http.StatusConflict, statusResponse{Status: "error", Message: "warehouse still has products; delete them first"})
			return
		}
		h.writeStoreError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: "warehouse not found"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "warehouse deleted"})
}

func (h *Handler) handleProductList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	items, err := h.Products.List(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if items == nil {
		items = []inventory.Product{}
	}
	writeJSON(w, http.StatusOK, items)
}

type deleteProductsRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req deleteProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "invalid JSON body"})
		return
	}
	n, err := h.Products.DeleteByIDs(r.Context(), name, req.IDs)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleProductClear empties a warehouse so it can subsequently be deleted;
// warehouse deletion itself never cascades.
func (h *Handler) handleProductClear(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	n, err := h.Products.DeleteAll(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wh, err := h.Warehouses.GetByName(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if wh == nil {
		writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: "warehouse not registered"})
		return
	}

	body, err := uploadBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	defer func() { _ = body.Close() }()

	n, err := h.Loader.Load(r.Context(), name, body)
	if err != nil {
		if errors.Is(err, db.ErrUnavailable) {
			h.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: err.Error()})
		return
	}
	if h.Metrics != nil {
		h.Metrics.BulkLoads.Inc()
		h.Metrics.RowsLoaded.Add(float64(n))
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

// uploadBody accepts either a multipart form with a "file" part or a raw
// xlsx request body.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, nil
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New(`multipart upload must carry a "file" part`)
	}
	return f, nil
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wh, err := h.Warehouses.GetByName(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if wh == nil {
		writeJSON(w, http.StatusNotFound, statusResponse{Status: "error", Message: "warehouse not registered"})
		return
	}

	fileName, data, err := h.Exporter.Warehouse(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
