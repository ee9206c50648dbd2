/*
handlers.go - HTTP API handlers for the provisions ledger

PURPOSE:
  Exposes the inventory service, the ledger report and the settings via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Catalog:
    GET    /api/items                  List items with status and fill level
    POST   /api/items                  Create item
    GET    /api/items/{id}             Get item
    PUT    /api/items/{id}             Update item metadata
    DELETE /api/items/{id}             Deactivate item
    (same shape for /api/vendors)

  Stock movements:
    GET    /api/purchases              Recent purchases with lines
    POST   /api/purchases              Record a purchase
    GET    /api/issues                 Recent issues with lines
    POST   /api/issues                 Issue stock

  Ledger:
    GET    /api/ledger                 Ledger rows (filters in query string)
    GET    /api/ledger/export          CSV or XLSX download
    PUT    /api/ledger/cell            Edit one grid cell
    POST   /api/ledger/annotations     Set overlay fields
    POST   /api/ledger/corrections     Correct a quantity or amount

  Registers, dashboard, settings, admin: see server.go.

ERROR HANDLING:
  Domain errors map to HTTP status in errorStatus:
  - 400: Validation errors (with per-field problems)
  - 403: Wrong settings password
  - 404: Resource not found
  - 409: Concurrent stock update, settings state conflict
  - 422: Insufficient stock
  - 500: Persistence and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/auth"
	"github.com/warp/provision-ledger/events"
	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
	"github.com/warp/provision-ledger/settings"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is satisfied by the database store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers delegate to.
type Deps struct {
	Inventory *inventory.Service
	Ledger    *report.Builder
	Overlay   *report.Overlay
	Corrector *report.Corrector
	Settings  *settings.Manager
	Events    *events.Hub
	DB        Pinger
	Log       *zap.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Inventory *inventory.Service
	Ledger    *report.Builder
	Overlay   *report.Overlay
	Corrector *report.Corrector
	Editor    *report.Editor
	Settings  *settings.Manager
	Events    *events.Hub
	DB        Pinger

	log *zap.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Inventory: d.Inventory,
		Ledger:    d.Ledger,
		Overlay:   d.Overlay,
		Corrector: d.Corrector,
		Editor:    report.NewEditor(d.Overlay, d.Corrector),
		Settings:  d.Settings,
		Events:    d.Events,
		DB:        d.DB,
		log:       log.Named("api"),
	}
}

// Health reports liveness and database reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns active items, or all with ?include_inactive=true.
// GET /api/items
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	items, err := h.Inventory.ListItems(r.Context(), includeInactive)
	if err != nil {
		h.writeServiceError(w, "Failed to list items", err)
		return
	}
	dtos := make([]ItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetItem returns a single item.
// GET /api/items/{id}
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Inventory.GetItem(r.Context(), inventory.ItemID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*item))
}

// CreateItem creates an item with an optional opening stock.
// POST /api/items
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.ItemInput
	if !decodeBody(w, r, &in) {
		return
	}
	item, err := h.Inventory.CreateItem(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(*item))
}

// UpdateItem changes name, unit and thresholds. Stock is not editable here.
// PUT /api/items/{id}
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var in inventory.ItemInput
	if !decodeBody(w, r, &in) {
		return
	}
	item, err := h.Inventory.UpdateItem(r.Context(), inventory.ItemID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeServiceError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*item))
}

// DeactivateItem hides an item from lists and blocks new movements.
// DELETE /api/items/{id}
func (h *Handler) DeactivateItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Inventory.DeactivateItem(r.Context(), inventory.ItemID(chi.URLParam(r, "id"))); err != nil {
		h.writeServiceError(w, "Failed to deactivate item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VENDOR HANDLERS
// =============================================================================

// ListVendors returns vendors.
// GET /api/vendors
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	vendors, err := h.Inventory.ListVendors(r.Context(), includeInactive)
	if err != nil {
		h.writeServiceError(w, "Failed to list vendors", err)
		return
	}
	dtos := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = toVendorDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/vendors/{id}
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	v, err := h.Inventory.GetVendor(r.Context(), inventory.VendorID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, "Failed to get vendor", err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(*v))
}

// POST /api/vendors
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var in inventory.VendorInput
	if !decodeBody(w, r, &in) {
		return
	}
	v, err := h.Inventory.CreateVendor(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create vendor", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorDTO(*v))
}

// PUT /api/vendors/{id}
func (h *Handler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	var in inventory.VendorInput
	if !decodeBody(w, r, &in) {
		return
	}
	v, err := h.Inventory.UpdateVendor(r.Context(), inventory.VendorID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeServiceError(w, "Failed to update vendor", err)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(*v))
}

// DELETE /api/vendors/{id}
func (h *Handler) DeactivateVendor(w http.ResponseWriter, r *http.Request) {
	if err := h.Inventory.DeactivateVendor(r.Context(), inventory.VendorID(chi.URLParam(r, "id"))); err != nil {
		h.writeServiceError(w, "Failed to deactivate vendor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PURCHASE AND ISSUE HANDLERS
// =============================================================================

// ListPurchases returns recent purchases, newest first.
// GET /api/purchases?limit=50
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Inventory.ListPurchases(r.Context(), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, "Failed to list purchases", err)
		return
	}
	dtos := make([]PurchaseDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPurchase records goods received and adds them to stock.
// POST /api/purchases
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req RecordPurchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := inventory.ParseDate(req.PurchaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase_date format (use YYYY-MM-DD)", err)
		return
	}

	cmd := inventory.RecordPurchaseCommand{
		BillNo:       req.BillNo,
		VendorID:     inventory.VendorID(req.VendorID),
		PurchaseDate: date,
		Lines:        make([]inventory.PurchaseLineInput, len(req.Lines)),
	}
	for i, l := range req.Lines {
		cmd.Lines[i] = inventory.PurchaseLineInput{
			ItemID:          inventory.ItemID(l.ItemID),
			Quantity:        l.Quantity,
			DamagedQuantity: l.DamagedQuantity,
			RatePerUnit:     l.RatePerUnit,
			MRP:             l.MRP,
			Discount:        inventory.Discount{Type: inventory.DiscountType(l.DiscountType), Value: l.DiscountValue},
		}
	}

	p, err := h.Inventory.RecordPurchase(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(*p))
}

// ListIssues returns recent stock issues, newest first.
// GET /api/issues?limit=50
func (h *Handler) ListIssues(w http.ResponseWriter, r *http.Request) {
	is, err := h.Inventory.ListIssues(r.Context(), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, "Failed to list issues", err)
		return
	}
	dtos := make([]IssueDTO, len(is))
	for i, x := range is {
		dtos[i] = toIssueDTO(x)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IssueStock removes stock for every line, or nothing at all.
// POST /api/issues
func (h *Handler) IssueStock(w http.ResponseWriter, r *http.Request) {
	var req IssueStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := inventory.ParseDate(req.IssueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid issue_date format (use YYYY-MM-DD)", err)
		return
	}

	cmd := inventory.IssueStockCommand{
		IssueDate: date,
		IssueType: inventory.IssueType(req.IssueType),
		Lines:     make([]inventory.IssueLineInput, len(req.Lines)),
	}
	for i, l := range req.Lines {
		cmd.Lines[i] = inventory.IssueLineInput{
			ItemID:      inventory.ItemID(l.ItemID),
			Quantity:    l.Quantity,
			RatePerUnit: l.RatePerUnit,
		}
	}

	issue, err := h.Inventory.IssueStock(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, "Failed to issue stock", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIssueDTO(*issue))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetLedger returns the transaction ledger.
// GET /api/ledger?type=purchase&item=rice&vendor=X&from=2024-01-01&to=2024-01-31
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	f, err := parseLedgerFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid ledger filter", err)
		return
	}
	rows, err := h.Ledger.Build(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to build ledger", err)
		return
	}
	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportLedger downloads the ledger with the same filters as GetLedger.
// GET /api/ledger/export?format=xlsx
func (h *Handler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeServiceError(w, "Invalid export format", err)
		return
	}
	f, err := parseLedgerFilter(r)
	if err != nil {
		h.writeServiceError(w, "Invalid ledger filter", err)
		return
	}
	rows, err := h.Ledger.Build(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to build ledger", err)
		return
	}

	filename := "transaction-ledger-" + time.Now().Format(inventory.DateLayout) + "." + string(format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := report.Export(w, format, rows); err != nil {
		h.log.Error("ledger export failed", zap.Error(err))
	}
}

// UpdateCell edits one cell of the ledger grid.
// PUT /api/ledger/cell
func (h *Handler) UpdateCell(w http.ResponseWriter, r *http.Request) {
	var req UpdateCellRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Editor.UpdateCell(r.Context(), req.Key, req.Field, req.Value); err != nil {
		h.writeServiceError(w, "Failed to update ledger cell", err)
		return
	}
	h.log.Info("ledger cell updated",
		zap.String("key", req.Key.String()),
		zap.String("field", req.Field),
		zap.String("actor", auth.Actor(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Annotate sets overlay fields of one ledger row.
// POST /api/ledger/annotations
func (h *Handler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a := report.Annotation{
		PrincipalSignature:    req.PrincipalSignature,
		DepWardenSignature:    req.DepWardenSignature,
		Remarks:               req.Remarks,
		CustomBalanceQuantity: req.CustomBalanceQuantity.Patch(),
		CustomBalanceAmount:   req.CustomBalanceAmount.Patch(),
	}

	m, err := h.Overlay.Annotate(r.Context(), req.Key, a)
	if err != nil {
		h.writeServiceError(w, "Failed to annotate ledger row", err)
		return
	}
	writeJSON(w, http.StatusOK, toMetadataDTO(*m))
}

// ListAnnotations returns every overlay row.
// GET /api/ledger/annotations
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Overlay.FetchAll(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list annotations", err)
		return
	}
	dtos := make([]MetadataDTO, len(ms))
	for i, m := range ms {
		dtos[i] = toMetadataDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CorrectTransaction changes a quantity or amount of the underlying line.
// POST /api/ledger/corrections
func (h *Handler) CorrectTransaction(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Corrector.CorrectTransaction(r.Context(), req.Key, report.CorrectionField(req.Field), req.Value); err != nil {
		h.writeServiceError(w, "Failed to correct transaction", err)
		return
	}
	h.log.Info("transaction corrected",
		zap.String("key", req.Key.String()),
		zap.String("actor", auth.Actor(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseLedgerFilter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	f := report.Filter{
		Type:       report.TxType(q.Get("type")),
		ItemName:   q.Get("item"),
		VendorName: q.Get("vendor"),
		ItemID:     inventory.ItemID(q.Get("item_id")),
	}
	if f.Type == "all" {
		f.Type = ""
	}

	verr := &inventory.ValidationError{}
	parseDay := func(field string) *time.Time {
		s := q.Get(field)
		if s == "" {
			return nil
		}
		t, err := inventory.ParseDate(s)
		if err != nil {
			verr.Add(field, "must be a date (YYYY-MM-DD)")
			return nil
		}
		return &t
	}
	f.From = parseDay("from")
	f.To = parseDay("to")

	parseAmount := func(field string) decimal.NullDecimal {
		s := q.Get(field)
		if s == "" {
			return decimal.NullDecimal{}
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			verr.Add(field, "must be a number")
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}
	f.MinAmount = parseAmount("min_amount")
	f.MaxAmount = parseAmount("max_amount")

	return f, verr.OrNil()
}

// =============================================================================
// REGISTER HANDLERS
// =============================================================================

// GetStrength returns strength categories with the daily budget.
// GET /api/strength
func (h *Handler) GetStrength(w http.ResponseWriter, r *http.Request) {
	b, err := h.Inventory.Budget(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to get strength", err)
		return
	}
	dto := BudgetDTO{
		Categories:    make([]StrengthCategoryDTO, len(b.Categories)),
		TotalStudents: b.TotalStudents,
		DailyBudget:   b.DailyBudget,
	}
	for i, c := range b.Categories {
		dto.Categories[i] = toStrengthCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveStrength creates or updates a strength category.
// POST /api/strength
func (h *Handler) SaveStrength(w http.ResponseWriter, r *http.Request) {
	var in inventory.StrengthCategoryInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, err := h.Inventory.SaveStrengthCategory(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to save strength category", err)
		return
	}
	writeJSON(w, http.StatusOK, toStrengthCategoryDTO(*c))
}

// GET /api/utensils
func (h *Handler) ListUtensils(w http.ResponseWriter, r *http.Request) {
	us, err := h.Inventory.ListUtensils(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list utensils", err)
		return
	}
	dtos := make([]UtensilDTO, len(us))
	for i, u := range us {
		dtos[i] = toUtensilDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/utensils
func (h *Handler) SaveUtensil(w http.ResponseWriter, r *http.Request) {
	var in inventory.UtensilInput
	if !decodeBody(w, r, &in) {
		return
	}
	u, err := h.Inventory.SaveUtensil(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to save utensil", err)
		return
	}
	writeJSON(w, http.StatusOK, toUtensilDTO(*u))
}

// DELETE /api/utensils/{id}
func (h *Handler) DeleteUtensil(w http.ResponseWriter, r *http.Request) {
	if err := h.Inventory.DeleteUtensil(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete utensil", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDashboard returns stock and budget summary.
// GET /api/dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Inventory.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to build dashboard", err)
		return
	}
	dto := DashboardDTO{
		TotalItems:      d.TotalItems,
		DangerCount:     d.DangerCount,
		WarningCount:    d.WarningCount,
		SufficientCount: d.SufficientCount,
		StockValue:      d.StockValue.Round(2),
		TotalStudents:   d.TotalStudents,
		DailyBudget:     d.DailyBudget,
		PerCapita:       d.PerCapita,
		LowStock:        make([]ItemDTO, len(d.LowStock)),
	}
	for i, it := range d.LowStock {
		dto.LowStock[i] = toItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SETTINGS AND ADMIN HANDLERS
// =============================================================================

// GetSettings returns the settings without the password hash.
// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Settings.Snapshot())
}

// EnablePassword sets the settings password.
// POST /api/settings/password
func (h *Handler) EnablePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.Settings.EnableProtection(r.Context(), req.CurrentPassword, req.Password)
	if err != nil {
		h.writeServiceError(w, "Failed to enable password protection", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DisablePassword turns protection off.
// POST /api/settings/password/off
func (h *Handler) DisablePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.Settings.DisableProtection(r.Context(), req.Password)
	if err != nil {
		h.writeServiceError(w, "Failed to disable password protection", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// TogglePreviousDate flips back-dated entry.
// POST /api/settings/previous-date
func (h *Handler) TogglePreviousDate(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.Settings.TogglePreviousDateEntry(r.Context(), req.Password)
	if err != nil {
		h.writeServiceError(w, "Failed to toggle previous date entry", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ResetDatabase deletes all business data.
// POST /api/admin/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.Inventory.ResetDatabase(r.Context(), auth.Actor(r.Context()), req.ConfirmationCode); err != nil {
		h.writeServiceError(w, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a domain error to its status. Internal error
// details are logged, not returned.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := errorStatus(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var verr *inventory.ValidationError
	if errors.As(err, &verr) {
		resp.Problems = verr.Problems
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err))
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, inventory.ErrValidation), errors.Is(err, settings.ErrPasswordTooShort):
		return http.StatusBadRequest
	case errors.Is(err, settings.ErrWrongPassword):
		return http.StatusForbidden
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrConflict), errors.Is(err, settings.ErrProtectionDisabled):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}
