/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos and for walking new staff through the ledger. Each
	scenario goes through the inventory service, so stock, rates and the
	ledger are produced exactly as by hand entry.

AVAILABLE SCENARIOS:

	rice-walkthrough: One item from empty stock through a purchase, an
	                  issue into danger, and a refused over-issue
	hostel-month:     Several items and vendors, strength categories and
	                  utensils, with items in every stock status

HOW SCENARIOS WORK:
 1. Reset database (clear all business data)
 2. Create vendors and items
 3. Record purchases and issues dated today
 4. Optionally add registers and ledger annotations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "rice-walkthrough"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/auth"
	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "rice-walkthrough",
		Name:        "Rice Walkthrough",
		Description: "Purchase 100 kg (2 damaged), issue 80 kg into danger, over-issue refused",
	},
	{
		ID:          "hostel-month",
		Name:        "Hostel Month",
		Description: "Five provisions from two vendors, strength categories and utensils",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario wipes the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "rice-walkthrough":
		load = h.loadRiceWalkthrough
	case "hostel-month":
		load = h.loadHostelMonth
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Inventory.Store().ResetAll(ctx); err != nil {
		h.writeServiceError(w, "Failed to reset database", inventory.Persistence("reset database", err))
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := load(ctx); err != nil {
		h.writeServiceError(w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()
	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.String("actor", auth.Actor(ctx)))
	if h.Events != nil {
		h.Events.Notify(ctx, "*", "reset")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *Handler) loadRiceWalkthrough(ctx context.Context) error {
	svc := h.Inventory
	today := svc.Today()

	vendor, err := svc.CreateVendor(ctx, inventory.VendorInput{
		Name:          "Sri Lakshmi Traders",
		ContactPerson: "R. Kumar",
		Phone:         "9845012345",
	})
	if err != nil {
		return err
	}

	rice, err := svc.CreateItem(ctx, inventory.ItemInput{
		Name:            "Rice",
		Unit:            "kg",
		DangerThreshold: dec("30"),
		MediumThreshold: dec("60"),
	})
	if err != nil {
		return err
	}

	// 100 kg received, 2 damaged: stock 98, rate 45, sufficient
	purchase, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "SLT-1001",
		VendorID:     vendor.ID,
		PurchaseDate: today,
		Lines: []inventory.PurchaseLineInput{{
			ItemID:          rice.ID,
			Quantity:        dec("100"),
			DamagedQuantity: dec("2"),
			RatePerUnit:     dec("45"),
		}},
	})
	if err != nil {
		return err
	}

	// 80 kg to the kitchen: stock 18, danger
	if _, err := svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: today,
		IssueType: inventory.IssueMaster,
		Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: dec("80"), RatePerUnit: dec("50")}},
	}); err != nil {
		return err
	}

	// 30 kg more than the store holds: refused, stock stays 18
	_, err = svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: today,
		IssueType: inventory.IssueMaster,
		Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: dec("30"), RatePerUnit: dec("50")}},
	})
	if !errors.Is(err, inventory.ErrInsufficientStock) {
		return fmt.Errorf("expected the over-issue to be refused, got %v", err)
	}

	remarks := "2 kg bags torn on delivery"
	_, err = h.Overlay.Annotate(ctx, report.Key{
		TransactionID: string(purchase.ID),
		ItemID:        rice.ID,
		Type:          report.TxPurchase,
	}, report.Annotation{Remarks: &remarks})
	return err
}

func (h *Handler) loadHostelMonth(ctx context.Context) error {
	svc := h.Inventory
	today := svc.Today()

	grocer, err := svc.CreateVendor(ctx, inventory.VendorInput{
		Name:          "Annapurna Wholesale",
		ContactPerson: "S. Rao",
		Phone:         "9900112233",
		Email:         "orders@annapurna.example",
	})
	if err != nil {
		return err
	}
	oilMill, err := svc.CreateVendor(ctx, inventory.VendorInput{
		Name:  "Ganesh Oil Mill",
		Phone: "9811122233",
	})
	if err != nil {
		return err
	}

	type itemDef struct {
		name, unit, danger, medium string
	}
	defs := []itemDef{
		{"Rice", "kg", "50", "100"},
		{"Toor Dal", "kg", "20", "40"},
		{"Sunflower Oil", "litre", "15", "30"},
		{"Sugar", "kg", "10", "25"},
		{"Salt", "kg", "5", "10"},
	}
	items := make(map[string]inventory.ItemID, len(defs))
	for _, d := range defs {
		it, err := svc.CreateItem(ctx, inventory.ItemInput{
			Name:            d.name,
			Unit:            d.unit,
			DangerThreshold: dec(d.danger),
			MediumThreshold: dec(d.medium),
		})
		if err != nil {
			return err
		}
		items[d.name] = it.ID
	}

	if _, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "AW-2207",
		VendorID:     grocer.ID,
		PurchaseDate: today,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: items["Rice"], Quantity: dec("250"), RatePerUnit: dec("42"), MRP: decimal.NewNullDecimal(dec("48")),
				Discount: inventory.Discount{Type: inventory.DiscountPercentage, Value: dec("5")}},
			{ItemID: items["Toor Dal"], Quantity: dec("60"), DamagedQuantity: dec("1.5"), RatePerUnit: dec("118")},
			{ItemID: items["Sugar"], Quantity: dec("30"), RatePerUnit: dec("44"),
				Discount: inventory.Discount{Type: inventory.DiscountAmount, Value: dec("20")}},
			{ItemID: items["Salt"], Quantity: dec("12"), RatePerUnit: dec("22")},
		},
	}); err != nil {
		return err
	}
	if _, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "GOM-88",
		VendorID:     oilMill.ID,
		PurchaseDate: today,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: items["Sunflower Oil"], Quantity: dec("40"), RatePerUnit: dec("135")},
		},
	}); err != nil {
		return err
	}

	// Leaves Rice sufficient, Toor Dal warning, Sunflower Oil danger
	if _, err := svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: today,
		IssueType: inventory.IssueMaster,
		Lines: []inventory.IssueLineInput{
			{ItemID: items["Rice"], Quantity: dec("120"), RatePerUnit: dec("42")},
			{ItemID: items["Toor Dal"], Quantity: dec("25"), RatePerUnit: dec("118")},
			{ItemID: items["Sunflower Oil"], Quantity: dec("28"), RatePerUnit: dec("135")},
		},
	}); err != nil {
		return err
	}
	if _, err := svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: today,
		IssueType: inventory.IssueHandloan,
		Lines: []inventory.IssueLineInput{
			{ItemID: items["Sugar"], Quantity: dec("8"), RatePerUnit: dec("44")},
		},
	}); err != nil {
		return err
	}

	for _, c := range []inventory.StrengthCategoryInput{
		{CategoryName: "Boys Hostel", StudentCount: 120, AssignedAmount: dec("45"), IsActive: true},
		{CategoryName: "Girls Hostel", StudentCount: 85, AssignedAmount: dec("45"), IsActive: true},
		{CategoryName: "Staff Mess", StudentCount: 12, AssignedAmount: dec("60"), IsActive: false},
	} {
		if _, err := svc.SaveStrengthCategory(ctx, c); err != nil {
			return err
		}
	}

	for _, u := range []inventory.UtensilInput{
		{Name: "Cooking Vessel", Capacity: "50 L", CurrentQuantity: 6, DamagedQuantity: 1, ReplacementNeeded: 1, Unit: "pcs"},
		{Name: "Steel Plates", CurrentQuantity: 240, DamagedQuantity: 12, ReplacementNeeded: 12, Unit: "pcs"},
		{Name: "Pressure Cooker", Capacity: "20 L", CurrentQuantity: 3, Unit: "pcs"},
	} {
		if _, err := svc.SaveUtensil(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
