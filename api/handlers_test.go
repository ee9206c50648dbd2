/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Catalog and stock movements through the router
- Over-issue refused with 422 and stock untouched
- Ledger rows, cell edits and export downloads
- Annotations (set, clear with null) and corrections
- Bearer token authentication and roles
- Scenario loading
*/
package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/provision-ledger/auth"
	"github.com/warp/provision-ledger/events"
	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
	"github.com/warp/provision-ledger/settings"
	"github.com/warp/provision-ledger/store/sqldb"
)

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

const today = "2024-06-15"

type testServer struct {
	router http.Handler
	token  string
}

func newTestServer(t *testing.T, verifier *auth.Verifier) *testServer {
	t.Helper()
	store, err := sqldb.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	log := zaptest.NewLogger(t)
	mgr, err := settings.Load(ctx, store, settings.Settings{}, log)
	require.NoError(t, err)

	hub := events.NewHub(log)
	svc := inventory.NewService(store, log,
		inventory.WithNotifier(hub),
		inventory.WithEntryDatePolicy(mgr),
		inventory.WithClock(func() time.Time { return fixedNow }),
	)
	overlay := report.NewOverlay(store, report.DefaultLimits(), hub, log)
	h := NewHandler(Deps{
		Inventory: svc,
		Ledger:    report.NewBuilder(store, store, log),
		Overlay:   overlay,
		Corrector: report.NewCorrector(store, hub, log),
		Settings:  mgr,
		Events:    hub,
		DB:        store,
		Log:       log,
	})
	return &testServer{router: NewRouter(h, RouterOptions{Verifier: verifier, Log: log})}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedRice creates a vendor and the rice item, then receives 100 kg with
// 2 kg damaged at 45.
func seedRice(t *testing.T, s *testServer) (VendorDTO, ItemDTO) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/vendors", map[string]any{
		"name":  "Sri Lakshmi Traders",
		"phone": "9845012345",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vendor := decode[VendorDTO](t, rec)

	rec = s.do(t, http.MethodPost, "/api/items", map[string]any{
		"name":             "Rice",
		"unit":             "kg",
		"danger_threshold": "30",
		"medium_threshold": "60",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[ItemDTO](t, rec)

	rec = s.do(t, http.MethodPost, "/api/purchases", RecordPurchaseRequest{
		BillNo:       "SLT-1001",
		VendorID:     vendor.ID,
		PurchaseDate: today,
		Lines: []PurchaseLineRequest{{
			ItemID:          item.ID,
			Quantity:        dec("100"),
			DamagedQuantity: dec("2"),
			RatePerUnit:     dec("45"),
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchase := decode[PurchaseDTO](t, rec)
	assert.Equal(t, "4500", purchase.TotalAmount.String())
	return vendor, item
}

func issueRice(t *testing.T, s *testServer, itemID, qty string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/issues", IssueStockRequest{
		IssueDate: today,
		IssueType: string(inventory.IssueMaster),
		Lines:     []IssueLineRequest{{ItemID: itemID, Quantity: dec(qty), RatePerUnit: dec("50")}},
	})
}

func getItem(t *testing.T, s *testServer, id string) ItemDTO {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/items/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[ItemDTO](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestStockFlow(t *testing.T) {
	// GIVEN: Rice received, 98 kg in stock
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)

	got := getItem(t, s, item.ID)
	assert.Equal(t, "98", got.CurrentStock.String())
	assert.Equal(t, "45", got.RatePerUnit.String())
	assert.Equal(t, string(inventory.StatusSufficient), got.Status)

	// WHEN: 80 kg are issued
	rec := issueRice(t, s, item.ID, "80")

	// THEN: Stock drops into danger
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	issue := decode[IssueDTO](t, rec)
	assert.Equal(t, "4000", issue.TotalValue.String())

	got = getItem(t, s, item.ID)
	assert.Equal(t, "18", got.CurrentStock.String())
	assert.Equal(t, string(inventory.StatusDanger), got.Status)

	// WHEN: 30 kg more are requested
	rec = issueRice(t, s, item.ID, "30")

	// THEN: Refused, nothing changes
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	got = getItem(t, s, item.ID)
	assert.Equal(t, "18", got.CurrentStock.String())

	rec = s.do(t, http.MethodGet, "/api/issues", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]IssueDTO](t, rec), 1)
}

func TestRecordPurchase_ValidationProblems(t *testing.T) {
	s := newTestServer(t, nil)
	vendor, item := seedRice(t, s)

	rec := s.do(t, http.MethodPost, "/api/purchases", RecordPurchaseRequest{
		BillNo:       "",
		VendorID:     vendor.ID,
		PurchaseDate: today,
		Lines: []PurchaseLineRequest{
			{ItemID: item.ID, Quantity: dec("10"), RatePerUnit: dec("45")},
			{ItemID: item.ID, Quantity: dec("5"), RatePerUnit: dec("45")},
		},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Problems))
	for i, p := range resp.Problems {
		fields[i] = p.Field
	}
	assert.Contains(t, fields, "bill_no")
	assert.Contains(t, fields, "lines[1].item_id")

	// Stock is untouched
	assert.Equal(t, "98", getItem(t, s, item.ID).CurrentStock.String())
}

func TestRecordPurchase_BadDate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/purchases", RecordPurchaseRequest{
		BillNo:       "X-1",
		VendorID:     "v",
		PurchaseDate: "15/06/2024",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetItem_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/items/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedger(t *testing.T) {
	// GIVEN: A purchase and an issue of rice
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)
	require.Equal(t, http.StatusCreated, issueRice(t, s, item.ID, "80").Code)

	// WHEN: The ledger is fetched
	rec := s.do(t, http.MethodGet, "/api/ledger", nil)

	// THEN: Newest first, with running balances, and the issue shows the vendor
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rows := decode[[]LedgerRowDTO](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].SNo)
	assert.Equal(t, "issue", rows[0].TransactionType)
	assert.Equal(t, "18", rows[0].BalanceQuantity.String())
	assert.Equal(t, "Sri Lakshmi Traders", rows[0].VendorName)
	assert.Equal(t, "purchase", rows[1].TransactionType)
	assert.Equal(t, "98", rows[1].BalanceQuantity.String())

	t.Run("type filter", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/ledger?type=issue", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rows := decode[[]LedgerRowDTO](t, rec)
		require.Len(t, rows, 1)
		assert.Equal(t, "18", rows[0].BalanceQuantity.String())
	})

	t.Run("invalid filter", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/ledger?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateCell(t *testing.T) {
	// GIVEN: A ledger with an issue of 80 kg
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)
	require.Equal(t, http.StatusCreated, issueRice(t, s, item.ID, "80").Code)
	rows := decode[[]LedgerRowDTO](t, s.do(t, http.MethodGet, "/api/ledger?type=issue", nil))
	require.Len(t, rows, 1)
	key := report.Key{
		TransactionID: rows[0].TransactionID,
		ItemID:        inventory.ItemID(rows[0].ItemID),
		Type:          report.TxType(rows[0].TransactionType),
	}

	// WHEN: Remarks are set
	rec := s.do(t, http.MethodPut, "/api/ledger/cell", UpdateCellRequest{Key: key, Field: "remarks", Value: "Sunday feast"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// AND: The issued quantity is corrected to 70
	rec = s.do(t, http.MethodPut, "/api/ledger/cell", UpdateCellRequest{Key: key, Field: "issued_quantity", Value: "70"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The row shows both and stock moved back by 10
	rows = decode[[]LedgerRowDTO](t, s.do(t, http.MethodGet, "/api/ledger?type=issue", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, "Sunday feast", rows[0].Remarks)
	assert.Equal(t, "70", rows[0].IssuedQuantity.String())
	assert.Equal(t, "28", getItem(t, s, item.ID).CurrentStock.String())

	t.Run("unknown field", func(t *testing.T) {
		rec := s.do(t, http.MethodPut, "/api/ledger/cell", UpdateCellRequest{Key: key, Field: "item_name", Value: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExportLedger(t *testing.T) {
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)
	require.Equal(t, http.StatusCreated, issueRice(t, s, item.ID, "80").Code)

	t.Run("csv", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/ledger/export?format=csv", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), `attachment; filename="transaction-ledger-`))
		assert.True(t, strings.HasSuffix(rec.Header().Get("Content-Disposition"), `.csv"`))

		records, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/ledger/export?format=xlsx", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, report.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/ledger/export?format=pdf", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthentication(t *testing.T) {
	v := auth.NewVerifier("test-secret", "provisions")
	s := newTestServer(t, v)

	t.Run("missing token", func(t *testing.T) {
		s.token = ""
		rec := s.do(t, http.MethodGet, "/api/items", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health needs no token", func(t *testing.T) {
		s.token = ""
		rec := s.do(t, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readonly can read but not write", func(t *testing.T) {
		token, err := v.Sign("auditor@hostel.example", auth.RoleReadOnly, time.Hour)
		require.NoError(t, err)
		s.token = token

		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/items", nil).Code)
		rec := s.do(t, http.MethodPost, "/api/items", map[string]any{"name": "Salt", "unit": "kg"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("staff writes but cannot reset", func(t *testing.T) {
		token, err := v.Sign("cook@hostel.example", auth.RoleStaff, time.Hour)
		require.NoError(t, err)
		s.token = token

		rec := s.do(t, http.MethodPost, "/api/items", map[string]any{"name": "Salt", "unit": "kg"})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = s.do(t, http.MethodPost, "/api/admin/reset", ResetRequest{ConfirmationCode: inventory.DefaultResetCode})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestResetDatabase(t *testing.T) {
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)

	rec := s.do(t, http.MethodPost, "/api/admin/reset", ResetRequest{ConfirmationCode: "0000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "98", getItem(t, s, item.ID).CurrentStock.String())

	rec = s.do(t, http.MethodPost, "/api/admin/reset", ResetRequest{ConfirmationCode: inventory.DefaultResetCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]ItemDTO](t, s.do(t, http.MethodGet, "/api/items", nil)))
}

func TestLoadScenario(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "rice-walkthrough"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	items := decode[[]ItemDTO](t, s.do(t, http.MethodGet, "/api/items", nil))
	require.Len(t, items, 1)
	assert.Equal(t, "Rice", items[0].Name)
	assert.Equal(t, "18", items[0].CurrentStock.String())
	assert.Equal(t, string(inventory.StatusDanger), items[0].Status)

	current := decode[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "rice-walkthrough", current.ID)

	t.Run("unknown scenario", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("hostel month", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "hostel-month"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		items := decode[[]ItemDTO](t, s.do(t, http.MethodGet, "/api/items", nil))
		assert.Len(t, items, 5)
	})
}

// ledgerKeys returns the keys of the rice issue and purchase rows.
func ledgerKeys(t *testing.T, s *testServer) (issue, purchase map[string]any) {
	t.Helper()
	rows := decode[[]LedgerRowDTO](t, s.do(t, http.MethodGet, "/api/ledger", nil))
	for _, r := range rows {
		k := map[string]any{
			"transaction_id":   r.TransactionID,
			"item_id":          r.ItemID,
			"transaction_type": r.TransactionType,
		}
		if r.TransactionType == "issue" {
			issue = k
		} else {
			purchase = k
		}
	}
	require.NotNil(t, issue)
	require.NotNil(t, purchase)
	return issue, purchase
}

func with(key map[string]any, fields map[string]any) map[string]any {
	out := make(map[string]any, len(key)+len(fields))
	for k, v := range key {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func issueRow(t *testing.T, s *testServer) LedgerRowDTO {
	t.Helper()
	rows := decode[[]LedgerRowDTO](t, s.do(t, http.MethodGet, "/api/ledger?type=issue", nil))
	require.Len(t, rows, 1)
	return rows[0]
}

func TestAnnotate_SetAndClearCustomBalance(t *testing.T) {
	// GIVEN: An issue row with a computed balance amount of 500
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)
	require.Equal(t, http.StatusCreated, issueRice(t, s, item.ID, "80").Code)
	key, _ := ledgerKeys(t, s)

	// WHEN: A custom balance amount is set as a JSON number
	rec := s.do(t, http.MethodPost, "/api/ledger/annotations", with(key, map[string]any{
		"custom_balance_amount": 480.25,
		"remarks":               "recounted",
	}))

	// THEN: The overlay and the ledger show it
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md := decode[MetadataDTO](t, rec)
	require.True(t, md.CustomBalanceAmount.Valid)
	assert.Equal(t, "480.25", md.CustomBalanceAmount.Decimal.String())

	row := issueRow(t, s)
	assert.True(t, row.CustomBalanceAmount)
	assert.Equal(t, "480.25", row.BalanceAmount.String())
	assert.Equal(t, "500", row.ComputedBalanceAmount.String())

	// WHEN: The field is sent as an explicit null
	rec = s.do(t, http.MethodPost, "/api/ledger/annotations", with(key, map[string]any{
		"custom_balance_amount": nil,
	}))

	// THEN: Only that field is cleared
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	md = decode[MetadataDTO](t, rec)
	assert.False(t, md.CustomBalanceAmount.Valid)
	assert.Equal(t, "recounted", md.Remarks)

	row = issueRow(t, s)
	assert.False(t, row.CustomBalanceAmount)
	assert.Equal(t, "500", row.BalanceAmount.String())

	t.Run("string value", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/ledger/annotations", with(key, map[string]any{
			"custom_balance_quantity": "17.5",
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "17.5", issueRow(t, s).BalanceQuantity.String())
	})

	t.Run("not a number", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/ledger/annotations", with(key, map[string]any{
			"custom_balance_amount": "lots",
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no fields", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/ledger/annotations", key)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCorrectTransaction(t *testing.T) {
	// GIVEN: 98 kg received and 80 kg issued
	s := newTestServer(t, nil)
	_, item := seedRice(t, s)
	require.Equal(t, http.StatusCreated, issueRice(t, s, item.ID, "80").Code)
	issueKey, purchaseKey := ledgerKeys(t, s)

	// WHEN: The issued quantity is corrected to 70
	rec := s.do(t, http.MethodPost, "/api/ledger/corrections", with(issueKey, map[string]any{
		"field": "issued_quantity",
		"value": 70,
	}))

	// THEN: Stock moves back by 10 and the line total follows the rate
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "28", getItem(t, s, item.ID).CurrentStock.String())
	row := issueRow(t, s)
	assert.Equal(t, "70", row.IssuedQuantity.String())
	assert.Equal(t, "3500", row.IssuedAmount.String())

	t.Run("correction below issued stock is refused", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/ledger/corrections", with(purchaseKey, map[string]any{
			"field": "purchased_quantity",
			"value": "10",
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		assert.Equal(t, "28", getItem(t, s, item.ID).CurrentStock.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/ledger/corrections", with(issueKey, map[string]any{
			"field": "remarks",
			"value": 1,
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOptionalDecimal(t *testing.T) {
	var req struct {
		A OptionalDecimal `json:"a"`
		B OptionalDecimal `json:"b"`
		C OptionalDecimal `json:"c"`
		D OptionalDecimal `json:"d"`
		E OptionalDecimal `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"b": null, "c": 12.5, "d": "7", "e": ""}`), &req))

	assert.False(t, req.A.Present)
	assert.Nil(t, req.A.Patch())

	require.NotNil(t, req.B.Patch())
	assert.False(t, req.B.Patch().Valid)

	assert.True(t, req.C.Value.Valid)
	assert.Equal(t, "12.5", req.C.Value.Decimal.String())
	assert.Equal(t, "7", req.D.Value.Decimal.String())

	assert.True(t, req.E.Present)
	assert.False(t, req.E.Value.Valid)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "x"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &req))
}
