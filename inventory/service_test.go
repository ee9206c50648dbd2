package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/store/sqldb"
)

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) Notify(_ context.Context, table, action string, _ ...string) {
	n.calls = append(n.calls, table+":"+action)
}

type datePolicy bool

func (p datePolicy) AllowPreviousDateEntry() bool { return bool(p) }

func newService(t *testing.T, opts ...inventory.Option) (*inventory.Service, *sqldb.Store) {
	t.Helper()
	store, err := sqldb.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts = append([]inventory.Option{inventory.WithClock(func() time.Time { return fixedNow })}, opts...)
	return inventory.NewService(store, nil, opts...), store
}

func seedVendor(t *testing.T, svc *inventory.Service, name string) *inventory.Vendor {
	t.Helper()
	v, err := svc.CreateVendor(context.Background(), inventory.VendorInput{Name: name, Phone: "9845012345"})
	require.NoError(t, err)
	return v
}

func seedItem(t *testing.T, svc *inventory.Service, name, danger, medium string) *inventory.Item {
	t.Helper()
	it, err := svc.CreateItem(context.Background(), inventory.ItemInput{
		Name:            name,
		Unit:            "kg",
		DangerThreshold: d(danger),
		MediumThreshold: d(medium),
	})
	require.NoError(t, err)
	return it
}

func TestRiceWalkthrough(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Sri Lakshmi Traders")
	rice := seedItem(t, svc, "Rice", "30", "60")

	// GIVEN: Rice at zero stock
	assert.True(t, rice.CurrentStock.IsZero())
	assert.Equal(t, inventory.StatusDanger, rice.Status())

	// WHEN: 100 kg arrive with 2 kg damaged at 45
	p, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "SLT-1001",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("100"), DamagedQuantity: d("2"), RatePerUnit: d("45")},
		},
	})
	require.NoError(t, err)

	// THEN: 98 kg in stock at rate 45, sufficient
	assert.Equal(t, "4500", p.TotalAmount.String())
	got, err := svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "98", got.CurrentStock.String())
	assert.Equal(t, "45", got.RatePerUnit.String())
	assert.Equal(t, inventory.StatusSufficient, got.Status())

	// WHEN: 80 kg are issued to the kitchen
	_, err = svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: fixedNow,
		IssueType: inventory.IssueMaster,
		Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: d("80"), RatePerUnit: d("50")}},
	})
	require.NoError(t, err)

	// THEN: 18 kg left, danger, rate untouched
	got, err = svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "18", got.CurrentStock.String())
	assert.Equal(t, "45", got.RatePerUnit.String())
	assert.Equal(t, inventory.StatusDanger, got.Status())

	// WHEN: 30 kg more are requested
	_, err = svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: fixedNow,
		IssueType: inventory.IssueMaster,
		Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: d("30"), RatePerUnit: d("50")}},
	})

	// THEN: Refused, nothing written
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	got, err = svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "18", got.CurrentStock.String())

	issues, err := svc.ListIssues(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestIssueStock_OneShortLine_RejectsWholeIssue(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Annapurna Wholesale")
	rice := seedItem(t, svc, "Rice", "30", "60")
	dal := seedItem(t, svc, "Toor Dal", "20", "40")

	_, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "AW-1",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("50"), RatePerUnit: d("40")},
			{ItemID: dal.ID, Quantity: d("10"), RatePerUnit: d("110")},
		},
	})
	require.NoError(t, err)

	// GIVEN: Enough rice but not enough dal
	// WHEN: Issuing both in one issue
	_, err = svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: fixedNow,
		IssueType: inventory.IssueHandloan,
		Lines: []inventory.IssueLineInput{
			{ItemID: rice.ID, Quantity: d("20"), RatePerUnit: d("40")},
			{ItemID: dal.ID, Quantity: d("15"), RatePerUnit: d("110")},
		},
	})

	// THEN: Neither line is applied
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	got, err := svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", got.CurrentStock.String())
	got, err = svc.GetItem(ctx, dal.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", got.CurrentStock.String())

	issues, err := svc.ListIssues(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestRecordPurchase_DiscountsAndTotals(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Annapurna Wholesale")
	rice := seedItem(t, svc, "Rice", "30", "60")
	sugar := seedItem(t, svc, "Sugar", "10", "25")

	p, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "AW-2",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("10"), RatePerUnit: d("100"),
				Discount: inventory.Discount{Type: inventory.DiscountPercentage, Value: d("5")}},
			{ItemID: sugar.ID, Quantity: d("30"), RatePerUnit: d("44"),
				Discount: inventory.Discount{Type: inventory.DiscountAmount, Value: d("20")}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "950", p.Lines[0].TotalPrice.String())
	assert.Equal(t, "1300", p.Lines[1].TotalPrice.String())
	assert.Equal(t, "2250", p.TotalAmount.String())

	stored, err := store.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, "AW-2", stored.BillNo)
	assert.True(t, stored.TotalAmount.Equal(d("2250")))
}

func TestRecordPurchase_DuplicateItem_ValidationError(t *testing.T) {
	svc, _ := newService(t)
	vendor := seedVendor(t, svc, "Annapurna Wholesale")
	rice := seedItem(t, svc, "Rice", "30", "60")

	_, err := svc.RecordPurchase(context.Background(), inventory.RecordPurchaseCommand{
		BillNo:       "AW-3",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("10"), RatePerUnit: d("40")},
			{ItemID: rice.ID, Quantity: d("5"), RatePerUnit: d("40")},
		},
	})

	require.ErrorIs(t, err, inventory.ErrValidation)
	var verr *inventory.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, inventory.FieldProblem{Field: "lines[1].item_id", Message: "item is listed more than once"})
}

func TestRecordPurchase_InvalidFields_AllReported(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.RecordPurchase(context.Background(), inventory.RecordPurchaseCommand{
		BillNo:       "  ",
		VendorID:     inventory.VendorID(uuid.NewString()),
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: inventory.ItemID(uuid.NewString()), Quantity: d("0"), RatePerUnit: d("-1")},
		},
	})

	var verr *inventory.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		fields = append(fields, p.Field)
	}
	assert.Contains(t, fields, "bill_no")
	assert.Contains(t, fields, "lines[0].quantity")
	assert.Contains(t, fields, "lines[0].rate_per_unit")
}

func TestRates_CappedBelowAmountLimit(t *testing.T) {
	// GIVEN: A rate and an MRP just over 999999.99, still under the amount limit
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Sri Lakshmi Traders")
	rice := seedItem(t, svc, "Rice", "30", "60")
	tooHigh := d("1000000")

	// WHEN: Recording a purchase and issuing at those rates
	_, perr := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "SLT-9",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{{
			ItemID: rice.ID, Quantity: d("1"), RatePerUnit: tooHigh, MRP: decimal.NewNullDecimal(tooHigh),
		}},
	})
	_, ierr := svc.IssueStock(ctx, inventory.IssueStockCommand{
		IssueDate: fixedNow,
		IssueType: inventory.IssueMaster,
		Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: d("1"), RatePerUnit: tooHigh}},
	})

	// THEN: Both are rejected on the rate fields
	var verr *inventory.ValidationError
	require.True(t, errors.As(perr, &verr))
	fields := make([]string, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		fields = append(fields, p.Field)
	}
	assert.Contains(t, fields, "lines[0].rate_per_unit")
	assert.Contains(t, fields, "lines[0].mrp")

	require.True(t, errors.As(ierr, &verr))
	assert.Equal(t, "lines[0].rate_per_unit", verr.Problems[0].Field)

	got, err := svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentStock.IsZero())
}

func TestRecordPurchase_InactiveVendor_Rejected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Closed Traders")
	rice := seedItem(t, svc, "Rice", "30", "60")
	require.NoError(t, svc.DeactivateVendor(ctx, vendor.ID))

	_, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "CT-1",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines:        []inventory.PurchaseLineInput{{ItemID: rice.ID, Quantity: d("10"), RatePerUnit: d("40")}},
	})

	require.ErrorIs(t, err, inventory.ErrValidation)
	got, err := svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentStock.IsZero())
}

func TestRecordPurchase_UnknownItem_NothingWritten(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Annapurna Wholesale")
	rice := seedItem(t, svc, "Rice", "30", "60")

	// GIVEN: A valid first line and a second line for an item that doesn't exist
	_, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "AW-4",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("10"), RatePerUnit: d("40")},
			{ItemID: inventory.ItemID(uuid.NewString()), Quantity: d("5"), RatePerUnit: d("40")},
		},
	})

	// THEN: NotFound and the first line's stock was rolled back
	require.ErrorIs(t, err, inventory.ErrNotFound)
	got, err := svc.GetItem(ctx, rice.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentStock.IsZero())

	purchases, err := svc.ListPurchases(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestEntryDatePolicy(t *testing.T) {
	yesterday := fixedNow.AddDate(0, 0, -1)

	t.Run("previous dates refused when disallowed", func(t *testing.T) {
		svc, _ := newService(t, inventory.WithEntryDatePolicy(datePolicy(false)))
		rice := seedItem(t, svc, "Rice", "30", "60")

		_, err := svc.IssueStock(context.Background(), inventory.IssueStockCommand{
			IssueDate: yesterday,
			IssueType: inventory.IssueMaster,
			Lines:     []inventory.IssueLineInput{{ItemID: rice.ID, Quantity: d("1"), RatePerUnit: d("1")}},
		})

		var verr *inventory.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "issue_date", verr.Problems[0].Field)
	})

	t.Run("previous dates accepted when allowed", func(t *testing.T) {
		svc, _ := newService(t, inventory.WithEntryDatePolicy(datePolicy(true)))
		vendor := seedVendor(t, svc, "Annapurna Wholesale")
		rice := seedItem(t, svc, "Rice", "30", "60")

		p, err := svc.RecordPurchase(context.Background(), inventory.RecordPurchaseCommand{
			BillNo:       "AW-5",
			VendorID:     vendor.ID,
			PurchaseDate: yesterday,
			Lines:        []inventory.PurchaseLineInput{{ItemID: rice.ID, Quantity: d("10"), RatePerUnit: d("40")}},
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-06-14", p.PurchaseDate.Format(inventory.DateLayout))
	})
}

func TestCreateItem_Defaults(t *testing.T) {
	svc, _ := newService(t)

	it, err := svc.CreateItem(context.Background(), inventory.ItemInput{Name: " Salt ", Unit: "kg"})
	require.NoError(t, err)

	assert.Equal(t, "Salt", it.Name)
	assert.Equal(t, "30", it.DangerThreshold.String())
	assert.Equal(t, "60", it.MediumThreshold.String())
	assert.True(t, it.IsActive)
}

func TestCreateItem_InvertedThresholds_Rejected(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateItem(context.Background(), inventory.ItemInput{
		Name: "Salt", Unit: "kg", DangerThreshold: d("60"), MediumThreshold: d("30"),
	})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestUpdateItem_KeepsStock(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	it, err := svc.CreateItem(ctx, inventory.ItemInput{
		Name: "Rice", Unit: "kg", OpeningStock: d("40"), RatePerUnit: d("42"),
		DangerThreshold: d("30"), MediumThreshold: d("60"),
	})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, it.ID, inventory.ItemInput{
		Name: "Sona Masoori Rice", Unit: "kg", OpeningStock: d("999"),
		DangerThreshold: d("10"), MediumThreshold: d("20"),
	})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sona Masoori Rice", got.Name)
	assert.Equal(t, "40", got.CurrentStock.String())
	assert.Equal(t, "42", got.RatePerUnit.String())
	assert.Equal(t, inventory.StatusSufficient, got.Status())
}

func TestDashboard(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	vendor := seedVendor(t, svc, "Annapurna Wholesale")
	rice := seedItem(t, svc, "Rice", "30", "60")
	dal := seedItem(t, svc, "Toor Dal", "20", "40")
	seedItem(t, svc, "Salt", "5", "10")

	_, err := svc.RecordPurchase(ctx, inventory.RecordPurchaseCommand{
		BillNo:       "AW-6",
		VendorID:     vendor.ID,
		PurchaseDate: fixedNow,
		Lines: []inventory.PurchaseLineInput{
			{ItemID: rice.ID, Quantity: d("100"), RatePerUnit: d("40")},
			{ItemID: dal.ID, Quantity: d("30"), RatePerUnit: d("100")},
		},
	})
	require.NoError(t, err)
	_, err = svc.SaveStrengthCategory(ctx, inventory.StrengthCategoryInput{
		CategoryName: "Boys Hostel", StudentCount: 100, AssignedAmount: d("45"), IsActive: true,
	})
	require.NoError(t, err)
	_, err = svc.SaveStrengthCategory(ctx, inventory.StrengthCategoryInput{
		CategoryName: "Staff Mess", StudentCount: 10, AssignedAmount: d("60"), IsActive: false,
	})
	require.NoError(t, err)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, dash.TotalItems)
	assert.Equal(t, 1, dash.DangerCount)
	assert.Equal(t, 1, dash.WarningCount)
	assert.Equal(t, 1, dash.SufficientCount)
	assert.Equal(t, "7000", dash.StockValue.String())
	assert.Equal(t, 100, dash.TotalStudents)
	assert.Equal(t, "4500", dash.DailyBudget.String())
	assert.Equal(t, "45", dash.PerCapita.String())
	require.Len(t, dash.LowStock, 2)
	assert.Equal(t, "Salt", dash.LowStock[0].Name)
	assert.Equal(t, "Toor Dal", dash.LowStock[1].Name)
}

func TestResetDatabase(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _ := newService(t, inventory.WithNotifier(notifier), inventory.WithResetCode("2468"))
	ctx := context.Background()
	seedItem(t, svc, "Rice", "30", "60")

	err := svc.ResetDatabase(ctx, "warden@hostel", "1978")
	require.ErrorIs(t, err, inventory.ErrValidation)
	items, err := svc.ListItems(ctx, true)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, svc.ResetDatabase(ctx, "warden@hostel", "2468"))
	items, err = svc.ListItems(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Contains(t, notifier.calls, "*:reset")
}
