package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/provision-ledger/inventory"
)

// racingItemStore holds one item and loses the version race a fixed
// number of times. Each lost race lets a concurrent writer take steal
// from the stock first.
type racingItemStore struct {
	item      inventory.Item
	conflicts int
	steal     decimal.Decimal
	writes    int
}

func (s *racingItemStore) GetItem(_ context.Context, id inventory.ItemID) (*inventory.Item, error) {
	if id != s.item.ID {
		return nil, nil
	}
	cp := s.item
	return &cp, nil
}

func (s *racingItemStore) ListItems(context.Context, bool) ([]inventory.Item, error) {
	return []inventory.Item{s.item}, nil
}

func (s *racingItemStore) SaveItem(context.Context, inventory.Item) error { return nil }

func (s *racingItemStore) UpdateItemStock(_ context.Context, _ inventory.ItemID, stock, rate decimal.Decimal, expected int64) error {
	s.writes++
	if s.conflicts > 0 {
		s.conflicts--
		s.item.CurrentStock = s.item.CurrentStock.Sub(s.steal)
		s.item.Version++
		return inventory.ErrConflict
	}
	if expected != s.item.Version {
		return inventory.ErrConflict
	}
	s.item.CurrentStock = stock
	s.item.RatePerUnit = rate
	s.item.Version++
	return nil
}

func newRacingStore(stock string) *racingItemStore {
	return &racingItemStore{
		item: inventory.Item{
			ID:              "item-1",
			Name:            "Rice",
			Unit:            "kg",
			CurrentStock:    d(stock),
			RatePerUnit:     d("45"),
			DangerThreshold: d("30"),
			MediumThreshold: d("60"),
			IsActive:        true,
			Version:         1,
		},
		steal: decimal.Zero,
	}
}

func TestStockLedger_Purchase_AddsEffectiveQuantityAndSetsRate(t *testing.T) {
	store := newRacingStore("0")
	ledger := inventory.NewStockLedger(store, nil)

	item, err := ledger.ApplyPurchaseLine(context.Background(), "item-1", d("100"), d("2"), d("47.5"))
	require.NoError(t, err)

	assert.Equal(t, "98", item.CurrentStock.String())
	assert.Equal(t, "47.5", item.RatePerUnit.String())
	assert.Equal(t, int64(2), item.Version)
}

func TestStockLedger_Issue_KeepsRate(t *testing.T) {
	store := newRacingStore("98")
	ledger := inventory.NewStockLedger(store, nil)

	item, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("80"))
	require.NoError(t, err)

	assert.Equal(t, "18", item.CurrentStock.String())
	assert.Equal(t, "45", item.RatePerUnit.String())
	assert.Equal(t, inventory.StatusDanger, item.Status())
}

func TestStockLedger_Issue_MoreThanStock_Rejected(t *testing.T) {
	store := newRacingStore("18")
	ledger := inventory.NewStockLedger(store, nil)

	_, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("30"))

	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var shortage *inventory.InsufficientStockError
	require.True(t, errors.As(err, &shortage))
	assert.Equal(t, "18", shortage.Available.String())
	assert.Equal(t, "12", shortage.Shortfall.String())
	assert.Equal(t, "18", store.item.CurrentStock.String())
	assert.Zero(t, store.writes)
}

func TestStockLedger_Issue_ExactStock_LeavesZero(t *testing.T) {
	store := newRacingStore("18")
	ledger := inventory.NewStockLedger(store, nil)

	item, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("18"))
	require.NoError(t, err)
	assert.True(t, item.CurrentStock.IsZero())
}

func TestStockLedger_InvalidQuantities(t *testing.T) {
	ledger := inventory.NewStockLedger(newRacingStore("10"), nil)
	ctx := context.Background()

	_, err := ledger.ApplyIssueLine(ctx, "item-1", d("0"))
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = ledger.ApplyPurchaseLine(ctx, "item-1", d("5"), d("6"), d("10"))
	assert.ErrorIs(t, err, inventory.ErrValidation, "damaged above quantity")

	_, err = ledger.ApplyPurchaseLine(ctx, "item-1", d("5"), d("0"), d("0"))
	assert.ErrorIs(t, err, inventory.ErrValidation, "zero rate")
}

func TestStockLedger_UnknownItem_NotFound(t *testing.T) {
	ledger := inventory.NewStockLedger(newRacingStore("10"), nil)

	_, err := ledger.ApplyIssueLine(context.Background(), "missing", d("1"))
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestStockLedger_InactiveItem_Rejected(t *testing.T) {
	store := newRacingStore("10")
	store.item.IsActive = false
	ledger := inventory.NewStockLedger(store, nil)

	_, err := ledger.ApplyPurchaseLine(context.Background(), "item-1", d("1"), d("0"), d("10"))
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestStockLedger_Conflict_RechecksAgainstFreshStock(t *testing.T) {
	// GIVEN: Stock 15 and a concurrent writer that issues 5 before our
	// first write lands
	store := newRacingStore("15")
	store.conflicts = 1
	store.steal = d("5")
	ledger := inventory.NewStockLedger(store, nil)

	// WHEN: Issuing 10
	item, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("10"))

	// THEN: The retry re-reads 10 and issues all of it
	require.NoError(t, err)
	assert.True(t, item.CurrentStock.IsZero())
	assert.Equal(t, 2, store.writes)
}

func TestStockLedger_Conflict_NeverGoesNegative(t *testing.T) {
	// GIVEN: Stock 15 and two concurrent issues of 5 that win the race
	store := newRacingStore("15")
	store.conflicts = 2
	store.steal = d("5")
	ledger := inventory.NewStockLedger(store, nil)

	// WHEN: Issuing 10
	_, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("10"))

	// THEN: Only 5 is left after the retries, so the issue is refused
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, "5", store.item.CurrentStock.String())
}

func TestStockLedger_Conflict_RetriesExhausted(t *testing.T) {
	store := newRacingStore("15")
	store.conflicts = 100
	ledger := inventory.NewStockLedger(store, nil)
	ledger.MaxRetries = 2

	_, err := ledger.ApplyIssueLine(context.Background(), "item-1", d("1"))

	require.ErrorIs(t, err, inventory.ErrConflict)
	assert.True(t, inventory.IsRetryable(err))
	assert.Equal(t, 3, store.writes)
}

func TestStockLedger_Adjust(t *testing.T) {
	store := newRacingStore("18")
	ledger := inventory.NewStockLedger(store, nil)
	ctx := context.Background()

	item, err := ledger.Adjust(ctx, "item-1", d("-8"))
	require.NoError(t, err)
	assert.Equal(t, "10", item.CurrentStock.String())

	_, err = ledger.Adjust(ctx, "item-1", d("-11"))
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	item, err = ledger.Adjust(ctx, "item-1", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "10", item.CurrentStock.String())
}
