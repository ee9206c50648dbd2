// Package memstore provides an in-memory report.Source and report.OverlayStore.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu               sync.RWMutex
	purchases        []report.PurchaseRecord // ordered by date, then insertion
	issues           []report.IssueRecord
	metadata         map[report.Key]report.Metadata
	failVendorLookup error
}

func NewMemory() *Memory {
	return &Memory{metadata: make(map[report.Key]report.Metadata)}
}

// AddPurchase records a purchase line. Records are kept in date order.
func (m *Memory) AddPurchase(p report.PurchaseRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.purchases), func(i int) bool {
		return m.purchases[i].Date.After(p.Date)
	})
	m.purchases = append(m.purchases, report.PurchaseRecord{})
	copy(m.purchases[i+1:], m.purchases[i:])
	m.purchases[i] = p
}

// AddIssue records an issue line.
func (m *Memory) AddIssue(is report.IssueRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.issues), func(i int) bool {
		return m.issues[i].Date.After(is.Date)
	})
	m.issues = append(m.issues, report.IssueRecord{})
	copy(m.issues[i+1:], m.issues[i:])
	m.issues[i] = is
}

// FailVendorLookups makes LatestPurchaseVendor return err until reset with nil.
func (m *Memory) FailVendorLookups(err error) {
	m.mu.Lock()
	m.failVendorLookup = err
	m.mu.Unlock()
}

// =============================================================================
// report.Source
// =============================================================================

func (m *Memory) PurchaseRecords(_ context.Context) ([]report.PurchaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]report.PurchaseRecord(nil), m.purchases...), nil
}

func (m *Memory) IssueRecords(_ context.Context) ([]report.IssueRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]report.IssueRecord(nil), m.issues...), nil
}

func (m *Memory) LatestPurchaseVendor(_ context.Context, itemID inventory.ItemID) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failVendorLookup != nil {
		return "", false, m.failVendorLookup
	}

	// Date order, so the last match is the latest purchase.
	for i := len(m.purchases) - 1; i >= 0; i-- {
		if m.purchases[i].ItemID == itemID {
			return m.purchases[i].VendorName, true, nil
		}
	}
	return "", false, nil
}

// =============================================================================
// report.OverlayStore
// =============================================================================

func (m *Memory) UpsertMetadata(_ context.Context, key report.Key, a report.Annotation, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.metadata[key]
	if !ok {
		md = report.Metadata{Key: key, CreatedAt: now}
	}
	if a.PrincipalSignature != nil {
		md.PrincipalSignature = *a.PrincipalSignature
	}
	if a.DepWardenSignature != nil {
		md.DepWardenSignature = *a.DepWardenSignature
	}
	if a.Remarks != nil {
		md.Remarks = *a.Remarks
	}
	if a.CustomBalanceQuantity != nil {
		md.CustomBalanceQuantity = *a.CustomBalanceQuantity
	}
	if a.CustomBalanceAmount != nil {
		md.CustomBalanceAmount = *a.CustomBalanceAmount
	}
	md.UpdatedAt = now
	m.metadata[key] = md
	return nil
}

func (m *Memory) GetMetadata(_ context.Context, key report.Key) (*report.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.metadata[key]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (m *Memory) ListMetadata(_ context.Context) ([]report.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]report.Metadata, 0, len(m.metadata))
	for _, md := range m.metadata {
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

// Balance is a convenience for tests: the sum of effective quantities
// bought minus issued for an item.
func (m *Memory) Balance(itemID inventory.ItemID) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, p := range m.purchases {
		if p.ItemID == itemID {
			total = total.Add(p.Quantity).Sub(p.DamagedQuantity)
		}
	}
	for _, is := range m.issues {
		if is.ItemID == itemID {
			total = total.Sub(is.Quantity)
		}
	}
	return total
}
