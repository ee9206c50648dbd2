/*
service.go - Purchase and issue commands

PURPOSE:
  The write side of the inventory engine. RecordPurchase and IssueStock
  validate their input, then write the header, the lines and every stock
  movement inside ONE storage transaction. Either the whole command is
  visible afterwards or none of it is.

COMMAND FLOW:
  1. Validate fields (validate.go) and the entry date against the
     previous-date policy
  2. WithTx:
     a. check the vendor (purchases)
     b. apply each line through the StockLedger
     c. insert header + lines
  3. Publish a change notification after commit

ENTRY DATE POLICY:
  When previous-date entry is disallowed, purchases and issues dated
  before today (in the configured location) are rejected.

SEE ALSO:
  - stock.go: Stock mutations
  - catalog.go: Items and vendors
  - registers.go: Strength categories, utensils, dashboard, reset
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Notifier receives a message after every committed change.
type Notifier interface {
	Notify(ctx context.Context, table, action string, ids ...string)
}

// EntryDatePolicy decides whether back-dated entries are accepted.
type EntryDatePolicy interface {
	AllowPreviousDateEntry() bool
}

// Service executes inventory commands against a TxStore.
type Service struct {
	store     TxStore
	log       *zap.Logger
	notifier  Notifier
	policy    EntryDatePolicy
	now       func() time.Time
	loc       *time.Location
	resetCode string
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithEntryDatePolicy(p EntryDatePolicy) Option { return func(s *Service) { s.policy = p } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithResetCode sets the confirmation code required by ResetDatabase.
func WithResetCode(code string) Option { return func(s *Service) { s.resetCode = code } }

// DefaultResetCode is the confirmation code when none is configured.
const DefaultResetCode = "1978"

func NewService(store TxStore, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:     store,
		log:       log.Named("inventory"),
		now:       time.Now,
		loc:       time.UTC,
		resetCode: DefaultResetCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store for read paths.
func (s *Service) Store() TxStore { return s.store }

func (s *Service) notify(ctx context.Context, table, action string, ids ...string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, table, action, ids...)
	}
}

// Today is the current business date as UTC midnight.
func (s *Service) Today() time.Time {
	return DateOf(s.now(), s.loc)
}

func (s *Service) checkEntryDate(verr *ValidationError, field string, date time.Time) {
	if date.IsZero() || s.policy == nil || s.policy.AllowPreviousDateEntry() {
		return
	}
	if DateOf(date, time.UTC).Before(s.Today()) {
		verr.Add(field, "previous dates are not allowed")
	}
}

// =============================================================================
// RECORD PURCHASE
// =============================================================================

type PurchaseLineInput struct {
	ItemID          ItemID              `json:"item_id" validate:"required,uuid"`
	Quantity        decimal.Decimal     `json:"quantity"`
	DamagedQuantity decimal.Decimal     `json:"damaged_quantity"`
	RatePerUnit     decimal.Decimal     `json:"rate_per_unit"`
	MRP             decimal.NullDecimal `json:"mrp"`
	Discount        Discount            `json:"discount"`
}

type RecordPurchaseCommand struct {
	BillNo       string              `json:"bill_no" validate:"required,max=50"`
	VendorID     VendorID            `json:"vendor_id" validate:"required,uuid"`
	PurchaseDate time.Time           `json:"purchase_date" validate:"required"`
	Lines        []PurchaseLineInput `json:"lines" validate:"required,min=1,max=100,dive"`
}

func (s *Service) validatePurchase(cmd *RecordPurchaseCommand) error {
	cmd.BillNo = trim(cmd.BillNo)
	verr := &ValidationError{}
	validateStruct(verr, cmd)
	s.checkEntryDate(verr, "purchase_date", cmd.PurchaseDate)

	seen := make(map[ItemID]bool, len(cmd.Lines))
	for i, l := range cmd.Lines {
		f := fmt.Sprintf("lines[%d]", i)
		checkPositive(verr, f+".quantity", l.Quantity, MaxQuantity)
		checkRange(verr, f+".damaged_quantity", l.DamagedQuantity, decimal.Zero, decimal.Max(l.Quantity, decimal.Zero))
		checkPositive(verr, f+".rate_per_unit", l.RatePerUnit, MaxRate)
		if l.MRP.Valid {
			checkPositive(verr, f+".mrp", l.MRP.Decimal, MaxRate)
		}
		checkDiscount(verr, f+".discount", l.Discount, l.Quantity.Mul(l.RatePerUnit))
		if seen[l.ItemID] {
			verr.Add(f+".item_id", "item is listed more than once")
		}
		seen[l.ItemID] = true
	}
	return verr.OrNil()
}

// RecordPurchase writes a purchase and adds its lines to stock atomically.
func (s *Service) RecordPurchase(ctx context.Context, cmd RecordPurchaseCommand) (*Purchase, error) {
	if err := s.validatePurchase(&cmd); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := Purchase{
		ID:           PurchaseID(uuid.NewString()),
		BillNo:       cmd.BillNo,
		VendorID:     cmd.VendorID,
		PurchaseDate: DateOf(cmd.PurchaseDate, time.UTC),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		vendor, err := tx.GetVendor(ctx, cmd.VendorID)
		if err != nil {
			return Persistence("get vendor", err)
		}
		if vendor == nil {
			return &NotFoundError{Kind: "vendor", ID: string(cmd.VendorID)}
		}
		if !vendor.IsActive {
			return NewValidationError("vendor_id", "vendor "+vendor.Name+" is inactive")
		}

		ledger := NewStockLedger(tx, s.log)
		total := decimal.Zero
		for _, in := range cmd.Lines {
			if _, err := ledger.ApplyPurchaseLine(ctx, in.ItemID, in.Quantity, in.DamagedQuantity, in.RatePerUnit); err != nil {
				return err
			}
			line := PurchaseLine{
				ID:              LineID(uuid.NewString()),
				PurchaseID:      p.ID,
				ItemID:          in.ItemID,
				Quantity:        in.Quantity,
				DamagedQuantity: in.DamagedQuantity,
				RatePerUnit:     in.RatePerUnit,
				MRP:             in.MRP,
				Discount:        in.Discount,
				TotalPrice:      PurchaseLineTotal(in.Quantity, in.RatePerUnit, in.Discount),
				CreatedAt:       now,
			}
			total = total.Add(line.TotalPrice)
			p.Lines = append(p.Lines, line)
		}
		p.TotalAmount = total

		return Persistence("insert purchase", tx.InsertPurchase(ctx, p))
	})
	if err != nil {
		s.log.Warn("purchase rejected", zap.String("bill_no", cmd.BillNo), zap.Error(err))
		return nil, err
	}

	s.log.Info("purchase recorded",
		zap.String("purchase_id", string(p.ID)),
		zap.String("bill_no", p.BillNo),
		zap.Int("lines", len(p.Lines)),
		zap.String("total", p.TotalAmount.String()))
	s.notify(ctx, "purchases", "insert", string(p.ID))
	return &p, nil
}

// =============================================================================
// ISSUE STOCK
// =============================================================================

type IssueLineInput struct {
	ItemID      ItemID          `json:"item_id" validate:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
}

type IssueStockCommand struct {
	IssueDate time.Time        `json:"issue_date" validate:"required"`
	IssueType IssueType        `json:"issue_type" validate:"required,oneof=Master Handloan"`
	Lines     []IssueLineInput `json:"lines" validate:"required,min=1,max=100,dive"`
}

func (s *Service) validateIssue(cmd *IssueStockCommand) error {
	verr := &ValidationError{}
	validateStruct(verr, cmd)
	s.checkEntryDate(verr, "issue_date", cmd.IssueDate)

	seen := make(map[ItemID]bool, len(cmd.Lines))
	for i, l := range cmd.Lines {
		f := fmt.Sprintf("lines[%d]", i)
		checkPositive(verr, f+".quantity", l.Quantity, MaxQuantity)
		checkPositive(verr, f+".rate_per_unit", l.RatePerUnit, MaxRate)
		if seen[l.ItemID] {
			verr.Add(f+".item_id", "item is listed more than once")
		}
		seen[l.ItemID] = true
	}
	return verr.OrNil()
}

// IssueStock removes stock for every line atomically. If any line asks for
// more than is in stock, nothing is written and InsufficientStockError is
// returned.
func (s *Service) IssueStock(ctx context.Context, cmd IssueStockCommand) (*StockIssue, error) {
	if err := s.validateIssue(&cmd); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	issue := StockIssue{
		ID:        IssueID(uuid.NewString()),
		IssueDate: DateOf(cmd.IssueDate, time.UTC),
		IssueType: cmd.IssueType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx Store) error {
		ledger := NewStockLedger(tx, s.log)
		total := decimal.Zero
		for _, in := range cmd.Lines {
			if _, err := ledger.ApplyIssueLine(ctx, in.ItemID, in.Quantity); err != nil {
				return err
			}
			line := IssueLine{
				ID:          LineID(uuid.NewString()),
				IssueID:     issue.ID,
				ItemID:      in.ItemID,
				Quantity:    in.Quantity,
				RatePerUnit: in.RatePerUnit,
				TotalPrice:  in.Quantity.Mul(in.RatePerUnit).Round(2),
				CreatedAt:   now,
			}
			total = total.Add(line.TotalPrice)
			issue.Lines = append(issue.Lines, line)
		}
		issue.TotalValue = total

		return Persistence("insert issue", tx.InsertIssue(ctx, issue))
	})
	if err != nil {
		s.log.Warn("issue rejected", zap.String("issue_type", string(cmd.IssueType)), zap.Error(err))
		return nil, err
	}

	s.log.Info("stock issued",
		zap.String("issue_id", string(issue.ID)),
		zap.String("issue_type", string(issue.IssueType)),
		zap.Int("lines", len(issue.Lines)),
		zap.String("total", issue.TotalValue.String()))
	s.notify(ctx, "stock_issues", "insert", string(issue.ID))
	return &issue, nil
}

// ListPurchases returns the most recent purchases with their lines.
func (s *Service) ListPurchases(ctx context.Context, limit int) ([]Purchase, error) {
	ps, err := s.store.ListPurchases(ctx, limit)
	return ps, Persistence("list purchases", err)
}

// ListIssues returns the most recent stock issues with their lines.
func (s *Service) ListIssues(ctx context.Context, limit int) ([]StockIssue, error) {
	is, err := s.store.ListIssues(ctx, limit)
	return is, Persistence("list issues", err)
}
