/*
catalog.go - Item and vendor maintenance

PURPOSE:
  Create, edit and soft-delete items and vendors. Item edits change
  metadata only (name, unit, thresholds); stock and rate belong to the
  StockLedger. An opening stock and rate may be given when the item is
  created.

SEE ALSO:
  - validate.go: Field limits
  - stock.go: Stock mutations
*/
package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// ITEMS
// =============================================================================

type ItemInput struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Unit            string          `json:"unit" validate:"required,max=20"`
	OpeningStock    decimal.Decimal `json:"current_stock"`
	RatePerUnit     decimal.Decimal `json:"rate_per_unit"`
	DangerThreshold decimal.Decimal `json:"danger_threshold"`
	MediumThreshold decimal.Decimal `json:"medium_threshold"`
}

// Thresholds used when an item is created without any.
var (
	DefaultDangerThreshold = decimal.NewFromInt(30)
	DefaultMediumThreshold = decimal.NewFromInt(60)
)

func (in *ItemInput) validate() error {
	in.Name = trim(in.Name)
	in.Unit = trim(in.Unit)
	if in.DangerThreshold.IsZero() && in.MediumThreshold.IsZero() {
		in.DangerThreshold = DefaultDangerThreshold
		in.MediumThreshold = DefaultMediumThreshold
	}
	verr := &ValidationError{}
	validateStruct(verr, in)
	checkRange(verr, "current_stock", in.OpeningStock, decimal.Zero, MaxQuantity)
	checkRange(verr, "rate_per_unit", in.RatePerUnit, decimal.Zero, MaxRate)
	checkRange(verr, "danger_threshold", in.DangerThreshold, decimal.Zero, MaxQuantity)
	checkRange(verr, "medium_threshold", in.MediumThreshold, decimal.Zero, MaxQuantity)
	if !in.DangerThreshold.LessThan(in.MediumThreshold) {
		verr.Add("danger_threshold", "must be less than medium_threshold")
	}
	return verr.OrNil()
}

// CreateItem adds an active item with an optional opening stock.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	item := Item{
		ID:              ItemID(uuid.NewString()),
		Name:            in.Name,
		Unit:            in.Unit,
		CurrentStock:    in.OpeningStock,
		RatePerUnit:     in.RatePerUnit,
		DangerThreshold: in.DangerThreshold,
		MediumThreshold: in.MediumThreshold,
		IsActive:        true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.SaveItem(ctx, item); err != nil {
		return nil, Persistence("save item", err)
	}
	s.log.Info("item created", zap.String("item_id", string(item.ID)), zap.String("name", item.Name))
	s.notify(ctx, "items", "insert", string(item.ID))
	return &item, nil
}

// UpdateItem changes name, unit and thresholds. Stock and rate are kept.
func (s *Service) UpdateItem(ctx context.Context, id ItemID, in ItemInput) (*Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Name = in.Name
	item.Unit = in.Unit
	item.DangerThreshold = in.DangerThreshold
	item.MediumThreshold = in.MediumThreshold
	item.UpdatedAt = s.now().UTC()
	if err := s.store.SaveItem(ctx, *item); err != nil {
		return nil, Persistence("save item", err)
	}
	s.notify(ctx, "items", "update", string(id))
	return item, nil
}

// DeactivateItem soft-deletes an item. Its history stays in the ledger.
func (s *Service) DeactivateItem(ctx context.Context, id ItemID) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	item.IsActive = false
	item.UpdatedAt = s.now().UTC()
	if err := s.store.SaveItem(ctx, *item); err != nil {
		return Persistence("save item", err)
	}
	s.notify(ctx, "items", "deactivate", string(id))
	return nil
}

func (s *Service) GetItem(ctx context.Context, id ItemID) (*Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, Persistence("get item", err)
	}
	if item == nil {
		return nil, &NotFoundError{Kind: "item", ID: string(id)}
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, includeInactive bool) ([]Item, error) {
	items, err := s.store.ListItems(ctx, includeInactive)
	return items, Persistence("list items", err)
}

// =============================================================================
// VENDORS
// =============================================================================

type VendorInput struct {
	Name          string `json:"name" validate:"required,max=100"`
	ContactPerson string `json:"contact_person" validate:"max=100"`
	Phone         string `json:"phone" validate:"omitempty,len=10,numeric"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	Address       string `json:"address" validate:"max=500"`
}

func (in *VendorInput) validate() error {
	in.Name = trim(in.Name)
	in.ContactPerson = trim(in.ContactPerson)
	in.Phone = trim(in.Phone)
	in.Email = trim(in.Email)
	in.Address = trim(in.Address)
	verr := &ValidationError{}
	validateStruct(verr, in)
	return verr.OrNil()
}

func (s *Service) CreateVendor(ctx context.Context, in VendorInput) (*Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	v := Vendor{
		ID:            VendorID(uuid.NewString()),
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Phone:         in.Phone,
		Email:         in.Email,
		Address:       in.Address,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveVendor(ctx, v); err != nil {
		return nil, Persistence("save vendor", err)
	}
	s.notify(ctx, "vendors", "insert", string(v.ID))
	return &v, nil
}

func (s *Service) UpdateVendor(ctx context.Context, id VendorID, in VendorInput) (*Vendor, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	v, err := s.GetVendor(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Name = in.Name
	v.ContactPerson = in.ContactPerson
	v.Phone = in.Phone
	v.Email = in.Email
	v.Address = in.Address
	v.UpdatedAt = s.now().UTC()
	if err := s.store.SaveVendor(ctx, *v); err != nil {
		return nil, Persistence("save vendor", err)
	}
	s.notify(ctx, "vendors", "update", string(id))
	return v, nil
}

func (s *Service) DeactivateVendor(ctx context.Context, id VendorID) error {
	v, err := s.GetVendor(ctx, id)
	if err != nil {
		return err
	}
	v.IsActive = false
	v.UpdatedAt = s.now().UTC()
	if err := s.store.SaveVendor(ctx, *v); err != nil {
		return Persistence("save vendor", err)
	}
	s.notify(ctx, "vendors", "deactivate", string(id))
	return nil
}

func (s *Service) GetVendor(ctx context.Context, id VendorID) (*Vendor, error) {
	v, err := s.store.GetVendor(ctx, id)
	if err != nil {
		return nil, Persistence("get vendor", err)
	}
	if v == nil {
		return nil, &NotFoundError{Kind: "vendor", ID: string(id)}
	}
	return v, nil
}

func (s *Service) ListVendors(ctx context.Context, includeInactive bool) ([]Vendor, error) {
	vs, err := s.store.ListVendors(ctx, includeInactive)
	return vs, Persistence("list vendors", err)
}
