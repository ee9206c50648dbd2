/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (inventory, report, settings) from the external API
  contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Decimals are JSON strings ("12.50"); numbers are accepted on input.
  Business dates are "YYYY-MM-DD"; timestamps are RFC 3339.

VALIDATION:
  Validation is done by the domain services. Handlers only parse dates
  and decimals.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string                   `json:"error"`
	Details  string                   `json:"details,omitempty"`
	Problems []inventory.FieldProblem `json:"problems,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ItemDTO struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	CurrentStock    decimal.Decimal `json:"current_stock"`
	RatePerUnit     decimal.Decimal `json:"rate_per_unit"`
	DangerThreshold decimal.Decimal `json:"danger_threshold"`
	MediumThreshold decimal.Decimal `json:"medium_threshold"`
	Status          string          `json:"status"`
	FillLevel       decimal.Decimal `json:"fill_level"`
	StockValue      decimal.Decimal `json:"stock_value"`
	IsActive        bool            `json:"is_active"`
	Version         int64           `json:"version"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func toItemDTO(it inventory.Item) ItemDTO {
	return ItemDTO{
		ID:              string(it.ID),
		Name:            it.Name,
		Unit:            it.Unit,
		CurrentStock:    it.CurrentStock,
		RatePerUnit:     it.RatePerUnit,
		DangerThreshold: it.DangerThreshold,
		MediumThreshold: it.MediumThreshold,
		Status:          string(it.Status()),
		FillLevel:       it.FillLevel(),
		StockValue:      it.StockValue().Round(2),
		IsActive:        it.IsActive,
		Version:         it.Version,
		CreatedAt:       it.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       it.UpdatedAt.Format(time.RFC3339),
	}
}

type VendorDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

func toVendorDTO(v inventory.Vendor) VendorDTO {
	return VendorDTO{
		ID:            string(v.ID),
		Name:          v.Name,
		ContactPerson: v.ContactPerson,
		Phone:         v.Phone,
		Email:         v.Email,
		Address:       v.Address,
		IsActive:      v.IsActive,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PURCHASES AND ISSUES
// =============================================================================

type PurchaseLineRequest struct {
	ItemID          string              `json:"item_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	DamagedQuantity decimal.Decimal     `json:"damaged_quantity"`
	RatePerUnit     decimal.Decimal     `json:"rate_per_unit"`
	MRP             decimal.NullDecimal `json:"mrp"`
	DiscountType    string              `json:"discount_type"`
	DiscountValue   decimal.Decimal     `json:"discount_value"`
}

type RecordPurchaseRequest struct {
	BillNo       string                `json:"bill_no"`
	VendorID     string                `json:"vendor_id"`
	PurchaseDate string                `json:"purchase_date"`
	Lines        []PurchaseLineRequest `json:"lines"`
}

type PurchaseLineDTO struct {
	ID              string              `json:"id"`
	ItemID          string              `json:"item_id"`
	Quantity        decimal.Decimal     `json:"quantity"`
	DamagedQuantity decimal.Decimal     `json:"damaged_quantity"`
	RatePerUnit     decimal.Decimal     `json:"rate_per_unit"`
	MRP             decimal.NullDecimal `json:"mrp"`
	DiscountType    string              `json:"discount_type,omitempty"`
	DiscountValue   decimal.Decimal     `json:"discount_value"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
}

type PurchaseDTO struct {
	ID           string            `json:"id"`
	BillNo       string            `json:"bill_no"`
	VendorID     string            `json:"vendor_id"`
	PurchaseDate string            `json:"purchase_date"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Lines        []PurchaseLineDTO `json:"lines"`
	CreatedAt    string            `json:"created_at"`
}

func toPurchaseDTO(p inventory.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:           string(p.ID),
		BillNo:       p.BillNo,
		VendorID:     string(p.VendorID),
		PurchaseDate: p.PurchaseDate.Format(inventory.DateLayout),
		TotalAmount:  p.TotalAmount,
		Lines:        make([]PurchaseLineDTO, len(p.Lines)),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	for i, l := range p.Lines {
		dto.Lines[i] = PurchaseLineDTO{
			ID:              string(l.ID),
			ItemID:          string(l.ItemID),
			Quantity:        l.Quantity,
			DamagedQuantity: l.DamagedQuantity,
			RatePerUnit:     l.RatePerUnit,
			MRP:             l.MRP,
			DiscountType:    string(l.Discount.Type),
			DiscountValue:   l.Discount.Value,
			TotalPrice:      l.TotalPrice,
		}
	}
	return dto
}

type IssueLineRequest struct {
	ItemID      string          `json:"item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
}

type IssueStockRequest struct {
	IssueDate string             `json:"issue_date"`
	IssueType string             `json:"issue_type"`
	Lines     []IssueLineRequest `json:"lines"`
}

type IssueLineDTO struct {
	ID          string          `json:"id"`
	ItemID      string          `json:"item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	RatePerUnit decimal.Decimal `json:"rate_per_unit"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type IssueDTO struct {
	ID         string          `json:"id"`
	IssueDate  string          `json:"issue_date"`
	IssueType  string          `json:"issue_type"`
	TotalValue decimal.Decimal `json:"total_value"`
	Lines      []IssueLineDTO  `json:"lines"`
	CreatedAt  string          `json:"created_at"`
}

func toIssueDTO(is inventory.StockIssue) IssueDTO {
	dto := IssueDTO{
		ID:         string(is.ID),
		IssueDate:  is.IssueDate.Format(inventory.DateLayout),
		IssueType:  string(is.IssueType),
		TotalValue: is.TotalValue,
		Lines:      make([]IssueLineDTO, len(is.Lines)),
		CreatedAt:  is.CreatedAt.Format(time.RFC3339),
	}
	for i, l := range is.Lines {
		dto.Lines[i] = IssueLineDTO{
			ID:          string(l.ID),
			ItemID:      string(l.ItemID),
			Quantity:    l.Quantity,
			RatePerUnit: l.RatePerUnit,
			TotalPrice:  l.TotalPrice,
		}
	}
	return dto
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerRowDTO struct {
	SNo                   int             `json:"s_no"`
	TransactionID         string          `json:"transaction_id"`
	ItemID                string          `json:"item_id"`
	TransactionType       string          `json:"transaction_type"`
	Date                  string          `json:"date"`
	ItemName              string          `json:"item_name"`
	Unit                  string          `json:"unit"`
	VendorName            string          `json:"vendor_name"`
	Reference             string          `json:"reference"`
	PurchasedQuantity     decimal.Decimal `json:"purchased_quantity"`
	PurchasedAmount       decimal.Decimal `json:"purchased_amount"`
	IssuedQuantity        decimal.Decimal `json:"issued_quantity"`
	IssuedAmount          decimal.Decimal `json:"issued_amount"`
	BalanceQuantity       decimal.Decimal `json:"balance_quantity"`
	BalanceAmount         decimal.Decimal `json:"balance_amount"`
	ComputedBalanceQty    decimal.Decimal `json:"computed_balance_quantity"`
	ComputedBalanceAmount decimal.Decimal `json:"computed_balance_amount"`
	CustomBalanceQuantity bool            `json:"custom_balance_quantity"`
	CustomBalanceAmount   bool            `json:"custom_balance_amount"`
	PrincipalSignature    string          `json:"principal_signature"`
	DepWardenSignature    string          `json:"dep_warden_signature"`
	Remarks               string          `json:"remarks"`
}

func toLedgerRowDTO(r report.Row) LedgerRowDTO {
	return LedgerRowDTO{
		SNo:                   r.SNo,
		TransactionID:         r.TransactionID,
		ItemID:                string(r.ItemID),
		TransactionType:       string(r.Type),
		Date:                  r.Date.Format(inventory.DateLayout),
		ItemName:              r.ItemName,
		Unit:                  r.Unit,
		VendorName:            r.VendorName,
		Reference:             r.Reference,
		PurchasedQuantity:     r.PurchasedQuantity,
		PurchasedAmount:       r.PurchasedAmount,
		IssuedQuantity:        r.IssuedQuantity,
		IssuedAmount:          r.IssuedAmount,
		BalanceQuantity:       r.BalanceQuantity,
		BalanceAmount:         r.BalanceAmount,
		ComputedBalanceQty:    r.ComputedBalanceQuantity,
		ComputedBalanceAmount: r.ComputedBalanceAmount,
		CustomBalanceQuantity: r.CustomBalanceQuantity,
		CustomBalanceAmount:   r.CustomBalanceAmount,
		PrincipalSignature:    r.PrincipalSignature,
		DepWardenSignature:    r.DepWardenSignature,
		Remarks:               r.Remarks,
	}
}

// UpdateCellRequest edits one cell of the ledger grid.
type UpdateCellRequest struct {
	report.Key
	Field string `json:"field"`
	Value string `json:"value"`
}

// AnnotateRequest sets overlay fields. Absent fields are left unchanged;
// null or an empty string clears a custom balance.
type AnnotateRequest struct {
	report.Key
	PrincipalSignature    *string         `json:"principal_signature"`
	DepWardenSignature    *string         `json:"dep_warden_signature"`
	Remarks               *string         `json:"remarks"`
	CustomBalanceQuantity OptionalDecimal `json:"custom_balance_quantity"`
	CustomBalanceAmount   OptionalDecimal `json:"custom_balance_amount"`
}

// OptionalDecimal tells an absent field from an explicit null. Present is
// set whenever the key appears in the body; Value is invalid for null.
type OptionalDecimal struct {
	Present bool
	Value   decimal.NullDecimal
}

var errNotANumber = errors.New("must be a number or null")

func (o *OptionalDecimal) UnmarshalJSON(b []byte) error {
	o.Present = true
	o.Value = decimal.NullDecimal{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return errNotANumber
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return errNotANumber
	}
	o.Value = decimal.NewNullDecimal(d)
	return nil
}

// Patch returns the value to write, or nil when the field was absent.
func (o OptionalDecimal) Patch() *decimal.NullDecimal {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}

type CorrectionRequest struct {
	report.Key
	Field string          `json:"field"`
	Value decimal.Decimal `json:"value"`
}

type MetadataDTO struct {
	TransactionID         string              `json:"transaction_id"`
	ItemID                string              `json:"item_id"`
	TransactionType       string              `json:"transaction_type"`
	PrincipalSignature    string              `json:"principal_signature"`
	DepWardenSignature    string              `json:"dep_warden_signature"`
	Remarks               string              `json:"remarks"`
	CustomBalanceQuantity decimal.NullDecimal `json:"custom_balance_quantity"`
	CustomBalanceAmount   decimal.NullDecimal `json:"custom_balance_amount"`
	UpdatedAt             string              `json:"updated_at"`
}

func toMetadataDTO(m report.Metadata) MetadataDTO {
	return MetadataDTO{
		TransactionID:         m.TransactionID,
		ItemID:                string(m.ItemID),
		TransactionType:       string(m.Type),
		PrincipalSignature:    m.PrincipalSignature,
		DepWardenSignature:    m.DepWardenSignature,
		Remarks:               m.Remarks,
		CustomBalanceQuantity: m.CustomBalanceQuantity,
		CustomBalanceAmount:   m.CustomBalanceAmount,
		UpdatedAt:             m.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// REGISTERS AND DASHBOARD
// =============================================================================

type StrengthCategoryDTO struct {
	ID             string          `json:"id"`
	CategoryName   string          `json:"category_name"`
	StudentCount   int             `json:"student_count"`
	AssignedAmount decimal.Decimal `json:"assigned_amount"`
	IsActive       bool            `json:"is_active"`
}

func toStrengthCategoryDTO(c inventory.StrengthCategory) StrengthCategoryDTO {
	return StrengthCategoryDTO{
		ID:             c.ID,
		CategoryName:   c.CategoryName,
		StudentCount:   c.StudentCount,
		AssignedAmount: c.AssignedAmount,
		IsActive:       c.IsActive,
	}
}

type BudgetDTO struct {
	Categories    []StrengthCategoryDTO `json:"categories"`
	TotalStudents int                   `json:"total_students"`
	DailyBudget   decimal.Decimal       `json:"daily_budget"`
}

type UtensilDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Capacity          string `json:"capacity"`
	CurrentQuantity   int    `json:"current_quantity"`
	DamagedQuantity   int    `json:"damaged_quantity"`
	ReplacementNeeded int    `json:"replacement_needed"`
	Unit              string `json:"unit"`
}

func toUtensilDTO(u inventory.Utensil) UtensilDTO {
	return UtensilDTO{
		ID:                u.ID,
		Name:              u.Name,
		Capacity:          u.Capacity,
		CurrentQuantity:   u.CurrentQuantity,
		DamagedQuantity:   u.DamagedQuantity,
		ReplacementNeeded: u.ReplacementNeeded,
		Unit:              u.Unit,
	}
}

type DashboardDTO struct {
	TotalItems      int             `json:"total_items"`
	DangerCount     int             `json:"danger_count"`
	WarningCount    int             `json:"warning_count"`
	SufficientCount int             `json:"sufficient_count"`
	StockValue      decimal.Decimal `json:"stock_value"`
	TotalStudents   int             `json:"total_students"`
	DailyBudget     decimal.Decimal `json:"daily_budget"`
	PerCapita       decimal.Decimal `json:"per_capita"`
	LowStock        []ItemDTO       `json:"low_stock"`
}

// =============================================================================
// SETTINGS AND ADMIN
// =============================================================================

type PasswordRequest struct {
	Password        string `json:"password"`
	CurrentPassword string `json:"current_password"`
}

type ResetRequest struct {
	ConfirmationCode string `json:"confirmation_code"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
