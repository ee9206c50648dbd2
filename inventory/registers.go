/*
registers.go - Strength categories, utensils, dashboard and reset

PURPOSE:
  The smaller registers that sit around the stock engine:
  - Strength categories drive the daily budget:
      budget = sum(student_count x assigned_amount) over active categories
  - Utensils are a plain equipment register
  - Dashboard aggregates stock status and budget figures
  - ResetDatabase wipes all business rows behind a confirmation code

SEE ALSO:
  - classify.go: Status counts on the dashboard
  - store.go: Store.ResetAll
*/
package inventory

import (
	"context"
	"crypto/subtle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// STRENGTH CATEGORIES
// =============================================================================

type StrengthCategoryInput struct {
	ID             string          `json:"id" validate:"omitempty,uuid"`
	CategoryName   string          `json:"category_name" validate:"required,max=100"`
	StudentCount   int             `json:"student_count" validate:"min=0,max=100000"`
	AssignedAmount decimal.Decimal `json:"assigned_amount"`
	IsActive       bool            `json:"is_active"`
}

// DailyBudget sums student_count x assigned_amount over active categories.
func DailyBudget(categories []StrengthCategory) decimal.Decimal {
	total := decimal.Zero
	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(c.StudentCount)).Mul(c.AssignedAmount))
	}
	return total
}

// TotalStudents sums student_count over active categories.
func TotalStudents(categories []StrengthCategory) int {
	n := 0
	for _, c := range categories {
		if c.IsActive {
			n += c.StudentCount
		}
	}
	return n
}

// SaveStrengthCategory creates a category (empty ID) or replaces one.
func (s *Service) SaveStrengthCategory(ctx context.Context, in StrengthCategoryInput) (*StrengthCategory, error) {
	in.CategoryName = trim(in.CategoryName)
	verr := &ValidationError{}
	validateStruct(verr, &in)
	checkRange(verr, "assigned_amount", in.AssignedAmount, decimal.Zero, MaxAmount)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := StrengthCategory{
		ID:             in.ID,
		CategoryName:   in.CategoryName,
		StudentCount:   in.StudentCount,
		AssignedAmount: in.AssignedAmount,
		IsActive:       in.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	action := "update"
	if c.ID == "" {
		c.ID = uuid.NewString()
		action = "insert"
	}
	if err := s.store.SaveStrengthCategory(ctx, c); err != nil {
		return nil, Persistence("save strength category", err)
	}
	s.notify(ctx, "strength_categories", action, c.ID)
	return &c, nil
}

// Budget is the strength summary shown next to the category list.
type Budget struct {
	Categories    []StrengthCategory
	TotalStudents int
	DailyBudget   decimal.Decimal
}

func (s *Service) Budget(ctx context.Context) (*Budget, error) {
	cats, err := s.store.ListStrengthCategories(ctx)
	if err != nil {
		return nil, Persistence("list strength categories", err)
	}
	return &Budget{
		Categories:    cats,
		TotalStudents: TotalStudents(cats),
		DailyBudget:   DailyBudget(cats),
	}, nil
}

// =============================================================================
// UTENSILS
// =============================================================================

type UtensilInput struct {
	ID                string `json:"id" validate:"omitempty,uuid"`
	Name              string `json:"name" validate:"required,max=100"`
	Capacity          string `json:"capacity" validate:"max=50"`
	CurrentQuantity   int    `json:"current_quantity" validate:"min=0"`
	DamagedQuantity   int    `json:"damaged_quantity" validate:"min=0"`
	ReplacementNeeded int    `json:"replacement_needed" validate:"min=0"`
	Unit              string `json:"unit" validate:"max=20"`
}

func (s *Service) SaveUtensil(ctx context.Context, in UtensilInput) (*Utensil, error) {
	in.Name = trim(in.Name)
	verr := &ValidationError{}
	validateStruct(verr, &in)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := Utensil{
		ID:                in.ID,
		Name:              in.Name,
		Capacity:          trim(in.Capacity),
		CurrentQuantity:   in.CurrentQuantity,
		DamagedQuantity:   in.DamagedQuantity,
		ReplacementNeeded: in.ReplacementNeeded,
		Unit:              trim(in.Unit),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	action := "update"
	if u.ID == "" {
		u.ID = uuid.NewString()
		action = "insert"
	}
	if err := s.store.SaveUtensil(ctx, u); err != nil {
		return nil, Persistence("save utensil", err)
	}
	s.notify(ctx, "utensils", action, u.ID)
	return &u, nil
}

func (s *Service) ListUtensils(ctx context.Context) ([]Utensil, error) {
	us, err := s.store.ListUtensils(ctx)
	return us, Persistence("list utensils", err)
}

func (s *Service) DeleteUtensil(ctx context.Context, id string) error {
	if err := s.store.DeleteUtensil(ctx, id); err != nil {
		return Persistence("delete utensil", err)
	}
	s.notify(ctx, "utensils", "delete", id)
	return nil
}

// =============================================================================
// DASHBOARD
// =============================================================================

type Dashboard struct {
	TotalItems      int
	DangerCount     int
	WarningCount    int
	SufficientCount int
	StockValue      decimal.Decimal
	TotalStudents   int
	DailyBudget     decimal.Decimal
	PerCapita       decimal.Decimal // DailyBudget / TotalStudents, zero without students
	LowStock        []Item          // danger first, then warning, by name
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	items, err := s.store.ListItems(ctx, false)
	if err != nil {
		return nil, Persistence("list items", err)
	}
	cats, err := s.store.ListStrengthCategories(ctx)
	if err != nil {
		return nil, Persistence("list strength categories", err)
	}

	d := &Dashboard{
		TotalItems:    len(items),
		StockValue:    decimal.Zero,
		TotalStudents: TotalStudents(cats),
		DailyBudget:   DailyBudget(cats),
		PerCapita:     decimal.Zero,
	}
	var danger, warning []Item
	for _, it := range items {
		d.StockValue = d.StockValue.Add(it.StockValue())
		switch it.Status() {
		case StatusDanger:
			d.DangerCount++
			danger = append(danger, it)
		case StatusWarning:
			d.WarningCount++
			warning = append(warning, it)
		default:
			d.SufficientCount++
		}
	}
	d.LowStock = append(danger, warning...)
	if d.TotalStudents > 0 {
		d.PerCapita = d.DailyBudget.Div(decimal.NewFromInt(int64(d.TotalStudents))).Round(2)
	}
	return d, nil
}

// =============================================================================
// RESET
// =============================================================================

// ResetDatabase deletes every business row when code matches the
// configured confirmation code. actor is recorded in the log.
func (s *Service) ResetDatabase(ctx context.Context, actor, code string) error {
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.resetCode)) != 1 {
		s.log.Warn("database reset refused", zap.String("actor", actor))
		return NewValidationError("confirmation_code", "does not match")
	}
	if err := s.store.ResetAll(ctx); err != nil {
		return Persistence("reset database", err)
	}
	s.log.Warn("database reset", zap.String("actor", actor))
	s.notify(ctx, "*", "reset")
	return nil
}
