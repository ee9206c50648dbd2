/*
overlay.go - Transaction metadata overlay

PURPOSE:
  Signatures, remarks and custom balances typed into the ledger grid are
  stored in their own table, keyed like the ledger rows. The source
  purchase and issue rows are never touched by this path.

UPSERT SEMANTICS:
  Only fields present in the Annotation are written. An empty string
  clears a text field; a present-but-invalid NullDecimal clears a custom
  balance. Concurrent writers to the same key: last write wins.

LIMITS:
  Signatures up to 100 characters, remarks up to 500, custom balances
  between 0 and the configured maxima.

SEE ALSO:
  - view.go: Merges overlay rows onto transactions
  - correct.go: The other edit path, for quantities and amounts
*/
package report

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/inventory"
)

// Annotation is a partial update of one overlay row. Nil fields are left
// unchanged.
type Annotation struct {
	PrincipalSignature    *string
	DepWardenSignature    *string
	Remarks               *string
	CustomBalanceQuantity *decimal.NullDecimal
	CustomBalanceAmount   *decimal.NullDecimal
}

func (a Annotation) IsEmpty() bool {
	return a.PrincipalSignature == nil && a.DepWardenSignature == nil && a.Remarks == nil &&
		a.CustomBalanceQuantity == nil && a.CustomBalanceAmount == nil
}

// Limits bounds overlay values.
type Limits struct {
	MaxSignature       int
	MaxRemarks         int
	MaxBalanceQuantity decimal.Decimal
	MaxBalanceAmount   decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		MaxSignature:       100,
		MaxRemarks:         500,
		MaxBalanceQuantity: inventory.MaxQuantity,
		MaxBalanceAmount:   inventory.MaxAmount,
	}
}

// Overlay validates and persists annotations.
type Overlay struct {
	store    OverlayStore
	limits   Limits
	notifier inventory.Notifier
	now      func() time.Time
	log      *zap.Logger
}

func NewOverlay(store OverlayStore, limits Limits, notifier inventory.Notifier, log *zap.Logger) *Overlay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Overlay{store: store, limits: limits, notifier: notifier, now: time.Now, log: log.Named("overlay")}
}

// Annotate validates a and upserts it on key. Returns the stored row.
func (o *Overlay) Annotate(ctx context.Context, key Key, a Annotation) (*Metadata, error) {
	if err := o.validate(key, &a); err != nil {
		return nil, err
	}
	if err := o.store.UpsertMetadata(ctx, key, a, o.now().UTC()); err != nil {
		return nil, inventory.Persistence("upsert transaction metadata", err)
	}
	m, err := o.store.GetMetadata(ctx, key)
	if err != nil {
		return nil, inventory.Persistence("get transaction metadata", err)
	}
	if m == nil {
		return nil, &inventory.NotFoundError{Kind: "transaction metadata", ID: key.String()}
	}

	o.log.Debug("ledger row annotated", zap.String("key", key.String()))
	if o.notifier != nil {
		o.notifier.Notify(ctx, "transaction_metadata", "upsert", key.String())
	}
	return m, nil
}

// FetchAll returns every overlay row.
func (o *Overlay) FetchAll(ctx context.Context) ([]Metadata, error) {
	ms, err := o.store.ListMetadata(ctx)
	return ms, inventory.Persistence("list transaction metadata", err)
}

func validateKey(verr *inventory.ValidationError, key Key) {
	if strings.TrimSpace(key.TransactionID) == "" {
		verr.Add("transaction_id", "is required")
	}
	if strings.TrimSpace(string(key.ItemID)) == "" {
		verr.Add("item_id", "is required")
	}
	if !key.Type.Valid() {
		verr.Add("transaction_type", "must be one of: purchase issue")
	}
}

func (o *Overlay) validate(key Key, a *Annotation) error {
	verr := &inventory.ValidationError{}
	validateKey(verr, key)
	if a.IsEmpty() {
		verr.Add("fields", "at least one field must be given")
	}

	checkText := func(field string, v *string, limit int) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		if utf8.RuneCountInString(t) > limit {
			verr.Add(field, "must be at most "+strconv.Itoa(limit)+" characters")
		}
		return &t
	}
	a.PrincipalSignature = checkText("principal_signature", a.PrincipalSignature, o.limits.MaxSignature)
	a.DepWardenSignature = checkText("dep_warden_signature", a.DepWardenSignature, o.limits.MaxSignature)
	a.Remarks = checkText("remarks", a.Remarks, o.limits.MaxRemarks)

	checkBalance := func(field string, v *decimal.NullDecimal, limit decimal.Decimal) {
		if v == nil || !v.Valid {
			return
		}
		if v.Decimal.IsNegative() {
			verr.Add(field, "must not be negative")
		} else if v.Decimal.GreaterThan(limit) {
			verr.Add(field, "must be at most "+limit.String())
		}
	}
	checkBalance("custom_balance_quantity", a.CustomBalanceQuantity, o.limits.MaxBalanceQuantity)
	checkBalance("custom_balance_amount", a.CustomBalanceAmount, o.limits.MaxBalanceAmount)

	return verr.OrNil()
}
