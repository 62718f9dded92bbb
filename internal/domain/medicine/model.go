// Package medicine provides the Medicine reference catalog.
// Medicines are created administratively and are read-only for the stock
// subsystem; the stock service references them but never mutates them.
package medicine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"medistock/internal/core/apperror"
	"medistock/internal/core/id"
)

// Medicine identifies a drug product.
type Medicine struct {
	ID id.ID `db:"id" json:"id"`

	// Code is a human-readable identifier (unique)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// CategoryID references the medicine category (nullable)
	CategoryID *id.ID `db:"category_id" json:"categoryId,omitempty"`

	// UnitSymbol is the dispensing unit ("tab", "ml", "amp")
	UnitSymbol string `db:"unit_symbol" json:"unitSymbol"`

	// UnitFactor converts one dispensing unit to the base unit of the
	// product (e.g. 0.5 for a 500mg tablet counted against grams).
	UnitFactor decimal.Decimal `db:"unit_factor" json:"unitFactor"`

	// DeletionMark indicates a soft-deleted medicine
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// New creates a new Medicine with generated ID.
func New(code, name, unitSymbol string) *Medicine {
	return &Medicine{
		ID:         id.New(),
		Code:       code,
		Name:       name,
		UnitSymbol: unitSymbol,
		UnitFactor: decimal.NewFromInt(1),
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate checks medicine invariants.
func (m *Medicine) Validate(ctx context.Context) error {
	if m.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if m.UnitSymbol == "" {
		return apperror.NewValidation("unit symbol is required").
			WithDetail("field", "unitSymbol")
	}
	if !m.UnitFactor.IsPositive() {
		return apperror.NewValidation("unit factor must be positive").
			WithDetail("field", "unitFactor")
	}
	return nil
}

// BaseQuantity converts a dispensing-unit quantity to base units.
func (m *Medicine) BaseQuantity(quantity int64) decimal.Decimal {
	return decimal.NewFromInt(quantity).Mul(m.UnitFactor)
}
