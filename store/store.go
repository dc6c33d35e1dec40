// Package store persists inventory items keyed by their external item ID.
package store

import (
	"context"
	"errors"
)

// ErrMissingID is returned when an item carries no usable identifier.
var ErrMissingID = errors.New("item has no identifier")

// Item is one inventory record. Optional columns are pointers so absent
// fields land as NULL instead of zero values.
type Item struct {
	ItemID      string
	SKU         *string
	Name        *string
	Quantity    int
	Location    *string
	Description *string
	Category    *string
	Supplier    *string
	Cost        *float64
	Price       *float64

	// Metadata is the raw JSON remainder of the source element, everything
	// the mapped columns did not consume.
	Metadata *string
}

// Store upserts inventory items. Implementations decide what "same item"
// means; all current ones key on ItemID.
type Store interface {
	Upsert(ctx context.Context, item Item) error
	Close()
}
