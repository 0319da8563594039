package repository

import (
	"context"

	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ItemRepository is the item catalog storage.
type ItemRepository interface {
	// Create inserts a new item.
	Create(ctx context.Context, it *model.Item) error
	// Update overwrites the mutable attributes of an item owned by it.OwnerID.
	Update(ctx context.Context, it *model.Item) error
	// Delete removes an owner's item unless it is currently on an active loan
	// (errs.ErrItemAlreadyOnLoan).
	Delete(ctx context.Context, ownerID, itemID uuid.UUID) error
	// Get returns an item with its owner summary.
	Get(ctx context.Context, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error)
	// ListByOwner returns all items of an owner, hidden ones included.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Item, error)
	// ListTrustedCatalog returns every item whose owner holds a trust edge towards
	// viewer, each with that edge's level. Callers apply model.CanView.
	ListTrustedCatalog(ctx context.Context, viewer uuid.UUID) ([]model.CatalogEntry, error)
}
