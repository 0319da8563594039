package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/text/cases"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
)

// VisibilityService computes what a viewer may see. Nothing is cached: every
// call reads current edges and items, so trust or item edits apply immediately.
type VisibilityService interface {
	// VisibleItems returns every item the viewer may see.
	VisibleItems(ctx context.Context, viewer uuid.UUID) ([]model.ItemWithOwnerSummary, error)
	// SearchItems filters VisibleItems by a case-insensitive substring of
	// title, description or category.
	SearchItems(ctx context.Context, viewer uuid.UUID, query string) ([]model.ItemWithOwnerSummary, error)
	// VisibleItem returns one item if the viewer may see it, errs.ErrItemNotVisible otherwise.
	VisibleItem(ctx context.Context, viewer, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error)
}

type VisibilityEngine struct {
	items repository.ItemRepository
	trust repository.TrustRepository
}

// NewVisibilityEngine constructs the engine over the catalog and the trust store.
func NewVisibilityEngine(items repository.ItemRepository, trust repository.TrustRepository) *VisibilityEngine {
	return &VisibilityEngine{items: items, trust: trust}
}

// VisibleItems applies model.CanView to every item whose owner trusts the viewer
// at any level. Owners without an edge are never candidates; an unknown viewer
// therefore sees nothing.
func (v *VisibilityEngine) VisibleItems(ctx context.Context, viewer uuid.UUID) ([]model.ItemWithOwnerSummary, error) {
	out := []model.ItemWithOwnerSummary{}
	if viewer == uuid.Nil {
		return out, nil
	}
	entries, err := v.items.ListTrustedCatalog(ctx, viewer)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if model.CanView(e.Item.Item, viewer, e.Level) {
			out = append(out, e.Item)
		}
	}
	return out, nil
}

// SearchItems post-filters the visible set; it never widens it.
func (v *VisibilityEngine) SearchItems(ctx context.Context, viewer uuid.UUID, query string) ([]model.ItemWithOwnerSummary, error) {
	visible, err := v.VisibleItems(ctx, viewer)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return visible, nil
	}
	fold := cases.Fold()
	needle := fold.String(query)
	out := []model.ItemWithOwnerSummary{}
	for _, it := range visible {
		for _, field := range []string{it.Item.Title, it.Item.Description, it.Item.Category} {
			if strings.Contains(fold.String(field), needle) {
				out = append(out, it)
				break
			}
		}
	}
	return out, nil
}

// VisibleItem checks a single item for a non-owner viewer. A missing item and
// an invisible one produce the same error.
func (v *VisibilityEngine) VisibleItem(ctx context.Context, viewer, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error) {
	it, level, err := v.lookup(ctx, viewer, itemID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrItemNotVisible
		}
		return nil, err
	}
	if !model.CanView(it.Item, viewer, level) {
		return nil, errs.ErrItemNotVisible
	}
	return it, nil
}

// lookup loads an item and the owner's trust in viewer. For the owner, or an
// anonymous viewer, the level is model.NoTrust without a trust read.
func (v *VisibilityEngine) lookup(ctx context.Context, viewer, itemID uuid.UUID) (*model.ItemWithOwnerSummary, int, error) {
	it, err := v.items.Get(ctx, itemID)
	if err != nil {
		return nil, model.NoTrust, err
	}
	if viewer == uuid.Nil || it.Item.OwnerID == viewer {
		return it, model.NoTrust, nil
	}
	level, err := v.trust.GetLevel(ctx, it.Item.OwnerID, viewer)
	if err != nil {
		return nil, model.NoTrust, err
	}
	return it, level, nil
}
