package memory

import (
	"context"
	"time"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Items implements repository.ItemRepository.
type Items struct{ s *Store }

// Create inserts an item for an existing owner.
func (r *Items) Create(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[it.OwnerID]; !ok {
		return errs.ErrNotFound
	}
	if _, ok := r.s.items[it.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := r.s.now()
	it.CreatedAt, it.UpdatedAt = now, now
	r.s.items[it.ID] = *it
	return nil
}

// Update overwrites the mutable attributes of an owner's item.
func (r *Items) Update(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.items[it.ID]
	if !ok || cur.OwnerID != it.OwnerID {
		return errs.ErrNotFound
	}
	cur.Title, cur.Description, cur.Category = it.Title, it.Description, it.Category
	cur.RequiredTrustLevel, cur.Hidden = it.RequiredTrustLevel, it.Hidden
	cur.UpdatedAt = r.s.now()
	r.s.items[it.ID] = cur
	*it = cur
	return nil
}

// Delete removes an owner's item unless it is lent out.
func (r *Items) Delete(_ context.Context, ownerID, itemID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.items[itemID]
	if !ok || cur.OwnerID != ownerID {
		return errs.ErrNotFound
	}
	if _, out := r.s.activeByItem[itemID]; out {
		return errs.ErrItemAlreadyOnLoan
	}
	delete(r.s.items, itemID)
	for id, lr := range r.s.loanReqs {
		if lr.ItemID == itemID {
			delete(r.s.loanReqs, id)
		}
	}
	for id, l := range r.s.loans {
		if l.ItemID == itemID {
			delete(r.s.loans, id)
		}
	}
	return nil
}

// Get returns an item with its owner summary.
func (r *Items) Get(_ context.Context, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.items[itemID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &model.ItemWithOwnerSummary{
		Item:  it,
		Owner: model.OwnerSummary{ID: it.OwnerID, Username: r.s.username(it.OwnerID)},
	}, nil
}

// ListByOwner returns the owner's items, newest first.
func (r *Items) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Item
	for _, it := range r.s.items {
		if it.OwnerID == ownerID {
			out = append(out, it)
		}
	}
	sortByCreated(out, func(it model.Item) time.Time { return it.CreatedAt }, true)
	return out, nil
}

// ListTrustedCatalog returns items of every owner holding an edge towards viewer.
func (r *Items) ListTrustedCatalog(_ context.Context, viewer uuid.UUID) ([]model.CatalogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.CatalogEntry
	for _, it := range r.s.items {
		edge, ok := r.s.edges[edgeKey{truster: it.OwnerID, trustee: viewer}]
		if !ok {
			continue
		}
		out = append(out, model.CatalogEntry{
			Item: model.ItemWithOwnerSummary{
				Item:  it,
				Owner: model.OwnerSummary{ID: it.OwnerID, Username: r.s.username(it.OwnerID)},
			},
			Level: edge.Level,
		})
	}
	sortByCreated(out, func(e model.CatalogEntry) time.Time { return e.Item.Item.CreatedAt }, true)
	return out, nil
}
