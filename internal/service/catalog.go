package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
)

const (
	maxTitleLen    = 200
	maxCategoryLen = 100
	maxDescLen     = 4000
)

// CatalogService is the owner-facing item catalog.
type CatalogService interface {
	// CreateItem adds an item owned by owner.
	CreateItem(ctx context.Context, owner uuid.UUID, d model.ItemDraft) (*model.Item, error)
	// UpdateItem overwrites an item's attributes; only the owner may.
	UpdateItem(ctx context.Context, actor, itemID uuid.UUID, d model.ItemDraft) (*model.Item, error)
	// DeleteItem removes an item that is not lent out; only the owner may.
	DeleteItem(ctx context.Context, actor, itemID uuid.UUID) error
	// GetItem returns an item to its owner or to a viewer allowed to see it.
	GetItem(ctx context.Context, viewer, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error)
	// ListOwnItems returns the owner's items, hidden ones included.
	ListOwnItems(ctx context.Context, owner uuid.UUID) ([]model.Item, error)
}

type CatalogServiceImpl struct {
	items repository.ItemRepository
	vis   VisibilityService
	log   *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(items repository.ItemRepository, vis VisibilityService, log *zap.Logger) *CatalogServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogServiceImpl{items: items, vis: vis, log: log}
}

// validateDraft normalizes and checks owner input.
func validateDraft(d model.ItemDraft) (model.ItemDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)
	switch {
	case d.Title == "":
		return d, fmt.Errorf("validation: empty title: %w", errs.ErrInvalidInput)
	case len(d.Title) > maxTitleLen:
		return d, fmt.Errorf("validation: title too long: %w", errs.ErrInvalidInput)
	case len(d.Category) > maxCategoryLen:
		return d, fmt.Errorf("validation: category too long: %w", errs.ErrInvalidInput)
	case len(d.Description) > maxDescLen:
		return d, fmt.Errorf("validation: description too long: %w", errs.ErrInvalidInput)
	case !model.ValidTrustLevel(d.RequiredTrustLevel):
		return d, errs.ErrInvalidLevel
	}
	return d, nil
}

// CreateItem validates the draft and stores a new item.
func (s *CatalogServiceImpl) CreateItem(ctx context.Context, owner uuid.UUID, d model.ItemDraft) (*model.Item, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("validation: empty owner: %w", errs.ErrInvalidInput)
	}
	d, err := validateDraft(d)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	it := &model.Item{
		ID:                 id,
		OwnerID:            owner,
		Title:              d.Title,
		Description:        d.Description,
		Category:           d.Category,
		RequiredTrustLevel: d.RequiredTrustLevel,
		Hidden:             d.Hidden,
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, err
	}
	s.log.Debug("item created", zap.Stringer("item", id))
	return it, nil
}

// UpdateItem checks ownership before writing.
func (s *CatalogServiceImpl) UpdateItem(ctx context.Context, actor, itemID uuid.UUID, d model.ItemDraft) (*model.Item, error) {
	cur, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if cur.Item.OwnerID != actor {
		return nil, errs.ErrUnauthorized
	}
	d, err = validateDraft(d)
	if err != nil {
		return nil, err
	}
	it := cur.Item
	it.Title, it.Description, it.Category = d.Title, d.Description, d.Category
	it.RequiredTrustLevel, it.Hidden = d.RequiredTrustLevel, d.Hidden
	if err := s.items.Update(ctx, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// DeleteItem checks ownership; the repository refuses while a loan is active.
func (s *CatalogServiceImpl) DeleteItem(ctx context.Context, actor, itemID uuid.UUID) error {
	cur, err := s.items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if cur.Item.OwnerID != actor {
		return errs.ErrUnauthorized
	}
	if err := s.items.Delete(ctx, actor, itemID); err != nil {
		return err
	}
	s.log.Debug("item deleted", zap.Stringer("item", itemID))
	return nil
}

// GetItem returns the owner's own item directly and routes everyone else
// through the visibility engine.
func (s *CatalogServiceImpl) GetItem(ctx context.Context, viewer, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error) {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if viewer != uuid.Nil && it.Item.OwnerID == viewer {
		return it, nil
	}
	return s.vis.VisibleItem(ctx, viewer, itemID)
}

// ListOwnItems lists the owner's catalog.
func (s *CatalogServiceImpl) ListOwnItems(ctx context.Context, owner uuid.UUID) ([]model.Item, error) {
	if owner == uuid.Nil {
		return nil, fmt.Errorf("validation: empty owner: %w", errs.ErrInvalidInput)
	}
	return s.items.ListByOwner(ctx, owner)
}
