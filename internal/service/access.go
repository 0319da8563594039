package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
)

// AccessService decides what happens when someone scans an item's code.
type AccessService interface {
	// Scan routes scanner (uuid.Nil when unauthenticated) for itemID.
	Scan(ctx context.Context, scanner, itemID uuid.UUID) (model.AccessDecision, error)
}

type AccessServiceImpl struct {
	vis      *VisibilityEngine
	loans    LoanService
	requests repository.TrustRequestRepository
}

// NewAccessService constructs AccessService.
func NewAccessService(vis *VisibilityEngine, loans LoanService, requests repository.TrustRequestRepository) *AccessServiceImpl {
	return &AccessServiceImpl{vis: vis, loans: loans, requests: requests}
}

// Scan checks, in order: identity, ownership, hidden flag, trust edge, level.
// A hidden item is reported as missing to everyone but its owner. The levels
// carried by an insufficient_trust decision are the scanner's own.
func (s *AccessServiceImpl) Scan(ctx context.Context, scanner, itemID uuid.UUID) (model.AccessDecision, error) {
	if scanner == uuid.Nil {
		return model.AccessDecision{Outcome: model.OutcomeLogin}, nil
	}
	it, level, err := s.vis.lookup(ctx, scanner, itemID)
	if err != nil {
		return model.AccessDecision{}, err
	}

	owner := it.Item.OwnerID == scanner
	switch {
	case owner:
		// owners always see their own items
	case it.Item.Hidden:
		return model.AccessDecision{}, errs.ErrNotFound
	case level == model.NoTrust:
		pending, err := s.requests.HasPending(ctx, scanner, it.Item.OwnerID)
		if err != nil {
			return model.AccessDecision{}, err
		}
		return model.AccessDecision{
			Outcome:             model.OutcomeRequestTrust,
			Owner:               it.Owner,
			TrustRequestPending: pending,
		}, nil
	case !model.CanView(it.Item, scanner, level):
		return model.AccessDecision{
			Outcome:       model.OutcomeInsufficientTrust,
			Owner:         it.Owner,
			RequiredLevel: it.Item.RequiredTrustLevel,
			CurrentLevel:  level,
		}, nil
	}

	active, err := s.loans.ActiveLoanFor(ctx, itemID)
	if err != nil {
		return model.AccessDecision{}, err
	}
	return model.AccessDecision{
		Outcome:   model.OutcomeView,
		Owner:     it.Owner,
		Item:      it,
		IsOwner:   owner,
		Available: active == nil,
	}, nil
}
