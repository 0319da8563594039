package repository

import (
	"context"
	"time"

	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TrustRepository stores directed trust edges.
type TrustRepository interface {
	// SetTrust upserts the edge and, in the same unit, approves a pending trust
	// request from edge.TrusteeID to edge.TrusterID. It reports how many requests
	// were approved.
	SetTrust(ctx context.Context, edge model.TrustEdge) (approved int, err error)
	// GetLevel returns the edge level or model.NoTrust when no edge exists.
	GetLevel(ctx context.Context, trusterID, trusteeID uuid.UUID) (int, error)
	// ListTrustees returns the truster's outgoing edges.
	ListTrustees(ctx context.Context, trusterID uuid.UUID) ([]model.Trustee, error)
}

// TrustRequestRepository stores asks for trust.
type TrustRequestRepository interface {
	// Create inserts a pending request; errs.ErrDuplicatePending if one is open for the pair.
	Create(ctx context.Context, tr *model.TrustRequest) error
	// Get loads a request by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.TrustRequest, error)
	// Resolve moves a request to a terminal status, validating the transition
	// against the stored status.
	Resolve(ctx context.Context, id uuid.UUID, to model.RequestStatus, at time.Time) error
	// HasPending reports whether requester has an open request towards target.
	HasPending(ctx context.Context, requesterID, targetID uuid.UUID) (bool, error)
	// ListIncoming returns pending requests addressed to target.
	ListIncoming(ctx context.Context, targetID uuid.UUID) ([]model.TrustRequest, error)
	// ListOutgoing returns all requests made by requester.
	ListOutgoing(ctx context.Context, requesterID uuid.UUID) ([]model.TrustRequest, error)
}
