package memory

import (
	"context"
	"sort"
	"time"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Trust implements repository.TrustRepository.
type Trust struct{ s *Store }

// SetTrust upserts the edge and approves a pending reverse request.
func (r *Trust) SetTrust(_ context.Context, edge model.TrustEdge) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[edge.TrusterID]; !ok {
		return 0, errs.ErrNotFound
	}
	if _, ok := r.s.users[edge.TrusteeID]; !ok {
		return 0, errs.ErrNotFound
	}
	r.s.edges[edgeKey{truster: edge.TrusterID, trustee: edge.TrusteeID}] = edge

	approved := 0
	for id, tr := range r.s.trustReqs {
		if tr.RequesterID == edge.TrusteeID && tr.TargetID == edge.TrusterID &&
			tr.Status.CanTransitionTo(model.RequestApproved) {
			at := edge.UpdatedAt
			tr.Status, tr.ResolvedAt = model.RequestApproved, &at
			r.s.trustReqs[id] = tr
			approved++
		}
	}
	return approved, nil
}

// GetLevel returns the edge level or model.NoTrust.
func (r *Trust) GetLevel(_ context.Context, trusterID, trusteeID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	edge, ok := r.s.edges[edgeKey{truster: trusterID, trustee: trusteeID}]
	if !ok {
		return model.NoTrust, nil
	}
	return edge.Level, nil
}

// ListTrustees returns the truster's edges ordered by username.
func (r *Trust) ListTrustees(_ context.Context, trusterID uuid.UUID) ([]model.Trustee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Trustee
	for k, e := range r.s.edges {
		if k.truster == trusterID {
			out = append(out, model.Trustee{TrusteeID: k.trustee, Username: r.s.username(k.trustee), Level: e.Level})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// TrustRequests implements repository.TrustRequestRepository.
type TrustRequests struct{ s *Store }

// Create inserts a pending request unless one is already open for the pair.
func (r *TrustRequests) Create(_ context.Context, tr *model.TrustRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[tr.RequesterID]; !ok {
		return errs.ErrNotFound
	}
	if _, ok := r.s.users[tr.TargetID]; !ok {
		return errs.ErrNotFound
	}
	if r.hasPendingLocked(tr.RequesterID, tr.TargetID) {
		return errs.ErrDuplicatePending
	}
	tr.Status = model.RequestPending
	tr.CreatedAt = r.s.now()
	tr.ResolvedAt = nil
	r.s.trustReqs[tr.ID] = *tr
	return nil
}

// Get loads a request by ID.
func (r *TrustRequests) Get(_ context.Context, id uuid.UUID) (*model.TrustRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tr, ok := r.s.trustReqs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &tr, nil
}

// Resolve applies a validated transition.
func (r *TrustRequests) Resolve(_ context.Context, id uuid.UUID, to model.RequestStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tr, ok := r.s.trustReqs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !tr.Status.CanTransitionTo(to) {
		return errs.ErrAlreadyTerminal
	}
	tr.Status, tr.ResolvedAt = to, &at
	r.s.trustReqs[id] = tr
	return nil
}

// HasPending reports whether an open request exists for the ordered pair.
func (r *TrustRequests) HasPending(_ context.Context, requesterID, targetID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.hasPendingLocked(requesterID, targetID), nil
}

func (r *TrustRequests) hasPendingLocked(requesterID, targetID uuid.UUID) bool {
	for _, tr := range r.s.trustReqs {
		if tr.RequesterID == requesterID && tr.TargetID == targetID && tr.Status == model.RequestPending {
			return true
		}
	}
	return false
}

// ListIncoming returns pending requests addressed to target, oldest first.
func (r *TrustRequests) ListIncoming(_ context.Context, targetID uuid.UUID) ([]model.TrustRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.TrustRequest
	for _, tr := range r.s.trustReqs {
		if tr.TargetID == targetID && tr.Status == model.RequestPending {
			tr.RequesterName = r.s.username(tr.RequesterID)
			out = append(out, tr)
		}
	}
	sortByCreated(out, func(tr model.TrustRequest) time.Time { return tr.CreatedAt }, false)
	return out, nil
}

// ListOutgoing returns the requester's requests, newest first.
func (r *TrustRequests) ListOutgoing(_ context.Context, requesterID uuid.UUID) ([]model.TrustRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.TrustRequest
	for _, tr := range r.s.trustReqs {
		if tr.RequesterID == requesterID {
			tr.TargetName = r.s.username(tr.TargetID)
			out = append(out, tr)
		}
	}
	sortByCreated(out, func(tr model.TrustRequest) time.Time { return tr.CreatedAt }, true)
	return out, nil
}
