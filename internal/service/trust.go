package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
)

// maxMessageLen bounds free-text messages attached to requests.
const maxMessageLen = 1000

// TrustService is the trust store plus the trust request workflow.
type TrustService interface {
	// SetTrust creates or overwrites truster->trustee and approves a pending
	// request from trustee to truster as part of the same write.
	SetTrust(ctx context.Context, truster, trustee uuid.UUID, level int) (model.TrustEdge, error)
	// GetTrust returns the level of truster->trustee, model.NoTrust when absent.
	GetTrust(ctx context.Context, truster, trustee uuid.UUID) (int, error)
	// ListTrustees returns the truster's connections.
	ListTrustees(ctx context.Context, truster uuid.UUID) ([]model.Trustee, error)
	// RequestTrust asks target to trust requester.
	RequestTrust(ctx context.Context, requester, target uuid.UUID, message string) (*model.TrustRequest, error)
	// DenyTrustRequest lets the target turn a pending request down.
	DenyTrustRequest(ctx context.Context, requestID, actor uuid.UUID) error
	// ListIncomingTrustRequests returns pending requests addressed to target.
	ListIncomingTrustRequests(ctx context.Context, target uuid.UUID) ([]model.TrustRequest, error)
	// ListOutgoingTrustRequests returns requests made by requester.
	ListOutgoingTrustRequests(ctx context.Context, requester uuid.UUID) ([]model.TrustRequest, error)
}

type TrustServiceImpl struct {
	trust    repository.TrustRepository
	requests repository.TrustRequestRepository
	log      *zap.Logger
	now      func() time.Time
}

// NewTrustService constructs TrustService.
func NewTrustService(trust repository.TrustRepository, requests repository.TrustRequestRepository, log *zap.Logger) *TrustServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrustServiceImpl{trust: trust, requests: requests, log: log, now: time.Now}
}

// SetTrust validates and upserts the edge.
func (s *TrustServiceImpl) SetTrust(ctx context.Context, truster, trustee uuid.UUID, level int) (model.TrustEdge, error) {
	if truster == uuid.Nil || trustee == uuid.Nil {
		return model.TrustEdge{}, fmt.Errorf("empty user id: %w", errs.ErrInvalidInput)
	}
	if !model.ValidTrustLevel(level) {
		return model.TrustEdge{}, errs.ErrInvalidLevel
	}
	if truster == trustee {
		return model.TrustEdge{}, errs.ErrSelfTrust
	}
	edge := model.TrustEdge{TrusterID: truster, TrusteeID: trustee, Level: level, UpdatedAt: s.now().UTC()}
	approved, err := s.trust.SetTrust(ctx, edge)
	if err != nil {
		return model.TrustEdge{}, err
	}
	s.log.Debug("trust set",
		zap.Stringer("truster", truster),
		zap.Stringer("trustee", trustee),
		zap.Int("requests_approved", approved),
	)
	return edge, nil
}

// GetTrust reads a single edge.
func (s *TrustServiceImpl) GetTrust(ctx context.Context, truster, trustee uuid.UUID) (int, error) {
	if truster == uuid.Nil || trustee == uuid.Nil {
		return model.NoTrust, nil
	}
	return s.trust.GetLevel(ctx, truster, trustee)
}

// ListTrustees returns the truster's edges.
func (s *TrustServiceImpl) ListTrustees(ctx context.Context, truster uuid.UUID) ([]model.Trustee, error) {
	if truster == uuid.Nil {
		return nil, fmt.Errorf("empty user id: %w", errs.ErrInvalidInput)
	}
	return s.trust.ListTrustees(ctx, truster)
}

// RequestTrust opens a pending request. Existing trust from target is not
// consulted.
func (s *TrustServiceImpl) RequestTrust(ctx context.Context, requester, target uuid.UUID, message string) (*model.TrustRequest, error) {
	if requester == uuid.Nil || target == uuid.Nil {
		return nil, fmt.Errorf("empty user id: %w", errs.ErrInvalidInput)
	}
	if requester == target {
		return nil, fmt.Errorf("cannot request trust from yourself: %w", errs.ErrInvalidInput)
	}
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLen {
		return nil, fmt.Errorf("message too long: %w", errs.ErrInvalidInput)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	tr := &model.TrustRequest{ID: id, RequesterID: requester, TargetID: target, Message: message}
	if err := s.requests.Create(ctx, tr); err != nil {
		return nil, err
	}
	s.log.Debug("trust requested", zap.Stringer("request", id))
	return tr, nil
}

// DenyTrustRequest resolves a pending request as denied.
func (s *TrustServiceImpl) DenyTrustRequest(ctx context.Context, requestID, actor uuid.UUID) error {
	tr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if tr.TargetID != actor {
		return errs.ErrUnauthorized
	}
	if tr.Status.Terminal() {
		return errs.ErrAlreadyTerminal
	}
	if err := s.requests.Resolve(ctx, requestID, model.RequestDenied, s.now().UTC()); err != nil {
		return err
	}
	s.log.Debug("trust request denied", zap.Stringer("request", requestID))
	return nil
}

// ListIncomingTrustRequests returns requests awaiting target's decision.
func (s *TrustServiceImpl) ListIncomingTrustRequests(ctx context.Context, target uuid.UUID) ([]model.TrustRequest, error) {
	return s.requests.ListIncoming(ctx, target)
}

// ListOutgoingTrustRequests returns requester's requests.
func (s *TrustServiceImpl) ListOutgoingTrustRequests(ctx context.Context, requester uuid.UUID) ([]model.TrustRequest, error) {
	return s.requests.ListOutgoing(ctx, requester)
}
