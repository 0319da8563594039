package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
)

// LoanService is the loan request workflow plus the loan lifecycle.
type LoanService interface {
	// CreateLoanRequest asks to borrow an item visible to borrower.
	CreateLoanRequest(ctx context.Context, borrower, itemID uuid.UUID, start, end time.Time, message string) (*model.LoanRequest, error)
	// ApproveLoanRequest turns a pending request into an active loan.
	ApproveLoanRequest(ctx context.Context, requestID, actor uuid.UUID) (*model.Loan, error)
	// DenyLoanRequest turns a pending request down.
	DenyLoanRequest(ctx context.Context, requestID, actor uuid.UUID) error
	// ListIncomingLoanRequests returns pending requests for the owner's items.
	ListIncomingLoanRequests(ctx context.Context, owner uuid.UUID) ([]model.LoanRequest, error)
	// ListOutgoingLoanRequests returns the borrower's requests.
	ListOutgoingLoanRequests(ctx context.Context, borrower uuid.UUID) ([]model.LoanRequest, error)

	// LendDirect records an owner handing an item over without a request.
	LendDirect(ctx context.Context, lender, borrower, itemID uuid.UUID, start, end time.Time) (*model.Loan, error)
	// MarkReturned ends an active loan; actualEnd defaults to now.
	MarkReturned(ctx context.Context, loanID, actor uuid.UUID, actualEnd *time.Time) (*model.Loan, error)
	// ActiveLoanFor returns the item's active loan, or nil when it is not out.
	ActiveLoanFor(ctx context.Context, itemID uuid.UUID) (*model.Loan, error)
	// ActiveLoanSeenBy is ActiveLoanFor restricted to the loan's two parties.
	ActiveLoanSeenBy(ctx context.Context, actor, itemID uuid.UUID) (*model.Loan, error)
	// ListLoans returns loans where user plays role, optionally filtered by
	// read-time status (active, overdue, returned).
	ListLoans(ctx context.Context, user uuid.UUID, role model.LoanRole, status model.LoanStatus) ([]model.Loan, error)
}

type LoanServiceImpl struct {
	items    repository.ItemRepository
	requests repository.LoanRequestRepository
	loans    repository.LoanRepository
	vis      VisibilityService
	log      *zap.Logger
	now      func() time.Time
}

// NewLoanService constructs LoanService.
func NewLoanService(
	items repository.ItemRepository,
	requests repository.LoanRequestRepository,
	loans repository.LoanRepository,
	vis VisibilityService,
	log *zap.Logger,
) *LoanServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoanServiceImpl{items: items, requests: requests, loans: loans, vis: vis, log: log, now: time.Now}
}

// derive replaces the stored status with the read-time classification.
func (s *LoanServiceImpl) derive(l *model.Loan) *model.Loan {
	l.Status = l.StatusAt(s.now())
	return l
}

// CreateLoanRequest validates the range and the borrower's view of the item.
// Several pending requests per item are fine; approval settles contention.
func (s *LoanServiceImpl) CreateLoanRequest(
	ctx context.Context, borrower, itemID uuid.UUID, start, end time.Time, message string,
) (*model.LoanRequest, error) {
	if borrower == uuid.Nil {
		return nil, fmt.Errorf("empty borrower: %w", errs.ErrInvalidInput)
	}
	if !start.Before(end) {
		return nil, errs.ErrInvalidRange
	}
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLen {
		return nil, fmt.Errorf("message too long: %w", errs.ErrInvalidInput)
	}
	it, err := s.vis.VisibleItem(ctx, borrower, itemID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	lr := &model.LoanRequest{
		ID:                 id,
		ItemID:             itemID,
		BorrowerID:         borrower,
		RequestedStartDate: start.UTC(),
		RequestedEndDate:   end.UTC(),
		Message:            message,
		ItemTitle:          it.Item.Title,
	}
	if err := s.requests.Create(ctx, lr); err != nil {
		return nil, err
	}
	s.log.Debug("loan requested", zap.Stringer("request", id), zap.Stringer("item", itemID))
	return lr, nil
}

// ownedRequest loads a request and checks that actor owns its item.
func (s *LoanServiceImpl) ownedRequest(ctx context.Context, requestID, actor uuid.UUID) (*model.LoanRequest, error) {
	lr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	it, err := s.items.Get(ctx, lr.ItemID)
	if err != nil {
		return nil, err
	}
	if it.Item.OwnerID != actor {
		return nil, errs.ErrUnauthorized
	}
	if lr.Status.Terminal() {
		return nil, errs.ErrAlreadyTerminal
	}
	return lr, nil
}

// ApproveLoanRequest creates the loan and approves the request as one unit.
// A second approval for an item already out fails with errs.ErrItemAlreadyOnLoan
// and leaves its request pending.
func (s *LoanServiceImpl) ApproveLoanRequest(ctx context.Context, requestID, actor uuid.UUID) (*model.Loan, error) {
	lr, err := s.ownedRequest(ctx, requestID, actor)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	reqID := lr.ID
	l := &model.Loan{
		ID:              id,
		ItemID:          lr.ItemID,
		BorrowerID:      lr.BorrowerID,
		LenderID:        actor,
		RequestID:       &reqID,
		StartDate:       lr.RequestedStartDate,
		ExpectedEndDate: lr.RequestedEndDate,
		ItemTitle:       lr.ItemTitle,
	}
	if err := s.loans.ApproveRequest(ctx, lr.ID, l, s.now().UTC()); err != nil {
		return nil, err
	}
	s.log.Info("loan approved", zap.Stringer("loan", id), zap.Stringer("item", lr.ItemID))
	return s.derive(l), nil
}

// DenyLoanRequest resolves a pending request as denied.
func (s *LoanServiceImpl) DenyLoanRequest(ctx context.Context, requestID, actor uuid.UUID) error {
	lr, err := s.ownedRequest(ctx, requestID, actor)
	if err != nil {
		return err
	}
	if err := s.requests.Deny(ctx, lr.ID, s.now().UTC()); err != nil {
		return err
	}
	s.log.Debug("loan request denied", zap.Stringer("request", lr.ID))
	return nil
}

// ListIncomingLoanRequests lists requests awaiting the owner.
func (s *LoanServiceImpl) ListIncomingLoanRequests(ctx context.Context, owner uuid.UUID) ([]model.LoanRequest, error) {
	return s.requests.ListIncoming(ctx, owner)
}

// ListOutgoingLoanRequests lists the borrower's requests.
func (s *LoanServiceImpl) ListOutgoingLoanRequests(ctx context.Context, borrower uuid.UUID) ([]model.LoanRequest, error) {
	return s.requests.ListOutgoing(ctx, borrower)
}

// LendDirect bypasses the request workflow but not the one-active-loan rule.
func (s *LoanServiceImpl) LendDirect(
	ctx context.Context, lender, borrower, itemID uuid.UUID, start, end time.Time,
) (*model.Loan, error) {
	if borrower == uuid.Nil {
		return nil, fmt.Errorf("empty borrower: %w", errs.ErrInvalidInput)
	}
	if !start.Before(end) {
		return nil, errs.ErrInvalidRange
	}
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.Item.OwnerID != lender {
		return nil, errs.ErrUnauthorized
	}
	if borrower == lender {
		return nil, fmt.Errorf("cannot lend to yourself: %w", errs.ErrInvalidInput)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	l := &model.Loan{
		ID:              id,
		ItemID:          itemID,
		BorrowerID:      borrower,
		LenderID:        lender,
		StartDate:       start.UTC(),
		ExpectedEndDate: end.UTC(),
		ItemTitle:       it.Item.Title,
	}
	if err := s.loans.Create(ctx, l); err != nil {
		return nil, err
	}
	s.log.Info("loan created", zap.Stringer("loan", id), zap.Stringer("item", itemID))
	return s.derive(l), nil
}

// MarkReturned lets either party close an active loan. A second call fails
// with errs.ErrAlreadyReturned and writes nothing.
func (s *LoanServiceImpl) MarkReturned(ctx context.Context, loanID, actor uuid.UUID, actualEnd *time.Time) (*model.Loan, error) {
	l, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if actor != l.LenderID && actor != l.BorrowerID {
		return nil, errs.ErrUnauthorized
	}
	if l.Status.Terminal() {
		return nil, errs.ErrAlreadyReturned
	}
	end := s.now().UTC()
	if actualEnd != nil {
		end = actualEnd.UTC()
	}
	if end.Before(l.StartDate) {
		return nil, errs.ErrInvalidRange
	}
	if err := s.loans.MarkReturned(ctx, loanID, end); err != nil {
		return nil, err
	}
	l.Status, l.ActualEndDate = model.LoanReturned, &end
	s.log.Info("loan returned", zap.Stringer("loan", loanID))
	return l, nil
}

// ActiveLoanFor is the single source of truth for "is this item out".
func (s *LoanServiceImpl) ActiveLoanFor(ctx context.Context, itemID uuid.UUID) (*model.Loan, error) {
	l, err := s.loans.ActiveForItem(ctx, itemID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.derive(l), nil
}

// ActiveLoanSeenBy hides the loan's details from anyone but lender and borrower.
func (s *LoanServiceImpl) ActiveLoanSeenBy(ctx context.Context, actor, itemID uuid.UUID) (*model.Loan, error) {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	l, err := s.ActiveLoanFor(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		if it.Item.OwnerID != actor {
			return nil, errs.ErrUnauthorized
		}
		return nil, nil
	}
	if actor != l.LenderID && actor != l.BorrowerID {
		return nil, errs.ErrUnauthorized
	}
	return l, nil
}

// ListLoans returns the user's loans with read-time statuses applied.
func (s *LoanServiceImpl) ListLoans(
	ctx context.Context, user uuid.UUID, role model.LoanRole, status model.LoanStatus,
) ([]model.Loan, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown loan status %q: %w", status, errs.ErrInvalidInput)
	}
	loans, err := s.loans.ListByUser(ctx, user, role)
	if err != nil {
		return nil, err
	}
	out := make([]model.Loan, 0, len(loans))
	for i := range loans {
		l := s.derive(&loans[i])
		if status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}
