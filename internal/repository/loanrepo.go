package repository

import (
	"context"
	"time"

	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LoanRequestRepository stores borrow requests.
type LoanRequestRepository interface {
	// Create inserts a pending loan request.
	Create(ctx context.Context, lr *model.LoanRequest) error
	// Get loads a request by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.LoanRequest, error)
	// Deny moves a pending request to denied.
	Deny(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListIncoming returns pending requests for items owned by ownerID.
	ListIncoming(ctx context.Context, ownerID uuid.UUID) ([]model.LoanRequest, error)
	// ListOutgoing returns all requests made by borrowerID.
	ListOutgoing(ctx context.Context, borrowerID uuid.UUID) ([]model.LoanRequest, error)
}

// LoanRepository stores loans and enforces at most one active loan per item.
type LoanRepository interface {
	// Create inserts an active loan; errs.ErrItemAlreadyOnLoan if the item is out.
	Create(ctx context.Context, l *model.Loan) error
	// ApproveRequest atomically approves a pending request and inserts l for it.
	// Either both happen or neither does.
	ApproveRequest(ctx context.Context, requestID uuid.UUID, l *model.Loan, at time.Time) error
	// Get loads a loan by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	// MarkReturned moves an active loan to returned; errs.ErrAlreadyReturned otherwise.
	MarkReturned(ctx context.Context, id uuid.UUID, actualEnd time.Time) error
	// ActiveForItem returns the active loan of an item or errs.ErrNotFound.
	ActiveForItem(ctx context.Context, itemID uuid.UUID) (*model.Loan, error)
	// ListByUser returns loans where userID plays role.
	ListByUser(ctx context.Context, userID uuid.UUID, role model.LoanRole) ([]model.Loan, error)
}
