package memory

import (
	"context"
	"time"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LoanRequests implements repository.LoanRequestRepository.
type LoanRequests struct{ s *Store }

// Create inserts a pending loan request.
func (r *LoanRequests) Create(_ context.Context, lr *model.LoanRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[lr.ItemID]; !ok {
		return errs.ErrNotFound
	}
	if _, ok := r.s.users[lr.BorrowerID]; !ok {
		return errs.ErrNotFound
	}
	lr.Status = model.RequestPending
	lr.CreatedAt = r.s.now()
	lr.ResolvedAt = nil
	r.s.loanReqs[lr.ID] = *lr
	return nil
}

// Get loads a request by ID.
func (r *LoanRequests) Get(_ context.Context, id uuid.UUID) (*model.LoanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	lr, ok := r.s.loanReqs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	lr.ItemTitle = r.s.items[lr.ItemID].Title
	return &lr, nil
}

// Deny applies pending -> denied.
func (r *LoanRequests) Deny(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lr, ok := r.s.loanReqs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !lr.Status.CanTransitionTo(model.RequestDenied) {
		return errs.ErrAlreadyTerminal
	}
	lr.Status, lr.ResolvedAt = model.RequestDenied, &at
	r.s.loanReqs[id] = lr
	return nil
}

// ListIncoming returns pending requests against the owner's items, oldest first.
func (r *LoanRequests) ListIncoming(_ context.Context, ownerID uuid.UUID) ([]model.LoanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.LoanRequest
	for _, lr := range r.s.loanReqs {
		it := r.s.items[lr.ItemID]
		if it.OwnerID == ownerID && lr.Status == model.RequestPending {
			lr.ItemTitle = it.Title
			lr.BorrowerName = r.s.username(lr.BorrowerID)
			out = append(out, lr)
		}
	}
	sortByCreated(out, func(lr model.LoanRequest) time.Time { return lr.CreatedAt }, false)
	return out, nil
}

// ListOutgoing returns the borrower's requests, newest first.
func (r *LoanRequests) ListOutgoing(_ context.Context, borrowerID uuid.UUID) ([]model.LoanRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.LoanRequest
	for _, lr := range r.s.loanReqs {
		if lr.BorrowerID == borrowerID {
			lr.ItemTitle = r.s.items[lr.ItemID].Title
			out = append(out, lr)
		}
	}
	sortByCreated(out, func(lr model.LoanRequest) time.Time { return lr.CreatedAt }, true)
	return out, nil
}

// Loans implements repository.LoanRepository.
type Loans struct{ s *Store }

func (r *Loans) insertLocked(l *model.Loan) error {
	if _, ok := r.s.items[l.ItemID]; !ok {
		return errs.ErrNotFound
	}
	if _, ok := r.s.users[l.BorrowerID]; !ok {
		return errs.ErrNotFound
	}
	if _, out := r.s.activeByItem[l.ItemID]; out {
		return errs.ErrItemAlreadyOnLoan
	}
	l.Status = model.LoanActive
	l.CreatedAt = r.s.now()
	l.ActualEndDate = nil
	r.s.loans[l.ID] = *l
	r.s.activeByItem[l.ItemID] = l.ID
	return nil
}

// Create inserts a direct loan.
func (r *Loans) Create(_ context.Context, l *model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(l)
}

// ApproveRequest approves a pending request and inserts its loan as one unit.
func (r *Loans) ApproveRequest(_ context.Context, requestID uuid.UUID, l *model.Loan, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lr, ok := r.s.loanReqs[requestID]
	if !ok {
		return errs.ErrNotFound
	}
	if !lr.Status.CanTransitionTo(model.RequestApproved) {
		return errs.ErrAlreadyTerminal
	}
	if err := r.insertLocked(l); err != nil {
		return err
	}
	lr.Status, lr.ResolvedAt = model.RequestApproved, &at
	r.s.loanReqs[requestID] = lr
	return nil
}

// Get loads a loan by ID.
func (r *Loans) Get(_ context.Context, id uuid.UUID) (*model.Loan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	l.ItemTitle = r.s.items[l.ItemID].Title
	return &l, nil
}

// MarkReturned applies active -> returned.
func (r *Loans) MarkReturned(_ context.Context, id uuid.UUID, actualEnd time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !l.Status.CanTransitionTo(model.LoanReturned) {
		return errs.ErrAlreadyReturned
	}
	l.Status, l.ActualEndDate = model.LoanReturned, &actualEnd
	r.s.loans[id] = l
	delete(r.s.activeByItem, l.ItemID)
	return nil
}

// ActiveForItem returns the item's active loan.
func (r *Loans) ActiveForItem(_ context.Context, itemID uuid.UUID) (*model.Loan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.activeByItem[itemID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	l := r.s.loans[id]
	l.ItemTitle = r.s.items[itemID].Title
	return &l, nil
}

// ListByUser returns loans for a lender or a borrower, most recent start first.
func (r *Loans) ListByUser(_ context.Context, userID uuid.UUID, role model.LoanRole) ([]model.Loan, error) {
	if role != model.RoleLender && role != model.RoleBorrower {
		return nil, errs.ErrInvalidInput
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Loan
	for _, l := range r.s.loans {
		if (role == model.RoleLender && l.LenderID == userID) || (role == model.RoleBorrower && l.BorrowerID == userID) {
			l.ItemTitle = r.s.items[l.ItemID].Title
			out = append(out, l)
		}
	}
	sortByCreated(out, func(l model.Loan) time.Time { return l.StartDate }, true)
	return out, nil
}
