package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
)

// lendingFixture is an owner with one item and a borrower trusted enough to see it.
type lendingFixture struct {
	*engine
	owner, borrower, item uuid.UUID
}

func newLendingFixture(t *testing.T) lendingFixture {
	t.Helper()
	e := newEngine(t)
	f := lendingFixture{engine: e, owner: e.user(t, "owner"), borrower: e.user(t, "borrower")}
	f.item = e.item(t, f.owner, "Drill", 2, false)
	e.setTrust(t, f.owner, f.borrower, 2)
	e.loans.now = func() time.Time { return day(2) }
	return f
}

func TestLoanRequest_CreateValidation(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()

	_, err := f.loans.CreateLoanRequest(ctx, f.borrower, f.item, day(5), day(1), "")
	require.ErrorIs(t, err, errs.ErrInvalidRange)
	_, err = f.loans.CreateLoanRequest(ctx, f.borrower, f.item, day(5), day(5), "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	stranger := f.user(t, "stranger")
	_, err = f.loans.CreateLoanRequest(ctx, stranger, f.item, day(1), day(5), "")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.loans.CreateLoanRequest(ctx, f.owner, f.item, day(1), day(5), "")
	require.ErrorIs(t, err, errs.ErrNotFound, "owners cannot borrow their own items")

	lr, err := f.loans.CreateLoanRequest(ctx, f.borrower, f.item, day(1), day(5), "for the weekend")
	require.NoError(t, err)
	require.Equal(t, model.RequestPending, lr.Status)

	incoming, err := f.loans.ListIncomingLoanRequests(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, "borrower", incoming[0].BorrowerName)

	outgoing, err := f.loans.ListOutgoingLoanRequests(ctx, f.borrower)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	require.Equal(t, "Drill", outgoing[0].ItemTitle)
}

func TestLoanRequest_ApproveAuthorization(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()

	lr, err := f.loans.CreateLoanRequest(ctx, f.borrower, f.item, day(1), day(5), "")
	require.NoError(t, err)

	_, err = f.loans.ApproveLoanRequest(ctx, lr.ID, f.borrower)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.ErrorIs(t, f.loans.DenyLoanRequest(ctx, lr.ID, f.borrower), errs.ErrUnauthorized)

	_, err = f.loans.ApproveLoanRequest(ctx, uuid.Must(uuid.NewV4()), f.owner)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, f.loans.DenyLoanRequest(ctx, lr.ID, f.owner))
	_, err = f.loans.ApproveLoanRequest(ctx, lr.ID, f.owner)
	require.ErrorIs(t, err, errs.ErrAlreadyTerminal)
	require.ErrorIs(t, f.loans.DenyLoanRequest(ctx, lr.ID, f.owner), errs.ErrAlreadyTerminal)

	active, err := f.loans.ActiveLoanFor(ctx, f.item)
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestLoan_AtMostOneActive(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()
	other := f.user(t, "other")
	f.setTrust(t, f.owner, other, 5)

	r1, err := f.loans.CreateLoanRequest(ctx, f.borrower, f.item, day(1), day(5), "")
	require.NoError(t, err)
	r2, err := f.loans.CreateLoanRequest(ctx, other, f.item, day(3), day(8), "")
	require.NoError(t, err)

	l1, err := f.loans.ApproveLoanRequest(ctx, r1.ID, f.owner)
	require.NoError(t, err)

	_, err = f.loans.ApproveLoanRequest(ctx, r2.ID, f.owner)
	require.ErrorIs(t, err, errs.ErrItemAlreadyOnLoan)
	require.ErrorIs(t, err, errs.ErrConflict)

	// the failed approval left its request untouched
	got, err := f.store.LoanRequests().Get(ctx, r2.ID)
	require.NoError(t, err)
	require.Equal(t, model.RequestPending, got.Status)

	active, err := f.loans.ActiveLoanFor(ctx, f.item)
	require.NoError(t, err)
	require.Equal(t, l1.ID, active.ID)

	_, err = f.loans.LendDirect(ctx, f.owner, other, f.item, day(3), day(4))
	require.ErrorIs(t, err, errs.ErrItemAlreadyOnLoan)

	require.ErrorIs(t, f.catalog.DeleteItem(ctx, f.owner, f.item), errs.ErrItemAlreadyOnLoan)
}

func TestLoan_ConcurrentApprovals(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make([]uuid.UUID, n)
	for i := range ids {
		b := f.user(t, "b"+uuid.Must(uuid.NewV4()).String()[:8])
		f.setTrust(t, f.owner, b, 2)
		lr, err := f.loans.CreateLoanRequest(ctx, b, f.item, day(1), day(5), "")
		require.NoError(t, err)
		ids[i] = lr.ID
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := f.loans.ApproveLoanRequest(ctx, id, f.owner); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	require.Equal(t, 1, won)
}

func TestLoan_LendDirect(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()

	_, err := f.loans.LendDirect(ctx, f.borrower, f.owner, f.item, day(1), day(3))
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = f.loans.LendDirect(ctx, f.owner, f.owner, f.item, day(1), day(3))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = f.loans.LendDirect(ctx, f.owner, f.borrower, f.item, day(3), day(1))
	require.ErrorIs(t, err, errs.ErrInvalidRange)
	_, err = f.loans.LendDirect(ctx, f.owner, uuid.Must(uuid.NewV4()), f.item, day(1), day(3))
	require.ErrorIs(t, err, errs.ErrNotFound)

	// no trust edge is needed for a direct loan
	stranger := f.user(t, "stranger")
	l, err := f.loans.LendDirect(ctx, f.owner, stranger, f.item, day(1), day(3))
	require.NoError(t, err)
	require.Equal(t, model.LoanActive, l.Status)
	require.Nil(t, l.RequestID)
	require.Equal(t, f.owner, l.LenderID)
}

func TestLoan_MarkReturnedOnce(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()
	stranger := f.user(t, "stranger")

	l, err := f.loans.LendDirect(ctx, f.owner, f.borrower, f.item, day(1), day(5))
	require.NoError(t, err)

	_, err = f.loans.MarkReturned(ctx, l.ID, stranger, nil)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	before := day(1).Add(-time.Hour)
	_, err = f.loans.MarkReturned(ctx, l.ID, f.owner, &before)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	end := day(4)
	got, err := f.loans.MarkReturned(ctx, l.ID, f.borrower, &end)
	require.NoError(t, err)
	require.Equal(t, model.LoanReturned, got.Status)
	require.Equal(t, end, *got.ActualEndDate)

	later := day(9)
	_, err = f.loans.MarkReturned(ctx, l.ID, f.owner, &later)
	require.ErrorIs(t, err, errs.ErrAlreadyReturned)
	require.ErrorIs(t, err, errs.ErrAlreadyTerminal)

	stored, err := f.store.Loans().Get(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, end, *stored.ActualEndDate)

	active, err := f.loans.ActiveLoanFor(ctx, f.item)
	require.NoError(t, err)
	require.Nil(t, active)

	// the item can go out again
	_, err = f.loans.LendDirect(ctx, f.owner, f.borrower, f.item, day(10), day(12))
	require.NoError(t, err)
}

func TestLoan_OverdueIsDerived(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()

	l, err := f.loans.LendDirect(ctx, f.owner, f.borrower, f.item, day(1), day(5))
	require.NoError(t, err)
	require.Equal(t, model.LoanActive, l.Status)

	f.loans.now = func() time.Time { return day(6) }

	active, err := f.loans.ActiveLoanFor(ctx, f.item)
	require.NoError(t, err)
	require.Equal(t, model.LoanOverdue, active.Status)

	overdue, err := f.loans.ListLoans(ctx, f.borrower, model.RoleBorrower, model.LoanOverdue)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	act, err := f.loans.ListLoans(ctx, f.owner, model.RoleLender, model.LoanActive)
	require.NoError(t, err)
	require.Empty(t, act)

	// an overdue loan can still be returned
	_, err = f.loans.MarkReturned(ctx, l.ID, f.owner, nil)
	require.NoError(t, err)

	all, err := f.loans.ListLoans(ctx, f.owner, model.RoleLender, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, model.LoanReturned, all[0].Status)

	_, err = f.loans.ListLoans(ctx, f.owner, model.RoleLender, "lost")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = f.loans.ListLoans(ctx, f.owner, "friend", "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestLoan_ActiveLoanSeenBy(t *testing.T) {
	t.Parallel()
	f := newLendingFixture(t)
	ctx := context.Background()
	stranger := f.user(t, "stranger")

	l, err := f.loans.ActiveLoanSeenBy(ctx, f.owner, f.item)
	require.NoError(t, err)
	require.Nil(t, l)
	_, err = f.loans.ActiveLoanSeenBy(ctx, stranger, f.item)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	created, err := f.loans.LendDirect(ctx, f.owner, f.borrower, f.item, day(1), day(5))
	require.NoError(t, err)

	for _, who := range []uuid.UUID{f.owner, f.borrower} {
		l, err = f.loans.ActiveLoanSeenBy(ctx, who, f.item)
		require.NoError(t, err)
		require.Equal(t, created.ID, l.ID)
	}
	_, err = f.loans.ActiveLoanSeenBy(ctx, stranger, f.item)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
