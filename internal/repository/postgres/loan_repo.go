package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// activeLoanIndex is the partial unique index guarding one active loan per item.
const activeLoanIndex = "loans_one_active_per_item"

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LoanRequestRepo implements LoanRequestRepository using PostgreSQL.
type LoanRequestRepo struct{ db *DB }

// NewLoanRequestRepo constructs a loan request repository.
func NewLoanRequestRepo(db *DB) *LoanRequestRepo { return &LoanRequestRepo{db: db} }

// Create inserts a pending loan request.
func (r *LoanRequestRepo) Create(ctx context.Context, lr *model.LoanRequest) error {
	const q = `
INSERT INTO loan_requests (id, item_id, borrower_id, requested_start, requested_end, status, message)
VALUES ($1,$2,$3,$4,$5,'pending',$6)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q,
		lr.ID, lr.ItemID, lr.BorrowerID, lr.RequestedStartDate, lr.RequestedEndDate, lr.Message,
	).Scan(&lr.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.ErrNotFound
		}
		return err
	}
	lr.Status = model.RequestPending
	return nil
}

const loanRequestCols = `r.id, r.item_id, r.borrower_id, r.requested_start, r.requested_end, r.status, r.message, r.created_at, r.resolved_at, i.title`

func scanLoanRequest(row pgx.Row, lr *model.LoanRequest, extra ...any) error {
	var st string
	dest := []any{
		&lr.ID, &lr.ItemID, &lr.BorrowerID, &lr.RequestedStartDate, &lr.RequestedEndDate,
		&st, &lr.Message, &lr.CreatedAt, &lr.ResolvedAt, &lr.ItemTitle,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	lr.Status = model.RequestStatus(st)
	return nil
}

// Get loads a loan request by id.
func (r *LoanRequestRepo) Get(ctx context.Context, id uuid.UUID) (*model.LoanRequest, error) {
	const q = `
SELECT ` + loanRequestCols + `
FROM loan_requests r JOIN items i ON i.id = r.item_id
WHERE r.id=$1`
	var lr model.LoanRequest
	if err := scanLoanRequest(r.db.Pool.QueryRow(ctx, q, id), &lr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &lr, nil
}

// Deny applies pending -> denied under a row lock.
func (r *LoanRequestRepo) Deny(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return resolveRequest(ctx, tx, "loan_requests", id, model.RequestDenied, at)
	})
}

// ListIncoming returns pending requests against the owner's items, oldest first.
func (r *LoanRequestRepo) ListIncoming(ctx context.Context, ownerID uuid.UUID) ([]model.LoanRequest, error) {
	const q = `
SELECT ` + loanRequestCols + `, u.username
FROM loan_requests r
JOIN items i ON i.id = r.item_id
JOIN users u ON u.id = r.borrower_id
WHERE i.owner_id=$1 AND r.status='pending'
ORDER BY r.created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LoanRequest
	for rows.Next() {
		var lr model.LoanRequest
		if err = scanLoanRequest(rows, &lr, &lr.BorrowerName); err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

// ListOutgoing returns the borrower's requests, newest first.
func (r *LoanRequestRepo) ListOutgoing(ctx context.Context, borrowerID uuid.UUID) ([]model.LoanRequest, error) {
	const q = `
SELECT ` + loanRequestCols + `
FROM loan_requests r JOIN items i ON i.id = r.item_id
WHERE r.borrower_id=$1
ORDER BY r.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LoanRequest
	for rows.Next() {
		var lr model.LoanRequest
		if err = scanLoanRequest(rows, &lr); err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

// LoanRepo implements LoanRepository using PostgreSQL.
type LoanRepo struct{ db *DB }

// NewLoanRepo constructs a loan repository.
func NewLoanRepo(db *DB) *LoanRepo { return &LoanRepo{db: db} }

// insertLoan inserts an active loan. The partial unique index turns a second
// active loan for the same item into ErrItemAlreadyOnLoan, also across processes.
func insertLoan(ctx context.Context, q querier, l *model.Loan) error {
	const ins = `
INSERT INTO loans (id, item_id, borrower_id, lender_id, request_id, start_date, expected_end_date, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,'active')
RETURNING created_at`
	err := q.QueryRow(ctx, ins,
		l.ID, l.ItemID, l.BorrowerID, l.LenderID, l.RequestID, l.StartDate, l.ExpectedEndDate,
	).Scan(&l.CreatedAt)
	switch {
	case err == nil:
		l.Status = model.LoanActive
		return nil
	case isUniqueViolation(err) && constraintName(err) == activeLoanIndex:
		return errs.ErrItemAlreadyOnLoan
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// Create inserts a direct loan.
func (r *LoanRepo) Create(ctx context.Context, l *model.Loan) error {
	return insertLoan(ctx, r.db.Pool, l)
}

// ApproveRequest locks the request, inserts the loan and flips the request to
// approved. A failed insert rolls the whole unit back.
func (r *LoanRepo) ApproveRequest(ctx context.Context, requestID uuid.UUID, l *model.Loan, at time.Time) error {
	const sel = `SELECT status FROM loan_requests WHERE id=$1 FOR UPDATE`
	const active = `SELECT EXISTS (SELECT 1 FROM loans WHERE item_id=$1 AND status='active')`
	const upd = `UPDATE loan_requests SET status='approved', resolved_at=$2 WHERE id=$1`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var st string
		if err := tx.QueryRow(ctx, sel, requestID).Scan(&st); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if !model.RequestStatus(st).CanTransitionTo(model.RequestApproved) {
			return errs.ErrAlreadyTerminal
		}
		var onLoan bool
		if err := tx.QueryRow(ctx, active, l.ItemID).Scan(&onLoan); err != nil {
			return err
		}
		if onLoan {
			return errs.ErrItemAlreadyOnLoan
		}
		if err := insertLoan(ctx, tx, l); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, upd, requestID, at)
		return err
	})
}

const loanCols = `l.id, l.item_id, l.borrower_id, l.lender_id, l.request_id, l.start_date, l.expected_end_date, l.actual_end_date, l.status, l.created_at, i.title`

func scanLoan(row pgx.Row, l *model.Loan) error {
	var st string
	if err := row.Scan(&l.ID, &l.ItemID, &l.BorrowerID, &l.LenderID, &l.RequestID,
		&l.StartDate, &l.ExpectedEndDate, &l.ActualEndDate, &st, &l.CreatedAt, &l.ItemTitle); err != nil {
		return err
	}
	l.Status = model.LoanStatus(st)
	return nil
}

// Get loads a loan by id.
func (r *LoanRepo) Get(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	const q = `
SELECT ` + loanCols + `
FROM loans l JOIN items i ON i.id = l.item_id
WHERE l.id=$1`
	return r.getOne(ctx, q, id)
}

// ActiveForItem returns the item's active loan.
func (r *LoanRepo) ActiveForItem(ctx context.Context, itemID uuid.UUID) (*model.Loan, error) {
	const q = `
SELECT ` + loanCols + `
FROM loans l JOIN items i ON i.id = l.item_id
WHERE l.item_id=$1 AND l.status='active'`
	return r.getOne(ctx, q, itemID)
}

func (r *LoanRepo) getOne(ctx context.Context, q string, arg uuid.UUID) (*model.Loan, error) {
	var l model.Loan
	if err := scanLoan(r.db.Pool.QueryRow(ctx, q, arg), &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// MarkReturned applies active -> returned under a row lock.
func (r *LoanRepo) MarkReturned(ctx context.Context, id uuid.UUID, actualEnd time.Time) error {
	const sel = `SELECT status FROM loans WHERE id=$1 FOR UPDATE`
	const upd = `UPDATE loans SET status='returned', actual_end_date=$2 WHERE id=$1`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		var st string
		if err := tx.QueryRow(ctx, sel, id).Scan(&st); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if !model.LoanStatus(st).CanTransitionTo(model.LoanReturned) {
			return errs.ErrAlreadyReturned
		}
		_, err := tx.Exec(ctx, upd, id, actualEnd)
		return err
	})
}

// ListByUser returns loans for a lender or a borrower, most recent start first.
func (r *LoanRepo) ListByUser(ctx context.Context, userID uuid.UUID, role model.LoanRole) ([]model.Loan, error) {
	var where string
	switch role {
	case model.RoleLender:
		where = `l.lender_id=$1`
	case model.RoleBorrower:
		where = `l.borrower_id=$1`
	default:
		return nil, errs.ErrInvalidInput
	}
	q := `
SELECT ` + loanCols + `
FROM loans l JOIN items i ON i.id = l.item_id
WHERE ` + where + `
ORDER BY l.start_date DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Loan
	for rows.Next() {
		var l model.Loan
		if err = scanLoan(rows, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
