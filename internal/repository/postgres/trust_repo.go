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

// TrustRepo implements TrustRepository using PostgreSQL.
type TrustRepo struct{ db *DB }

// NewTrustRepo constructs a trust edge repository.
func NewTrustRepo(db *DB) *TrustRepo { return &TrustRepo{db: db} }

// SetTrust upserts the edge and approves a pending reverse request in one transaction.
func (r *TrustRepo) SetTrust(ctx context.Context, edge model.TrustEdge) (approved int, err error) {
	const upsert = `
INSERT INTO trust_edges (truster_id, trustee_id, level, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (truster_id, trustee_id)
DO UPDATE SET level=EXCLUDED.level, updated_at=EXCLUDED.updated_at`
	const resolve = `
UPDATE trust_requests SET status=$3, resolved_at=$4
WHERE requester_id=$1 AND target_id=$2 AND status = ANY($5)`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsert, edge.TrusterID, edge.TrusteeID, edge.Level, edge.UpdatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return errs.ErrNotFound
			}
			return err
		}
		tag, err := tx.Exec(ctx, resolve, edge.TrusteeID, edge.TrusterID,
			string(model.RequestApproved), edge.UpdatedAt, model.RequestSourcesOf(model.RequestApproved))
		if err != nil {
			return err
		}
		approved = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return approved, nil
}

// GetLevel returns the level of truster->trustee or model.NoTrust.
func (r *TrustRepo) GetLevel(ctx context.Context, trusterID, trusteeID uuid.UUID) (int, error) {
	const q = `SELECT level FROM trust_edges WHERE truster_id=$1 AND trustee_id=$2`
	var level int
	if err := r.db.Pool.QueryRow(ctx, q, trusterID, trusteeID).Scan(&level); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NoTrust, nil
		}
		return 0, err
	}
	return level, nil
}

// ListTrustees returns the truster's edges ordered by trustee username.
func (r *TrustRepo) ListTrustees(ctx context.Context, trusterID uuid.UUID) ([]model.Trustee, error) {
	const q = `
SELECT t.trustee_id, u.username, t.level
FROM trust_edges t JOIN users u ON u.id = t.trustee_id
WHERE t.truster_id=$1
ORDER BY u.username ASC`
	rows, err := r.db.Pool.Query(ctx, q, trusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trustee
	for rows.Next() {
		var t model.Trustee
		if err = rows.Scan(&t.TrusteeID, &t.Username, &t.Level); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TrustRequestRepo implements TrustRequestRepository using PostgreSQL.
type TrustRequestRepo struct{ db *DB }

// NewTrustRequestRepo constructs a trust request repository.
func NewTrustRequestRepo(db *DB) *TrustRequestRepo { return &TrustRequestRepo{db: db} }

// Create inserts a pending request; the partial unique index rejects a second open one.
func (r *TrustRequestRepo) Create(ctx context.Context, tr *model.TrustRequest) error {
	const q = `
INSERT INTO trust_requests (id, requester_id, target_id, status, message)
VALUES ($1,$2,$3,'pending',$4)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, tr.ID, tr.RequesterID, tr.TargetID, tr.Message).Scan(&tr.CreatedAt)
	switch {
	case err == nil:
		tr.Status = model.RequestPending
		return nil
	case isUniqueViolation(err):
		return errs.ErrDuplicatePending
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// Get loads a trust request by id.
func (r *TrustRequestRepo) Get(ctx context.Context, id uuid.UUID) (*model.TrustRequest, error) {
	const q = `
SELECT id, requester_id, target_id, status, message, created_at, resolved_at
FROM trust_requests WHERE id=$1`
	var (
		tr model.TrustRequest
		st string
	)
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&tr.ID, &tr.RequesterID, &tr.TargetID, &st, &tr.Message, &tr.CreatedAt, &tr.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	tr.Status = model.RequestStatus(st)
	return &tr, nil
}

// Resolve locks the request row and applies a validated transition.
func (r *TrustRequestRepo) Resolve(ctx context.Context, id uuid.UUID, to model.RequestStatus, at time.Time) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return resolveRequest(ctx, tx, "trust_requests", id, to, at)
	})
}

// HasPending reports whether an open request exists for the ordered pair.
func (r *TrustRequestRepo) HasPending(ctx context.Context, requesterID, targetID uuid.UUID) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM trust_requests WHERE requester_id=$1 AND target_id=$2 AND status='pending'
)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, requesterID, targetID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListIncoming returns pending requests addressed to target, oldest first.
func (r *TrustRequestRepo) ListIncoming(ctx context.Context, targetID uuid.UUID) ([]model.TrustRequest, error) {
	const q = `
SELECT r.id, r.requester_id, r.target_id, r.status, r.message, r.created_at, r.resolved_at, u.username
FROM trust_requests r JOIN users u ON u.id = r.requester_id
WHERE r.target_id=$1 AND r.status='pending'
ORDER BY r.created_at ASC`
	return r.list(ctx, q, targetID, func(tr *model.TrustRequest) *string { return &tr.RequesterName })
}

// ListOutgoing returns the requester's requests, newest first.
func (r *TrustRequestRepo) ListOutgoing(ctx context.Context, requesterID uuid.UUID) ([]model.TrustRequest, error) {
	const q = `
SELECT r.id, r.requester_id, r.target_id, r.status, r.message, r.created_at, r.resolved_at, u.username
FROM trust_requests r JOIN users u ON u.id = r.target_id
WHERE r.requester_id=$1
ORDER BY r.created_at DESC`
	return r.list(ctx, q, requesterID, func(tr *model.TrustRequest) *string { return &tr.TargetName })
}

func (r *TrustRequestRepo) list(
	ctx context.Context, q string, arg uuid.UUID, name func(*model.TrustRequest) *string,
) ([]model.TrustRequest, error) {
	rows, err := r.db.Pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrustRequest
	for rows.Next() {
		var (
			tr model.TrustRequest
			st string
		)
		if err = rows.Scan(&tr.ID, &tr.RequesterID, &tr.TargetID, &st, &tr.Message,
			&tr.CreatedAt, &tr.ResolvedAt, name(&tr)); err != nil {
			return nil, err
		}
		tr.Status = model.RequestStatus(st)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// resolveRequest moves a row of a request table (trust_requests or loan_requests)
// to a terminal status after checking the transition under a row lock.
func resolveRequest(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID, to model.RequestStatus, at time.Time) error {
	sel := `SELECT status FROM ` + table + ` WHERE id=$1 FOR UPDATE`
	upd := `UPDATE ` + table + ` SET status=$2, resolved_at=$3 WHERE id=$1`

	var st string
	if err := tx.QueryRow(ctx, sel, id).Scan(&st); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if !model.RequestStatus(st).CanTransitionTo(to) {
		return errs.ErrAlreadyTerminal
	}
	_, err := tx.Exec(ctx, upd, id, string(to), at)
	return err
}
