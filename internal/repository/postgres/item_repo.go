package postgres

import (
	"context"
	"errors"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

const itemCols = `i.id, i.owner_id, i.title, i.description, i.category, i.required_trust_level, i.hidden, i.created_at, i.updated_at`

// scanItem scans itemCols followed by any extra destinations.
func scanItem(row pgx.Row, it *model.Item, extra ...any) error {
	dest := []any{
		&it.ID, &it.OwnerID, &it.Title, &it.Description, &it.Category,
		&it.RequiredTrustLevel, &it.Hidden, &it.CreatedAt, &it.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts a new item row.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	const q = `
INSERT INTO items (id, owner_id, title, description, category, required_trust_level, hidden)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		it.ID, it.OwnerID, it.Title, it.Description, it.Category, it.RequiredTrustLevel, it.Hidden,
	).Scan(&it.CreatedAt, &it.UpdatedAt)
	switch {
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	}
	return err
}

// Update overwrites an owner's item attributes.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	const q = `
UPDATE items
SET title=$3, description=$4, category=$5, required_trust_level=$6, hidden=$7, updated_at=now()
WHERE id=$1 AND owner_id=$2
RETURNING updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		it.ID, it.OwnerID, it.Title, it.Description, it.Category, it.RequiredTrustLevel, it.Hidden,
	).Scan(&it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	return err
}

// Delete removes an item that is not currently lent out. The row lock also
// blocks concurrent loan inserts referencing the item.
func (r *ItemRepo) Delete(ctx context.Context, ownerID, itemID uuid.UUID) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		const sel = `SELECT owner_id FROM items WHERE id=$1 FOR UPDATE`
		const active = `SELECT EXISTS (SELECT 1 FROM loans WHERE item_id=$1 AND status='active')`
		const del = `DELETE FROM items WHERE id=$1`

		var owner uuid.UUID
		if err := tx.QueryRow(ctx, sel, itemID).Scan(&owner); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if owner != ownerID {
			return errs.ErrNotFound
		}
		var onLoan bool
		if err := tx.QueryRow(ctx, active, itemID).Scan(&onLoan); err != nil {
			return err
		}
		if onLoan {
			return errs.ErrItemAlreadyOnLoan
		}
		_, err := tx.Exec(ctx, del, itemID)
		return err
	})
}

// Get returns an item joined with its owner's username.
func (r *ItemRepo) Get(ctx context.Context, itemID uuid.UUID) (*model.ItemWithOwnerSummary, error) {
	const q = `
SELECT ` + itemCols + `, u.username
FROM items i JOIN users u ON u.id = i.owner_id
WHERE i.id=$1`
	var out model.ItemWithOwnerSummary
	if err := scanItem(r.db.Pool.QueryRow(ctx, q, itemID), &out.Item, &out.Owner.Username); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	out.Owner.ID = out.Item.OwnerID
	return &out, nil
}

// ListByOwner returns every item of an owner, newest first.
func (r *ItemRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Item, error) {
	const q = `
SELECT ` + itemCols + `
FROM items i
WHERE i.owner_id=$1
ORDER BY i.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err = scanItem(rows, &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListTrustedCatalog returns items of every owner holding an edge towards viewer.
func (r *ItemRepo) ListTrustedCatalog(ctx context.Context, viewer uuid.UUID) ([]model.CatalogEntry, error) {
	const q = `
SELECT ` + itemCols + `, u.username, t.level
FROM trust_edges t
JOIN items i ON i.owner_id = t.truster_id
JOIN users u ON u.id = i.owner_id
WHERE t.trustee_id=$1
ORDER BY i.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, viewer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CatalogEntry
	for rows.Next() {
		var e model.CatalogEntry
		if err = scanItem(rows, &e.Item.Item, &e.Item.Owner.Username, &e.Level); err != nil {
			return nil, err
		}
		e.Item.Owner.ID = e.Item.Item.OwnerID
		out = append(out, e)
	}
	return out, rows.Err()
}
