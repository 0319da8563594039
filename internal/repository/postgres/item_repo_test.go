package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var itemColNames = []string{"id", "owner_id", "title", "description", "category", "required_trust_level", "hidden", "created_at", "updated_at"}

func itemRow(it model.Item) []any {
	return []any{it.ID, it.OwnerID, it.Title, it.Description, it.Category, it.RequiredTrustLevel, it.Hidden, it.CreatedAt, it.UpdatedAt}
}

func sampleItem() model.Item {
	ts := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	return model.Item{
		ID:                 uuid.Must(uuid.NewV4()),
		OwnerID:            uuid.Must(uuid.NewV4()),
		Title:              "Drill",
		Description:        "cordless",
		Category:           "tools",
		RequiredTrustLevel: 2,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
}

func TestItemRepo_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	it := sampleItem()
	args := []any{it.ID, it.OwnerID, it.Title, it.Description, it.Category, it.RequiredTrustLevel, it.Hidden}

	mock.ExpectQuery(`INSERT INTO items .* RETURNING created_at, updated_at`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(it.CreatedAt, it.UpdatedAt))
	in := it
	in.CreatedAt, in.UpdatedAt = time.Time{}, time.Time{}
	require.NoError(t, r.Create(ctx, &in))
	require.Equal(t, it.CreatedAt, in.CreatedAt)

	mock.ExpectQuery(`INSERT INTO items`).WithArgs(args...).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	require.ErrorIs(t, r.Create(ctx, &in), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	it := sampleItem()
	later := it.UpdatedAt.Add(time.Hour)
	args := []any{it.ID, it.OwnerID, it.Title, it.Description, it.Category, it.RequiredTrustLevel, it.Hidden}

	mock.ExpectQuery(`UPDATE items SET .* WHERE id=\$1 AND owner_id=\$2 RETURNING updated_at`).
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(later))
	require.NoError(t, r.Update(ctx, &it))
	require.Equal(t, later, it.UpdatedAt)

	mock.ExpectQuery(`UPDATE items`).WithArgs(args...).WillReturnError(pgx.ErrNoRows)
	require.ErrorIs(t, r.Update(ctx, &it), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	owner := uuid.Must(uuid.NewV4())
	item := uuid.Must(uuid.NewV4())

	lock := `SELECT owner_id FROM items WHERE id=\$1 FOR UPDATE`
	active := `SELECT EXISTS \(SELECT 1 FROM loans WHERE item_id=\$1 AND status='active'\)`

	// ok
	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(item).WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(owner))
	mock.ExpectQuery(active).WithArgs(item).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`DELETE FROM items WHERE id=\$1`).WithArgs(item).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	require.NoError(t, r.Delete(ctx, owner, item))

	// lent out
	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(item).WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(owner))
	mock.ExpectQuery(active).WithArgs(item).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, owner, item), errs.ErrItemAlreadyOnLoan)

	// someone else's item
	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(item).WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(uuid.Must(uuid.NewV4())))
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, owner, item), errs.ErrNotFound)

	// missing
	mock.ExpectBegin()
	mock.ExpectQuery(lock).WithArgs(item).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	require.ErrorIs(t, r.Delete(ctx, owner, item), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	it := sampleItem()

	mock.ExpectQuery(`FROM items i JOIN users u ON u.id = i.owner_id WHERE i.id=\$1`).
		WithArgs(it.ID).
		WillReturnRows(pgxmock.NewRows(append(itemColNames, "username")).AddRow(append(itemRow(it), "alice")...))
	got, err := r.Get(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, it, got.Item)
	require.Equal(t, model.OwnerSummary{ID: it.OwnerID, Username: "alice"}, got.Owner)

	mock.ExpectQuery(`FROM items i JOIN users u`).WithArgs(it.ID).WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, it.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ListByOwner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	a, b := sampleItem(), sampleItem()
	b.OwnerID = a.OwnerID

	mock.ExpectQuery(`FROM items i WHERE i.owner_id=\$1 ORDER BY i.created_at DESC`).
		WithArgs(a.OwnerID).
		WillReturnRows(pgxmock.NewRows(itemColNames).AddRow(itemRow(a)...).AddRow(itemRow(b)...))
	got, err := r.ListByOwner(ctx, a.OwnerID)
	require.NoError(t, err)
	require.Equal(t, []model.Item{a, b}, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ListTrustedCatalog(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewItemRepo(db)
	ctx := context.Background()
	viewer := uuid.Must(uuid.NewV4())
	it := sampleItem()

	mock.ExpectQuery(`FROM trust_edges t JOIN items i ON i.owner_id = t.truster_id .* WHERE t.trustee_id=\$1`).
		WithArgs(viewer).
		WillReturnRows(pgxmock.NewRows(append(itemColNames, "username", "level")).AddRow(append(itemRow(it), "alice", 3)...))
	got, err := r.ListTrustedCatalog(ctx, viewer)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].Level)
	require.Equal(t, it.OwnerID, got[0].Item.Owner.ID)
	require.Equal(t, "alice", got[0].Item.Owner.Username)

	require.NoError(t, mock.ExpectationsWereMet())
}
