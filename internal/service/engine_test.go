package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository/memory"
)

// engine wires every service over one in-memory store.
type engine struct {
	store   *memory.Store
	trust   *TrustServiceImpl
	vis     *VisibilityEngine
	catalog *CatalogServiceImpl
	loans   *LoanServiceImpl
	access  *AccessServiceImpl
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	log := zaptest.NewLogger(t)
	st := memory.New()
	e := NewEngine(st.Repos(), AuthConfig{}, log)
	return &engine{
		store:   st,
		trust:   e.Trust,
		vis:     e.Vis,
		catalog: e.Catalog,
		loans:   e.Loans,
		access:  e.Access,
	}
}

func (e *engine) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: name, PwdHash: []byte("h"), Salt: []byte("s")}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u.ID
}

func (e *engine) item(t *testing.T, owner uuid.UUID, title string, level int, hidden bool) uuid.UUID {
	t.Helper()
	it, err := e.catalog.CreateItem(context.Background(), owner, model.ItemDraft{
		Title:              title,
		Category:           "tools",
		RequiredTrustLevel: level,
		Hidden:             hidden,
	})
	require.NoError(t, err)
	return it.ID
}

func (e *engine) setTrust(t *testing.T, truster, trustee uuid.UUID, level int) {
	t.Helper()
	_, err := e.trust.SetTrust(context.Background(), truster, trustee, level)
	require.NoError(t, err)
}

func titles(items []model.ItemWithOwnerSummary) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Item.Title)
	}
	return out
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}
