// Package memory is an in-process implementation of the repository interfaces.
// All writes are serialized under one mutex, so the check-then-write units that
// the Postgres backend runs in transactions are atomic here as well. It is meant
// for development runs and tests; it does not coordinate across processes.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type edgeKey struct{ truster, trustee uuid.UUID }

// Store holds all tables.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users        map[uuid.UUID]model.User
	items        map[uuid.UUID]model.Item
	edges        map[edgeKey]model.TrustEdge
	trustReqs    map[uuid.UUID]model.TrustRequest
	loanReqs     map[uuid.UUID]model.LoanRequest
	loans        map[uuid.UUID]model.Loan
	activeByItem map[uuid.UUID]uuid.UUID // item -> active loan
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		now:          time.Now,
		users:        map[uuid.UUID]model.User{},
		items:        map[uuid.UUID]model.Item{},
		edges:        map[edgeKey]model.TrustEdge{},
		trustReqs:    map[uuid.UUID]model.TrustRequest{},
		loanReqs:     map[uuid.UUID]model.LoanRequest{},
		loans:        map[uuid.UUID]model.Loan{},
		activeByItem: map[uuid.UUID]uuid.UUID{},
	}
}

// Users returns the user table view.
func (s *Store) Users() *Users { return &Users{s} }

// Items returns the item catalog view.
func (s *Store) Items() *Items { return &Items{s} }

// Trust returns the trust edge view.
func (s *Store) Trust() *Trust { return &Trust{s} }

// TrustRequests returns the trust request view.
func (s *Store) TrustRequests() *TrustRequests { return &TrustRequests{s} }

// LoanRequests returns the loan request view.
func (s *Store) LoanRequests() *LoanRequests { return &LoanRequests{s} }

// Loans returns the loan view.
func (s *Store) Loans() *Loans { return &Loans{s} }

func (s *Store) username(id uuid.UUID) string { return s.users[id].Username }

func sortByCreated[T any](xs []T, created func(T) time.Time, desc bool) {
	sort.SliceStable(xs, func(i, j int) bool {
		if desc {
			return created(xs[i]).After(created(xs[j]))
		}
		return created(xs[i]).Before(created(xs[j]))
	})
}

// Repos returns every view of the store.
func (s *Store) Repos() repository.Repos {
	return repository.Repos{
		Users:         s.Users(),
		Items:         s.Items(),
		Trust:         s.Trust(),
		TrustRequests: s.TrustRequests(),
		LoanRequests:  s.LoanRequests(),
		Loans:         s.Loans(),
	}
}
