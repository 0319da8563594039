package memory

import (
	"context"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/gofrs/uuid/v5"
)

// Users implements repository.UserRepository.
type Users struct{ s *Store }

// Create inserts a user with a unique username.
func (r *Users) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.users {
		if x.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	if _, ok := r.s.users[u.ID]; ok {
		return errs.ErrAlreadyExists
	}
	u.CreatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

// GetByID loads a user by ID.
func (r *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// GetByUsername loads a user by username.
func (r *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}
