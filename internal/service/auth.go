// Package service contains the lending engine: trust, visibility, loan
// workflows, access decisions, the item catalog and authentication.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/trustlend/internal/crypto"
	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/limiter"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
)

// AuthService defines registration and login.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string) (userID uuid.UUID, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	hash      pkgcrypto.Params
	log       *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter, log *zap.Logger,
) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		users:     users,
		signKey:   signKey,
		accessTTL: accessTTL,
		lim:       lim,
		hash:      pkgcrypto.DefaultParams,
		log:       log,
	}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return uuid.Nil, fmt.Errorf("validation: username must be %d..%d characters: %w",
			minUsernameLen, maxUsernameLen, errs.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return uuid.Nil, fmt.Errorf("validation: password shorter than %d: %w", minPasswordLen, errs.ErrInvalidInput)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, salt, err := s.hash.NewCredential(password)
	if err != nil {
		return uuid.Nil, err
	}
	u := &model.User{
		ID:       uid,
		Username: username,
		PwdHash:  hash,
		Salt:     salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	username = strings.TrimSpace(username)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !s.hash.Verify(password, u.Salt, u.PwdHash) {
		blocked, _, ferr := s.lim.Failure(ctx, username, ipHash)
		if ferr != nil {
			s.log.Warn("limiter failure not recorded", zap.Error(ferr))
		}
		if blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, username, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
