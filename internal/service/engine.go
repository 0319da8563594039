package service

import (
	"time"

	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/trustlend/internal/crypto"
	"github.com/and161185/trustlend/internal/limiter"
	"github.com/and161185/trustlend/internal/repository"
)

// Engine is every service wired over one set of repositories.
type Engine struct {
	Auth    *AuthServiceImpl
	Trust   *TrustServiceImpl
	Vis     *VisibilityEngine
	Catalog *CatalogServiceImpl
	Loans   *LoanServiceImpl
	Access  *AccessServiceImpl
}

// AuthConfig carries token, limiter and hashing settings for login.
type AuthConfig struct {
	SignKey   []byte
	AccessTTL time.Duration
	Limiter   limiter.Limiter
	Hash      pkgcrypto.Params // zero means pkgcrypto.DefaultParams
}

// NewEngine builds the services over r.
func NewEngine(r repository.Repos, auth AuthConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	au := NewAuthService(r.Users, auth.SignKey, auth.AccessTTL, auth.Limiter, log)
	if auth.Hash != (pkgcrypto.Params{}) {
		au.hash = auth.Hash
	}
	vis := NewVisibilityEngine(r.Items, r.Trust)
	loans := NewLoanService(r.Items, r.LoanRequests, r.Loans, vis, log)
	return &Engine{
		Auth:    au,
		Trust:   NewTrustService(r.Trust, r.TrustRequests, log),
		Vis:     vis,
		Catalog: NewCatalogService(r.Items, vis, log),
		Loans:   loans,
		Access:  NewAccessService(vis, loans, r.TrustRequests),
	}
}
