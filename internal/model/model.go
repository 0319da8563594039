// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account. Trust levels are never stored on the user; they live on edges.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte    // per-user auth salt
	CreatedAt time.Time
}

// Item is a lendable object owned by exactly one user.
type Item struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	Title              string
	Description        string
	Category           string
	RequiredTrustLevel int  // 1..5
	Hidden             bool // excluded from every non-owner view
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OwnerSummary is the part of the owning user that may be shown next to a visible item.
type OwnerSummary struct {
	ID       uuid.UUID
	Username string
}

// ItemWithOwnerSummary is the single result shape for an item shown to someone.
type ItemWithOwnerSummary struct {
	Item  Item
	Owner OwnerSummary
}

// CatalogEntry is an item of some owner together with the trust that owner assigned
// to the viewer the entry was loaded for. Level is 0 when no edge exists.
type CatalogEntry struct {
	Item  ItemWithOwnerSummary
	Level int
}

// ItemDraft carries the owner-editable attributes of an item.
type ItemDraft struct {
	Title              string
	Description        string
	Category           string
	RequiredTrustLevel int
	Hidden             bool
}
