package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Trust level bounds. NoTrust is the value reported for an absent edge.
const (
	NoTrust       = 0
	MinTrustLevel = 1
	MaxTrustLevel = 5
)

// ValidTrustLevel reports whether level may be stored on an edge or required by an item.
func ValidTrustLevel(level int) bool {
	return level >= MinTrustLevel && level <= MaxTrustLevel
}

// TrustEdge is a directed grant from Truster to Trustee.
type TrustEdge struct {
	TrusterID uuid.UUID
	TrusteeID uuid.UUID
	Level     int
	UpdatedAt time.Time
}

// Trustee is one row of a truster's connection list.
type Trustee struct {
	TrusteeID uuid.UUID
	Username  string
	Level     int
}

// TrustRequest asks Target to trust Requester. It never carries a level.
type TrustRequest struct {
	ID          uuid.UUID
	RequesterID uuid.UUID
	TargetID    uuid.UUID
	Status      RequestStatus
	Message     string
	CreatedAt   time.Time
	ResolvedAt  *time.Time

	// Joined fields (not always populated).
	RequesterName string
	TargetName    string
}

// CanView is the visibility predicate: the viewer is not the owner, the item is not
// hidden, and the owner's trust in the viewer reaches the item's threshold.
// level is the owner->viewer edge level, NoTrust when absent.
func CanView(item Item, viewer uuid.UUID, level int) bool {
	if item.OwnerID == viewer || item.Hidden {
		return false
	}
	return level >= item.RequiredTrustLevel
}
