package model

// AccessOutcome is the routed result of scanning an item's code.
type AccessOutcome string

const (
	OutcomeLogin             AccessOutcome = "login"
	OutcomeRequestTrust      AccessOutcome = "request_trust"
	OutcomeInsufficientTrust AccessOutcome = "insufficient_trust"
	OutcomeView              AccessOutcome = "view"
)

// AccessDecision is what the scanner is told. Levels are only ever the scanner's own.
type AccessDecision struct {
	Outcome AccessOutcome
	Owner   OwnerSummary // whom to ask for trust; empty for login

	// view
	Item      *ItemWithOwnerSummary
	IsOwner   bool
	Available bool // no active loan right now

	// request_trust
	TrustRequestPending bool

	// insufficient_trust
	RequiredLevel int
	CurrentLevel  int
}
