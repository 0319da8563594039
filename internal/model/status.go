package model

import "time"

// RequestStatus is the state of a trust request or a loan request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending: {RequestApproved, RequestDenied},
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestDenied:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool { return len(requestTransitions[s]) == 0 }

// CanTransitionTo reports whether s -> next is a legal request transition.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, n := range requestTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// RequestSourcesOf lists the statuses from which a request may move to next,
// in a stable order. Bulk SQL updates filter on it.
func RequestSourcesOf(next RequestStatus) []string {
	var out []string
	for _, from := range []RequestStatus{RequestPending, RequestApproved, RequestDenied} {
		if from.CanTransitionTo(next) {
			out = append(out, string(from))
		}
	}
	return out
}

// LoanStatus is the state of a loan. Overdue is never stored; see Loan.StatusAt.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
	LoanOverdue  LoanStatus = "overdue"
)

var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanActive: {LoanReturned},
}

// Valid reports whether s is a loan status (stored or derived).
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanReturned, LoanOverdue:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s LoanStatus) Terminal() bool { return len(loanTransitions[s]) == 0 }

// CanTransitionTo reports whether s -> next is a legal stored-state transition.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, n := range loanTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// StatusAt classifies a loan at the given instant: an active loan past its
// expected end is overdue.
func (l Loan) StatusAt(now time.Time) LoanStatus {
	if l.Status == LoanActive && now.After(l.ExpectedEndDate) {
		return LoanOverdue
	}
	return l.Status
}
