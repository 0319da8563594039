package repository

// Repos bundles one backend's repositories.
type Repos struct {
	Users         UserRepository
	Items         ItemRepository
	Trust         TrustRepository
	TrustRequests TrustRequestRepository
	LoanRequests  LoanRequestRepository
	Loans         LoanRepository
}
