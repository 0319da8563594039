package postgres

import "github.com/and161185/trustlend/internal/repository"

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ItemRepository         = (*ItemRepo)(nil)
	_ repository.TrustRepository        = (*TrustRepo)(nil)
	_ repository.TrustRequestRepository = (*TrustRequestRepo)(nil)
	_ repository.LoanRequestRepository  = (*LoanRequestRepo)(nil)
	_ repository.LoanRepository         = (*LoanRepo)(nil)
)
