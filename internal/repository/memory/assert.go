package memory

import "github.com/and161185/trustlend/internal/repository"

var (
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.ItemRepository         = (*Items)(nil)
	_ repository.TrustRepository        = (*Trust)(nil)
	_ repository.TrustRequestRepository = (*TrustRequests)(nil)
	_ repository.LoanRequestRepository  = (*LoanRequests)(nil)
	_ repository.LoanRepository         = (*Loans)(nil)
)
