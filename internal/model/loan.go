package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// LoanRequest is a borrower's ask to take an item for a date range.
type LoanRequest struct {
	ID                 uuid.UUID
	ItemID             uuid.UUID
	BorrowerID         uuid.UUID
	RequestedStartDate time.Time
	RequestedEndDate   time.Time
	Status             RequestStatus
	Message            string
	CreatedAt          time.Time
	ResolvedAt         *time.Time

	// Joined fields (not always populated).
	ItemTitle    string
	BorrowerName string
}

// Loan is the authoritative record that an item is (or was) with a borrower.
type Loan struct {
	ID              uuid.UUID
	ItemID          uuid.UUID
	BorrowerID      uuid.UUID
	LenderID        uuid.UUID
	RequestID       *uuid.UUID // nil for direct lends
	StartDate       time.Time
	ExpectedEndDate time.Time
	ActualEndDate   *time.Time
	Status          LoanStatus // stored: active or returned
	CreatedAt       time.Time

	// Joined fields (not always populated).
	ItemTitle string
}

// LoanRole selects which side of a loan a listing is for.
type LoanRole string

const (
	RoleLender   LoanRole = "lender"
	RoleBorrower LoanRole = "borrower"
)
