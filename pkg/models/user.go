package models

import "github.com/google/uuid"

// AccountType distinguishes private drivers from company accounts. Identity
// itself lives in a separate service; only the bits that gate domain rules
// travel with the JWT.
type AccountType string

const (
	AccountPrivate AccountType = "private"
	AccountCompany AccountType = "company"
)

// Actor is the authenticated caller as seen by the domain layer.
type Actor struct {
	ID          uuid.UUID   `json:"id"`
	AccountType AccountType `json:"account_type"`
}

// IsPrivate reports whether the caller is a private account. Private drivers
// cannot enable automatic confirmation, and only private accounts may request
// seats as passengers.
func (a AccountType) IsPrivate() bool {
	return a != AccountCompany
}
