package models

import (
	"encoding/json"
	"fmt"
)

// LoanExtensionStatus is the outcome of extending a loan.
type LoanExtensionStatus int

// Loan extension outcomes.
const (
	LoanExtensionSuccess LoanExtensionStatus = iota
	LoanExtensionLoanNotFound
	LoanExtensionLoanExpired
	LoanExtensionMembershipExpired
	LoanExtensionLoanReturned
	LoanExtensionError
)

var loanExtensionStatuses = [...]statusText{
	LoanExtensionSuccess:           {"Success", "Book loan extension was successful."},
	LoanExtensionLoanNotFound:      {"LoanNotFound", "Loan not found."},
	LoanExtensionLoanExpired:       {"LoanExpired", "Cannot extend book loan as it already has expired. Return the book instead."},
	LoanExtensionMembershipExpired: {"MembershipExpired", "Cannot extend book loan due to expired patron's membership."},
	LoanExtensionLoanReturned:      {"LoanReturned", "Cannot extend book loan as the book is already returned."},
	LoanExtensionError:             {"Error", "Cannot extend book loan due to an error."},
}

func (s LoanExtensionStatus) String() string { return lookupStatus(loanExtensionStatuses[:], int(s)).name }

// Description returns the message shown to staff.
func (s LoanExtensionStatus) Description() string {
	return lookupStatus(loanExtensionStatuses[:], int(s)).description
}

// MarshalJSON encodes the status by name.
func (s LoanExtensionStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// LoanReturnStatus is the outcome of returning a loaned book item.
type LoanReturnStatus int

// Loan return outcomes.
const (
	LoanReturnSuccess LoanReturnStatus = iota
	LoanReturnLoanNotFound
	LoanReturnAlreadyReturned
	LoanReturnError
)

var loanReturnStatuses = [...]statusText{
	LoanReturnSuccess:         {"Success", "Book was successfully returned."},
	LoanReturnLoanNotFound:    {"LoanNotFound", "Loan not found."},
	LoanReturnAlreadyReturned: {"AlreadyReturned", "Cannot return book as the book is already returned."},
	LoanReturnError:           {"Error", "Cannot return book due to an error."},
}

func (s LoanReturnStatus) String() string { return lookupStatus(loanReturnStatuses[:], int(s)).name }

// Description returns the message shown to staff.
func (s LoanReturnStatus) Description() string {
	return lookupStatus(loanReturnStatuses[:], int(s)).description
}

// MarshalJSON encodes the status by name.
func (s LoanReturnStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// MembershipRenewalStatus is the outcome of renewing a patron's membership.
type MembershipRenewalStatus int

// Membership renewal outcomes.
const (
	MembershipRenewalSuccess MembershipRenewalStatus = iota
	MembershipRenewalPatronNotFound
	MembershipRenewalTooEarlyToRenew
	MembershipRenewalLoanNotReturned
	MembershipRenewalError
)

var membershipRenewalStatuses = [...]statusText{
	MembershipRenewalSuccess:         {"Success", "Membership renewal was successful."},
	MembershipRenewalPatronNotFound:  {"PatronNotFound", "Patron not found."},
	MembershipRenewalTooEarlyToRenew: {"TooEarlyToRenew", "It is too early to renew the membership."},
	MembershipRenewalLoanNotReturned: {"LoanNotReturned", "Cannot renew membership due to an outstanding loan."},
	MembershipRenewalError:           {"Error", "Cannot renew membership due to an error."},
}

func (s MembershipRenewalStatus) String() string {
	return lookupStatus(membershipRenewalStatuses[:], int(s)).name
}

// Description returns the message shown to staff.
func (s MembershipRenewalStatus) Description() string {
	return lookupStatus(membershipRenewalStatuses[:], int(s)).description
}

// MarshalJSON encodes the status by name.
func (s MembershipRenewalStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

type statusText struct {
	name        string
	description string
}

func lookupStatus(table []statusText, i int) statusText {
	if i < 0 || i >= len(table) {
		v := fmt.Sprintf("Status(%d)", i)
		return statusText{v, v}
	}
	return table[i]
}
