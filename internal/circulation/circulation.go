// Package circulation applies the lending rules: returning and extending
// loans and renewing memberships.
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/models"
)

// LoanRepository is the loan storage used by Service.
type LoanRepository interface {
	GetLoan(ctx context.Context, id int) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
}

// PatronRepository is the patron storage used by Service.
type PatronRepository interface {
	GetPatron(ctx context.Context, id int) (*models.Patron, error)
	UpdatePatron(ctx context.Context, patron *models.Patron) error
}

// Service runs circulation operations against the repositories.
type Service struct {
	loans   LoanRepository
	patrons PatronRepository
	rules   config.Circulation
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New returns a Service.
func New(loans LoanRepository, patrons PatronRepository, rules config.Circulation, opts ...Option) *Service {
	s := &Service{loans: loans, patrons: patrons, rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReturnLoan marks the loan as returned now.
//
// The returned error is set only with LoanReturnError.
func (s *Service) ReturnLoan(ctx context.Context, loanID int) (models.LoanReturnStatus, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return models.LoanReturnError, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	if loan == nil {
		return models.LoanReturnLoanNotFound, nil
	}
	if loan.Returned() {
		return models.LoanReturnAlreadyReturned, nil
	}
	now := s.now()
	loan.ReturnDate = &now
	if err := s.loans.UpdateLoan(ctx, loan); err != nil {
		return models.LoanReturnError, fmt.Errorf("failed to update loan %d: %w", loanID, err)
	}
	slog.InfoContext(ctx, "Loan returned", "loan", loanID, "patron", loan.PatronID)
	return models.LoanReturnSuccess, nil
}

// ExtendLoan pushes the due date of an outstanding loan by the configured
// number of days.
//
// The patron's membership must still be valid and the loan must not be
// overdue. The returned error is set only with LoanExtensionError.
func (s *Service) ExtendLoan(ctx context.Context, loanID int) (models.LoanExtensionStatus, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return models.LoanExtensionError, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	if loan == nil {
		return models.LoanExtensionLoanNotFound, nil
	}
	if loan.Patron == nil {
		return models.LoanExtensionError, fmt.Errorf("loan %d references unknown patron %d", loanID, loan.PatronID)
	}
	now := s.now()
	switch {
	case loan.Patron.MembershipExpired(now):
		return models.LoanExtensionMembershipExpired, nil
	case loan.Returned():
		return models.LoanExtensionLoanReturned, nil
	case loan.DueDate.Before(now):
		return models.LoanExtensionLoanExpired, nil
	}
	loan.DueDate = loan.DueDate.AddDate(0, 0, s.rules.LoanExtensionDays)
	if err := s.loans.UpdateLoan(ctx, loan); err != nil {
		return models.LoanExtensionError, fmt.Errorf("failed to update loan %d: %w", loanID, err)
	}
	slog.InfoContext(ctx, "Loan extended", "loan", loanID, "due", loan.DueDate)
	return models.LoanExtensionSuccess, nil
}

// RenewMembership extends the patron's membership by the configured number of
// years.
//
// Renewal is only possible within the renewal window before expiry, or after
// expiry, and only when the patron has no overdue loan. An expired membership
// is renewed from now. The returned error is set only with
// MembershipRenewalError.
func (s *Service) RenewMembership(ctx context.Context, patronID int) (models.MembershipRenewalStatus, error) {
	patron, err := s.patrons.GetPatron(ctx, patronID)
	if err != nil {
		return models.MembershipRenewalError, fmt.Errorf("failed to get patron %d: %w", patronID, err)
	}
	if patron == nil {
		return models.MembershipRenewalPatronNotFound, nil
	}
	now := s.now()
	if !patron.MembershipEnd.Before(now.AddDate(0, 0, s.rules.RenewalWindowDays)) {
		return models.MembershipRenewalTooEarlyToRenew, nil
	}
	for _, l := range patron.Loans {
		if l.Overdue(now) {
			return models.MembershipRenewalLoanNotReturned, nil
		}
	}
	base := patron.MembershipEnd
	if base.Before(now) {
		base = now
	}
	patron.MembershipEnd = base.AddDate(s.rules.MembershipYears, 0, 0)
	if err := s.patrons.UpdatePatron(ctx, patron); err != nil {
		return models.MembershipRenewalError, fmt.Errorf("failed to update patron %d: %w", patronID, err)
	}
	slog.InfoContext(ctx, "Membership renewed", "patron", patronID, "end", patron.MembershipEnd)
	return models.MembershipRenewalSuccess, nil
}
