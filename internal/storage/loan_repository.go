package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maruel/bibliodb/internal/models"
)

// RepositoryOption configures a repository.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	strict bool
}

// StrictUpdates makes updates of an unknown id return an error wrapping
// ErrNotFound instead of silently doing nothing.
func StrictUpdates() RepositoryOption {
	return func(o *repositoryOptions) {
		o.strict = true
	}
}

func newRepositoryOptions(opts []RepositoryOption) repositoryOptions {
	var o repositoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoanRepository reads and updates loans.
type LoanRepository struct {
	store *Store
	opts  repositoryOptions
}

// NewLoanRepository creates a LoanRepository on store.
func NewLoanRepository(store *Store, opts ...RepositoryOption) *LoanRepository {
	return &LoanRepository{store: store, opts: newRepositoryOptions(opts)}
}

// GetLoan returns the populated loan with id, or nil if there is none.
func (r *LoanRepository) GetLoan(ctx context.Context, id int) (*models.Loan, error) {
	if err := r.store.EnsureDataLoaded(ctx); err != nil {
		return nil, err
	}
	l := r.store.findLoan(id)
	if l == nil {
		return nil, nil
	}
	return r.store.GetPopulatedLoan(l), nil
}

// UpdateLoan copies the mutable fields of loan onto the stored loan with the
// same id, saves the loans file and reloads every collection.
//
// An unknown id is a no-op unless the repository is strict.
func (r *LoanRepository) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	if loan == nil {
		return errors.New("loan is required")
	}
	if err := r.store.EnsureDataLoaded(ctx); err != nil {
		return err
	}
	existing := r.store.findLoan(loan.ID)
	if existing == nil {
		if r.opts.strict {
			return fmt.Errorf("loan %d: %w", loan.ID, ErrNotFound)
		}
		slog.DebugContext(ctx, "Ignoring update of unknown loan", "id", loan.ID)
		return nil
	}
	existing.BookItemID = loan.BookItemID
	existing.PatronID = loan.PatronID
	existing.LoanDate = loan.LoanDate
	existing.DueDate = loan.DueDate
	existing.ReturnDate = loan.ReturnDate
	if err := r.store.SaveLoans(ctx, r.store.loans); err != nil {
		return err
	}
	return r.store.LoadData(ctx)
}
