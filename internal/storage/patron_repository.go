package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/maruel/bibliodb/internal/models"
)

// PatronRepository reads, searches and updates patrons.
type PatronRepository struct {
	store *Store
	opts  repositoryOptions
}

// NewPatronRepository creates a PatronRepository on store.
func NewPatronRepository(store *Store, opts ...RepositoryOption) *PatronRepository {
	return &PatronRepository{store: store, opts: newRepositoryOptions(opts)}
}

// SearchPatrons returns the populated patrons whose name contains text,
// ordered by name. Matching is case-sensitive; an empty text matches everyone.
func (r *PatronRepository) SearchPatrons(ctx context.Context, text string) ([]*models.Patron, error) {
	if err := r.store.EnsureDataLoaded(ctx); err != nil {
		return nil, err
	}
	var matches []*models.Patron
	for _, p := range r.store.patrons {
		if strings.Contains(p.Name, text) {
			matches = append(matches, p)
		}
	}
	slices.SortStableFunc(matches, func(a, b *models.Patron) int {
		return strings.Compare(a.Name, b.Name)
	})
	return r.store.GetPopulatedPatrons(matches), nil
}

// GetPatron returns the populated patron with id, or nil if there is none.
func (r *PatronRepository) GetPatron(ctx context.Context, id int) (*models.Patron, error) {
	if err := r.store.EnsureDataLoaded(ctx); err != nil {
		return nil, err
	}
	p := r.store.findPatron(id)
	if p == nil {
		return nil, nil
	}
	return r.store.GetPopulatedPatron(p), nil
}

// UpdatePatron copies the mutable fields of patron onto the stored patron with
// the same id, saves the patrons file and reloads every collection.
//
// Loans are assigned in memory but never persisted, so the reload drops them.
// An unknown id is a no-op unless the repository is strict.
func (r *PatronRepository) UpdatePatron(ctx context.Context, patron *models.Patron) error {
	if patron == nil {
		return errors.New("patron is required")
	}
	if err := r.store.EnsureDataLoaded(ctx); err != nil {
		return err
	}
	existing := r.store.findPatron(patron.ID)
	if existing == nil {
		if r.opts.strict {
			return fmt.Errorf("patron %d: %w", patron.ID, ErrNotFound)
		}
		slog.DebugContext(ctx, "Ignoring update of unknown patron", "id", patron.ID)
		return nil
	}
	existing.Name = patron.Name
	existing.ImageName = patron.ImageName
	existing.MembershipStart = patron.MembershipStart
	existing.MembershipEnd = patron.MembershipEnd
	existing.Loans = patron.Loans
	if err := r.store.SavePatrons(ctx, r.store.patrons); err != nil {
		return err
	}
	return r.store.LoadData(ctx)
}
