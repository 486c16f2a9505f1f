// Package storage holds the library collections in memory, resolves their
// relationships and persists mutations back to the JSON files.
//
// A Store and the repositories built on it are not safe for concurrent use.
// Callers that share them across goroutines must serialize every call. The
// only exception is Invalidate, which may be called from any goroutine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/jsonldb"
	"github.com/maruel/bibliodb/internal/models"
)

// ErrNotFound is wrapped by repository updates in strict mode when the id
// matches no record.
var ErrNotFound = errors.New("not found")

// Store owns the five collections.
//
// Collections are loaded lazily by EnsureDataLoaded and replaced wholesale by
// LoadData. Every save is followed by a full reload in the repositories, so
// the in-memory state always mirrors the files.
type Store struct {
	authorsFile   *jsonldb.File[*models.Author]
	booksFile     *jsonldb.File[*models.Book]
	bookItemsFile *jsonldb.File[*models.BookItem]
	patronsFile   *jsonldb.File[patronRow]
	loansFile     *jsonldb.File[loanRow]
	paths         config.JSONPaths
	history       *History

	stale atomic.Bool
	// written maps the absolute path of each file saved by the store to its
	// stamp right after the save.
	written sync.Map

	authors   []*models.Author
	books     []*models.Book
	bookItems []*models.BookItem
	patrons   []*models.Patron
	loans     []*models.Loan
}

// Option configures a Store.
type Option func(*Store)

// WithHistory commits every saved file to h.
func WithHistory(h *History) Option {
	return func(s *Store) {
		s.history = h
	}
}

// NewStore creates a Store reading the collections at paths. Nothing is read
// until the first load.
func NewStore(paths config.JSONPaths, opts ...Option) (*Store, error) {
	if err := paths.Validate(); err != nil {
		return nil, err
	}
	if err := checkSchemas(); err != nil {
		return nil, err
	}
	s := &Store{
		authorsFile:   jsonldb.NewFile[*models.Author](paths.Authors),
		booksFile:     jsonldb.NewFile[*models.Book](paths.Books),
		bookItemsFile: jsonldb.NewFile[*models.BookItem](paths.BookItems),
		patronsFile:   jsonldb.NewFile[patronRow](paths.Patrons),
		loansFile:     jsonldb.NewFile[loanRow](paths.Loans),
		paths:         paths,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func checkSchemas() error {
	for _, err := range []error{
		jsonldb.RequireColumns[models.Author]("Id"),
		jsonldb.RequireColumns[models.Book]("Id", "AuthorId"),
		jsonldb.RequireColumns[models.BookItem]("Id", "BookId"),
		jsonldb.RequireColumns[patronRow]("Id"),
		jsonldb.RequireColumns[loanRow]("Id", "BookItemId", "PatronId"),
	} {
		if err != nil {
			return fmt.Errorf("invalid row type: %w", err)
		}
	}
	return nil
}

// Collections lists the collection names accepted by Schema, in load order.
var Collections = []string{"authors", "books", "bookItems", "patrons", "loans"}

// Schema returns the persisted columns of the named collection.
//
// Relationship fields are never written, so they are omitted.
func Schema(collection string) ([]jsonldb.Column, error) {
	var cols []jsonldb.Column
	var err error
	switch collection {
	case "authors":
		cols, err = jsonldb.Columns[models.Author]()
	case "books":
		cols, err = jsonldb.Columns[models.Book]()
	case "bookItems":
		cols, err = jsonldb.Columns[models.BookItem]()
	case "patrons":
		cols, err = jsonldb.Columns[patronRow]()
	case "loans":
		cols, err = jsonldb.Columns[loanRow]()
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	if err != nil {
		return nil, err
	}
	out := cols[:0]
	for _, c := range cols {
		if c.Type != jsonldb.ColumnTypeJSON {
			out = append(out, c)
		}
	}
	return out, nil
}

// LoadData reads all five files and replaces every collection.
//
// On error nothing is replaced and the store stays stale, so the next
// EnsureDataLoaded tries again.
func (s *Store) LoadData(ctx context.Context) (err error) {
	// Cleared first so a change observed while reading triggers another load.
	s.stale.Store(false)
	defer func() {
		if err != nil {
			s.stale.Store(true)
		}
	}()
	start := time.Now()
	authors, err := s.authorsFile.Load()
	if err != nil {
		return err
	}
	books, err := s.booksFile.Load()
	if err != nil {
		return err
	}
	bookItems, err := s.bookItemsFile.Load()
	if err != nil {
		return err
	}
	patronRows, err := s.patronsFile.Load()
	if err != nil {
		return err
	}
	loanRows, err := s.loansFile.Load()
	if err != nil {
		return err
	}
	s.authors = authors
	s.books = books
	s.bookItems = bookItems
	s.patrons = make([]*models.Patron, len(patronRows))
	for i := range patronRows {
		s.patrons[i] = patronRows[i].toModel()
	}
	s.loans = make([]*models.Loan, len(loanRows))
	for i := range loanRows {
		s.loans[i] = loanRows[i].toModel()
	}
	slog.DebugContext(ctx, "Loaded data",
		"authors", len(s.authors), "books", len(s.books), "bookItems", len(s.bookItems),
		"patrons", len(s.patrons), "loans", len(s.loans), "dur", time.Since(start))
	return nil
}

// EnsureDataLoaded calls LoadData if any collection is not loaded yet or the
// store was invalidated.
func (s *Store) EnsureDataLoaded(ctx context.Context) error {
	if s.stale.Load() || s.authors == nil || s.books == nil || s.bookItems == nil || s.patrons == nil || s.loans == nil {
		return s.LoadData(ctx)
	}
	return nil
}

// Invalidate forces the next EnsureDataLoaded to reload from disk.
//
// Safe for concurrent use.
func (s *Store) Invalidate() {
	s.stale.Store(true)
}

// Authors returns the live author collection.
func (s *Store) Authors() []*models.Author { return s.authors }

// Books returns the live book collection.
func (s *Store) Books() []*models.Book { return s.books }

// BookItems returns the live book item collection.
func (s *Store) BookItems() []*models.BookItem { return s.bookItems }

// Patrons returns the live patron collection.
func (s *Store) Patrons() []*models.Patron { return s.patrons }

// Loans returns the live loan collection.
func (s *Store) Loans() []*models.Loan { return s.loans }

// SaveLoans overwrites the loans file with loans.
//
// Relationship fields are not written. On failure the store is invalidated.
func (s *Store) SaveLoans(ctx context.Context, loans []*models.Loan) error {
	rows := make([]loanRow, 0, len(loans))
	for _, l := range loans {
		rows = append(rows, newLoanRow(l))
	}
	if err := s.loansFile.Save(rows); err != nil {
		s.Invalidate()
		return fmt.Errorf("failed to save loans: %w", err)
	}
	s.markWritten(s.loansFile.Path())
	slog.DebugContext(ctx, "Saved loans", "count", len(rows))
	s.record(ctx, "update loans", s.loansFile.Path())
	return nil
}

// SavePatrons overwrites the patrons file with patrons.
//
// Loans attached to patrons are not written. On failure the store is
// invalidated.
func (s *Store) SavePatrons(ctx context.Context, patrons []*models.Patron) error {
	rows := make([]patronRow, 0, len(patrons))
	for _, p := range patrons {
		rows = append(rows, newPatronRow(p))
	}
	if err := s.patronsFile.Save(rows); err != nil {
		s.Invalidate()
		return fmt.Errorf("failed to save patrons: %w", err)
	}
	s.markWritten(s.patronsFile.Path())
	slog.DebugContext(ctx, "Saved patrons", "count", len(rows))
	s.record(ctx, "update patrons", s.patronsFile.Path())
	return nil
}

// record commits path to the history. The file is already saved, so a failed
// commit is logged and not returned.
func (s *Store) record(ctx context.Context, msg, path string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Commit(ctx, msg, path); err != nil {
		slog.WarnContext(ctx, "Failed to record history", "path", path, "err", err)
	}
}

// patronRow is the persisted shape of a patron.
type patronRow struct {
	ID              int       `json:"Id"`
	Name            string    `json:"Name"`
	ImageName       string    `json:"ImageName"`
	MembershipStart time.Time `json:"MembershipStart"`
	MembershipEnd   time.Time `json:"MembershipEnd"`
}

func newPatronRow(p *models.Patron) patronRow {
	return patronRow{
		ID:              p.ID,
		Name:            p.Name,
		ImageName:       p.ImageName,
		MembershipStart: p.MembershipStart,
		MembershipEnd:   p.MembershipEnd,
	}
}

func (r *patronRow) toModel() *models.Patron {
	return &models.Patron{
		ID:              r.ID,
		Name:            r.Name,
		ImageName:       r.ImageName,
		MembershipStart: r.MembershipStart,
		MembershipEnd:   r.MembershipEnd,
	}
}

// loanRow is the persisted shape of a loan.
type loanRow struct {
	ID         int        `json:"Id"`
	BookItemID int        `json:"BookItemId"`
	PatronID   int        `json:"PatronId"`
	LoanDate   time.Time  `json:"LoanDate"`
	DueDate    time.Time  `json:"DueDate"`
	ReturnDate *time.Time `json:"ReturnDate"`
}

func newLoanRow(l *models.Loan) loanRow {
	return loanRow{
		ID:         l.ID,
		BookItemID: l.BookItemID,
		PatronID:   l.PatronID,
		LoanDate:   l.LoanDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
	}
}

func (r *loanRow) toModel() *models.Loan {
	return &models.Loan{
		ID:         r.ID,
		BookItemID: r.BookItemID,
		PatronID:   r.PatronID,
		LoanDate:   r.LoanDate,
		DueDate:    r.DueDate,
		ReturnDate: r.ReturnDate,
	}
}
