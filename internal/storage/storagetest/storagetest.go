// Package storagetest writes a small library to disk for tests.
//
// The data set has two authors, two books with one copy each, an active patron
// "John Doe" with an outstanding loan and an expired patron "Jane Smith" whose
// loan was returned.
package storagetest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/jsonldb"
	"github.com/maruel/bibliodb/internal/models"
	"github.com/maruel/bibliodb/internal/storage"
)

// Data is one copy of every collection.
type Data struct {
	Authors   []*models.Author
	Books     []*models.Book
	BookItems []*models.BookItem
	Patrons   []*models.Patron
	Loans     []*models.Loan
}

// NewData builds the fixture collections with dates relative to now.
func NewData(now time.Time) *Data {
	returned := now.AddDate(0, 0, -5)
	return &Data{
		Authors: []*models.Author{
			{ID: 1, Name: "Test Author 1"},
			{ID: 2, Name: "Test Author 2"},
		},
		Books: []*models.Book{
			{ID: 1, Title: "Test Book 1", AuthorID: 1, Genre: "Fiction", ImageName: "book1.jpg", ISBN: "1234567890"},
			{ID: 2, Title: "Test Book 2", AuthorID: 2, Genre: "Non-Fiction", ImageName: "book2.jpg", ISBN: "0987654321"},
		},
		BookItems: []*models.BookItem{
			{ID: 1, BookID: 1, AcquisitionDate: now.AddDate(-1, 0, 0), Condition: "New"},
			{ID: 2, BookID: 2, AcquisitionDate: now.AddDate(-1, 0, 0), Condition: "Good"},
		},
		Patrons: []*models.Patron{
			{ID: 1, Name: "John Doe", ImageName: "patron1.jpg", MembershipStart: now.AddDate(-1, 0, 0), MembershipEnd: now.AddDate(1, 0, 0)},
			{ID: 2, Name: "Jane Smith", ImageName: "patron2.jpg", MembershipStart: now.AddDate(-2, 0, 0), MembershipEnd: now.AddDate(0, 0, -30)},
		},
		Loans: []*models.Loan{
			{ID: 1, BookItemID: 1, PatronID: 1, LoanDate: now.AddDate(0, 0, -14), DueDate: now.AddDate(0, 0, 7)},
			{ID: 2, BookItemID: 2, PatronID: 2, LoanDate: now.AddDate(0, 0, -30), DueDate: now.AddDate(0, 0, -9), ReturnDate: &returned},
		},
	}
}

// Paths returns the collection paths inside dir.
func Paths(dir string) config.JSONPaths {
	return config.JSONPaths{
		Authors:   filepath.Join(dir, "authors.json"),
		Books:     filepath.Join(dir, "books.json"),
		BookItems: filepath.Join(dir, "bookitems.json"),
		Patrons:   filepath.Join(dir, "patrons.json"),
		Loans:     filepath.Join(dir, "loans.json"),
	}
}

// Write saves d into dir and returns the paths.
func Write(t testing.TB, dir string, d *Data) config.JSONPaths {
	t.Helper()
	p := Paths(dir)
	for _, err := range []error{
		jsonldb.NewFile[*models.Author](p.Authors).Save(d.Authors),
		jsonldb.NewFile[*models.Book](p.Books).Save(d.Books),
		jsonldb.NewFile[*models.BookItem](p.BookItems).Save(d.BookItems),
		jsonldb.NewFile[*models.Patron](p.Patrons).Save(d.Patrons),
		jsonldb.NewFile[*models.Loan](p.Loans).Save(d.Loans),
	} {
		if err != nil {
			t.Fatalf("failed to write fixtures: %v", err)
		}
	}
	return p
}

// NewStore writes the fixtures for now into a temp dir and returns a Store on
// them. The store is not loaded yet.
func NewStore(t testing.TB, now time.Time, opts ...storage.Option) (*storage.Store, config.JSONPaths) {
	t.Helper()
	p := Write(t, t.TempDir(), NewData(now))
	s, err := storage.NewStore(p, opts...)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s, p
}
