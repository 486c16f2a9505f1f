package storage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/jsonldb"
	"github.com/maruel/bibliodb/internal/models"
	"github.com/maruel/bibliodb/internal/storage"
	"github.com/maruel/bibliodb/internal/storage/storagetest"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) (*storage.Store, config.JSONPaths) {
	t.Helper()
	s, p := storagetest.NewStore(t, now)
	if err := s.LoadData(t.Context()); err != nil {
		t.Fatalf("LoadData failed: %v", err)
	}
	return s, p
}

func TestNewStoreValidatesPaths(t *testing.T) {
	p := storagetest.Paths(t.TempDir())
	p.Books = ""
	if _, err := storage.NewStore(p); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestLoadData(t *testing.T) {
	s, _ := setupStore(t)
	if got := len(s.Authors()); got != 2 {
		t.Errorf("expected 2 authors, got %d", got)
	}
	if got := len(s.Books()); got != 2 {
		t.Errorf("expected 2 books, got %d", got)
	}
	if got := len(s.BookItems()); got != 2 {
		t.Errorf("expected 2 book items, got %d", got)
	}
	if got := len(s.Patrons()); got != 2 {
		t.Errorf("expected 2 patrons, got %d", got)
	}
	loans := s.Loans()
	if len(loans) != 2 {
		t.Fatalf("expected 2 loans, got %d", len(loans))
	}
	if loans[0].ReturnDate != nil {
		t.Errorf("loan 1 should be outstanding")
	}
	if loans[1].ReturnDate == nil || !loans[1].ReturnDate.Equal(now.AddDate(0, 0, -5)) {
		t.Errorf("unexpected return date %v", loans[1].ReturnDate)
	}
	if loans[0].Patron != nil || loans[0].BookItem != nil {
		t.Errorf("loaded loans must not be populated")
	}
}

func TestLoadDataErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s, p := storagetest.NewStore(t, now)
		if err := os.Remove(p.BookItems); err != nil {
			t.Fatal(err)
		}
		if err := s.LoadData(t.Context()); err == nil {
			t.Error("expected error for missing file")
		}
		if s.Authors() != nil {
			t.Error("collections must stay unloaded after a failed load")
		}
	})

	t.Run("malformed keeps previous data", func(t *testing.T) {
		s, p := setupStore(t)
		before := s.Patrons()
		if err := os.WriteFile(p.Patrons, []byte(`[{"Id": `), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := s.LoadData(t.Context()); err == nil {
			t.Fatal("expected error for malformed file")
		}
		if len(s.Patrons()) != 2 || s.Patrons()[0] != before[0] {
			t.Error("previous collections must be kept")
		}
	})
}

func TestEnsureDataLoaded(t *testing.T) {
	s, _ := storagetest.NewStore(t, now)
	ctx := t.Context()
	if err := s.EnsureDataLoaded(ctx); err != nil {
		t.Fatalf("EnsureDataLoaded failed: %v", err)
	}
	first := s.Loans()
	if err := s.EnsureDataLoaded(ctx); err != nil {
		t.Fatalf("EnsureDataLoaded failed: %v", err)
	}
	second := s.Loans()
	if len(first) == 0 || &first[0] != &second[0] || first[0] != second[0] {
		t.Error("EnsureDataLoaded reloaded an already loaded store")
	}

	s.Invalidate()
	if err := s.EnsureDataLoaded(ctx); err != nil {
		t.Fatalf("EnsureDataLoaded failed: %v", err)
	}
	if s.Loans()[0] == first[0] {
		t.Error("EnsureDataLoaded must reload after Invalidate")
	}
}

func TestSaveLoansRoundTrip(t *testing.T) {
	s, p := setupStore(t)
	returned := now.Add(-time.Hour)
	loans := []*models.Loan{
		{ID: 5, BookItemID: 2, PatronID: 1, LoanDate: now.AddDate(0, 0, -3), DueDate: now.AddDate(0, 0, 11)},
		{ID: 3, BookItemID: 1, PatronID: 2, LoanDate: now.AddDate(0, -1, 0), DueDate: now.AddDate(0, 0, -2), ReturnDate: &returned},
	}
	if err := s.SaveLoans(t.Context(), loans); err != nil {
		t.Fatalf("SaveLoans failed: %v", err)
	}
	got, err := jsonldb.NewFile[*models.Loan](p.Loans).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(loans) {
		t.Fatalf("expected %d loans, got %d", len(loans), len(got))
	}
	byID := map[int]*models.Loan{}
	for _, l := range got {
		byID[l.ID] = l
	}
	for _, want := range loans {
		l := byID[want.ID]
		if l == nil {
			t.Fatalf("loan %d missing", want.ID)
		}
		if l.BookItemID != want.BookItemID || l.PatronID != want.PatronID ||
			!l.LoanDate.Equal(want.LoanDate) || !l.DueDate.Equal(want.DueDate) {
			t.Errorf("loan %d: Expected %+v, got %+v", want.ID, want, l)
		}
		if (l.ReturnDate == nil) != (want.ReturnDate == nil) ||
			(l.ReturnDate != nil && !l.ReturnDate.Equal(*want.ReturnDate)) {
			t.Errorf("loan %d: Expected return %v, got %v", want.ID, want.ReturnDate, l.ReturnDate)
		}
	}
}

func TestSaveDropsRelationships(t *testing.T) {
	s, p := setupStore(t)
	populated := s.GetPopulatedPatrons(s.Patrons())
	if err := s.SavePatrons(t.Context(), populated); err != nil {
		t.Fatalf("SavePatrons failed: %v", err)
	}
	if err := s.SaveLoans(t.Context(), populated[0].Loans); err != nil {
		t.Fatalf("SaveLoans failed: %v", err)
	}
	for _, path := range []string{p.Patrons, p.Loans} {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		for _, field := range []string{`"Loans"`, `"Patron"`, `"BookItem"`} {
			if bytes.Contains(raw, []byte(field)) {
				t.Errorf("%s must not contain %s", filepath.Base(path), field)
			}
		}
	}
}

func TestSaveFailureInvalidates(t *testing.T) {
	s, p := setupStore(t)
	ctx := t.Context()
	// A directory in place of the file makes the final rename fail.
	if err := os.Remove(p.Loans); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(p.Loans, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveLoans(ctx, s.Loans()); err == nil {
		t.Fatal("expected save error")
	}
	if err := os.Remove(p.Loans); err != nil {
		t.Fatal(err)
	}
	if err := jsonldb.NewFile[*models.Loan](p.Loans).Save(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureDataLoaded(ctx); err != nil {
		t.Fatalf("EnsureDataLoaded failed: %v", err)
	}
	if len(s.Loans()) != 0 {
		t.Errorf("expected reload from disk after failed save, got %d loans", len(s.Loans()))
	}
}

func TestFailedReloadStaysStale(t *testing.T) {
	s, p := setupStore(t)
	ctx := t.Context()
	onDisk := s.Loans()[0].DueDate
	// An unsaved in-memory edit must never be served after an invalidation.
	s.Loans()[0].DueDate = onDisk.AddDate(5, 0, 0)
	s.Invalidate()

	good, err := os.ReadFile(p.Authors)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.Authors, []byte(`[{"Id": `), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := range 2 {
		if err := s.EnsureDataLoaded(ctx); err == nil {
			t.Fatalf("call %d: expected error while authors.json is malformed", i)
		}
	}
	if _, err := storage.NewLoanRepository(s).GetLoan(ctx, 1); err == nil {
		t.Error("GetLoan must fail while the data cannot be loaded")
	}

	if err := os.WriteFile(p.Authors, good, 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := storage.NewLoanRepository(s).GetLoan(ctx, 1)
	if err != nil {
		t.Fatalf("GetLoan failed: %v", err)
	}
	if !l.DueDate.Equal(onDisk) {
		t.Errorf("Expected due date %v from disk, got %v", onDisk, l.DueDate)
	}
}

func TestGetPopulatedLoan(t *testing.T) {
	s, _ := setupStore(t)
	for _, l := range s.Loans() {
		got := s.GetPopulatedLoan(l)
		if got == l {
			t.Fatal("expected a copy")
		}
		if got.Patron == nil || got.Patron.ID != l.PatronID {
			t.Errorf("loan %d: bad patron %+v", l.ID, got.Patron)
		}
		if got.BookItem == nil || got.BookItem.ID != l.BookItemID {
			t.Fatalf("loan %d: bad book item %+v", l.ID, got.BookItem)
		}
		if got.BookItem.Book == nil || got.BookItem.Book.ID != got.BookItem.BookID {
			t.Fatalf("loan %d: bad book %+v", l.ID, got.BookItem.Book)
		}
		if got.BookItem.Book.Author == nil || got.BookItem.Book.Author.ID != got.BookItem.Book.AuthorID {
			t.Errorf("loan %d: bad author %+v", l.ID, got.BookItem.Book.Author)
		}
	}
	if s.Loans()[0].BookItem != nil {
		t.Error("populating must not modify the stored loan")
	}
}

func TestGetPopulatedLoanDangling(t *testing.T) {
	s, _ := setupStore(t)
	got := s.GetPopulatedLoan(&models.Loan{ID: 99, BookItemID: 42, PatronID: 42})
	if got.Patron != nil || got.BookItem != nil {
		t.Errorf("expected nil relationships, got %+v", got)
	}
	if s.GetPopulatedLoan(nil) != nil {
		t.Error("expected nil for nil loan")
	}
	item := s.GetPopulatedBookItem(&models.BookItem{ID: 9, BookID: 77})
	if item.Book != nil {
		t.Errorf("expected nil book, got %+v", item.Book)
	}
	book := s.GetPopulatedBook(&models.Book{ID: 9, AuthorID: 77})
	if book.Author != nil {
		t.Errorf("expected nil author, got %+v", book.Author)
	}
}

func TestGetPopulatedPatrons(t *testing.T) {
	s, _ := setupStore(t)
	in := []*models.Patron{s.Patrons()[1], s.Patrons()[0]}
	got := s.GetPopulatedPatrons(in)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Fatalf("order not preserved: %+v", got)
	}
	for _, p := range got {
		if len(p.Loans) != 1 || p.Loans[0].PatronID != p.ID {
			t.Errorf("patron %d: unexpected loans %+v", p.ID, p.Loans)
		}
		if p.Loans[0].BookItem == nil {
			t.Errorf("patron %d: loan not populated", p.ID)
		}
	}
	if len(s.GetPopulatedPatrons(nil)) != 0 {
		t.Error("expected empty result")
	}
}

func TestSchema(t *testing.T) {
	for _, name := range storage.Collections {
		cols, err := storage.Schema(name)
		if err != nil {
			t.Fatalf("Schema(%q) failed: %v", name, err)
		}
		if len(cols) == 0 || cols[0].Name != "Id" {
			t.Errorf("Schema(%q) = %+v; want Id first", name, cols)
		}
		for _, c := range cols {
			if c.Type == jsonldb.ColumnTypeJSON {
				t.Errorf("Schema(%q) exposes relationship %q", name, c.Name)
			}
		}
	}

	cols, err := storage.Schema("loans")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "Id,BookItemId,PatronId,LoanDate,DueDate,ReturnDate" {
		t.Errorf("unexpected loan columns %s", got)
	}

	if _, err := storage.Schema("members"); err == nil {
		t.Error("expected error for unknown collection")
	}
}
