package storage_test

import (
	"errors"
	"testing"

	"github.com/maruel/bibliodb/internal/models"
	"github.com/maruel/bibliodb/internal/storage"
	"github.com/maruel/bibliodb/internal/storage/storagetest"
)

func TestSearchPatrons(t *testing.T) {
	s, _ := storagetest.NewStore(t, now)
	r := storage.NewPatronRepository(s)
	ctx := t.Context()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty matches all sorted", "", []string{"Jane Smith", "John Doe"}},
		{"substring", "Doe", []string{"John Doe"}},
		{"shared prefix", "J", []string{"Jane Smith", "John Doe"}},
		{"case sensitive", "john", nil},
		{"no match", "NonExistentName", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SearchPatrons(ctx, tt.text)
			if err != nil {
				t.Fatalf("SearchPatrons failed: %v", err)
			}
			if got == nil {
				t.Fatal("expected a non-nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d patrons", tt.want, len(got))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("result %d: Expected %s, got %s", i, name, got[i].Name)
				}
				if got[i].Loans == nil {
					t.Errorf("result %d: loans not populated", i)
				}
			}
		})
	}
}

func TestGetPatron(t *testing.T) {
	s, _ := storagetest.NewStore(t, now)
	r := storage.NewPatronRepository(s)
	ctx := t.Context()

	p, err := r.GetPatron(ctx, 1)
	if err != nil {
		t.Fatalf("GetPatron failed: %v", err)
	}
	if p == nil || p.Name != "John Doe" {
		t.Fatalf("unexpected patron %+v", p)
	}
	var want []int
	for _, l := range s.Loans() {
		if l.PatronID == 1 {
			want = append(want, l.ID)
		}
	}
	if len(p.Loans) != len(want) {
		t.Fatalf("expected loans %v, got %d", want, len(p.Loans))
	}
	for i, l := range p.Loans {
		if l.ID != want[i] || l.PatronID != 1 {
			t.Errorf("unexpected loan %+v", l)
		}
		if l.BookItem == nil || l.BookItem.Book == nil {
			t.Errorf("loan %d not populated", l.ID)
		}
	}

	missing, err := r.GetPatron(ctx, 999)
	if err != nil {
		t.Fatalf("GetPatron failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestUpdatePatron(t *testing.T) {
	s, _ := storagetest.NewStore(t, now)
	r := storage.NewPatronRepository(s)
	ctx := t.Context()

	p, err := r.GetPatron(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	p.Name = "Jane Q. Smith"
	p.ImageName = "jane.png"
	p.MembershipEnd = now.AddDate(1, 0, 0)
	if err := r.UpdatePatron(ctx, p); err != nil {
		t.Fatalf("UpdatePatron failed: %v", err)
	}

	got, err := r.GetPatron(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Jane Q. Smith" || got.ImageName != "jane.png" {
		t.Errorf("fields not updated: %+v", got)
	}
	if !got.MembershipEnd.Equal(now.AddDate(1, 0, 0)) {
		t.Errorf("Expected membership end %v, got %v", now.AddDate(1, 0, 0), got.MembershipEnd)
	}
	if len(got.Loans) != 1 {
		t.Errorf("expected 1 loan, got %d", len(got.Loans))
	}
	// The live record was reloaded without the attached loans.
	for _, live := range s.Patrons() {
		if live.Loans != nil {
			t.Errorf("patron %d keeps loans after reload", live.ID)
		}
	}
}

func TestUpdatePatronMissing(t *testing.T) {
	s, _ := storagetest.NewStore(t, now)
	r := storage.NewPatronRepository(s)
	ctx := t.Context()
	if err := r.UpdatePatron(ctx, &models.Patron{ID: 999, Name: "Ghost"}); err != nil {
		t.Fatalf("UpdatePatron failed: %v", err)
	}
	all, err := r.SearchPatrons(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 patrons, got %d", len(all))
	}

	strict := storage.NewPatronRepository(s, storage.StrictUpdates())
	if err := strict.UpdatePatron(ctx, &models.Patron{ID: 999}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
