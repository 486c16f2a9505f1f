// Resolves relationships between collections by linear scan.

package storage

import "github.com/maruel/bibliodb/internal/models"

// GetPopulatedLoan returns a copy of loan with Patron and BookItem attached.
// The BookItem carries its Book and the Book its Author. A dangling foreign key
// leaves the field nil.
//
// Patron and Author point at the live records.
func (s *Store) GetPopulatedLoan(loan *models.Loan) *models.Loan {
	if loan == nil {
		return nil
	}
	out := *loan
	out.Patron = s.findPatron(loan.PatronID)
	out.BookItem = s.GetPopulatedBookItem(s.findBookItem(loan.BookItemID))
	return &out
}

// GetPopulatedBookItem returns a copy of item with its Book attached.
func (s *Store) GetPopulatedBookItem(item *models.BookItem) *models.BookItem {
	if item == nil {
		return nil
	}
	out := *item
	out.Book = s.GetPopulatedBook(s.findBook(item.BookID))
	return &out
}

// GetPopulatedBook returns a copy of book with its Author attached.
func (s *Store) GetPopulatedBook(book *models.Book) *models.Book {
	if book == nil {
		return nil
	}
	out := *book
	out.Author = s.findAuthor(book.AuthorID)
	return &out
}

// GetPopulatedPatron returns a copy of patron whose Loans are exactly the loans
// referencing it, each populated.
func (s *Store) GetPopulatedPatron(patron *models.Patron) *models.Patron {
	if patron == nil {
		return nil
	}
	out := *patron
	out.Loans = []*models.Loan{}
	for _, l := range s.loans {
		if l.PatronID == patron.ID {
			out.Loans = append(out.Loans, s.GetPopulatedLoan(l))
		}
	}
	return &out
}

// GetPopulatedPatrons maps GetPopulatedPatron over patrons, keeping order.
func (s *Store) GetPopulatedPatrons(patrons []*models.Patron) []*models.Patron {
	out := make([]*models.Patron, 0, len(patrons))
	for _, p := range patrons {
		out = append(out, s.GetPopulatedPatron(p))
	}
	return out
}

func (s *Store) findAuthor(id int) *models.Author {
	for _, a := range s.authors {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Store) findBook(id int) *models.Book {
	for _, b := range s.books {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *Store) findBookItem(id int) *models.BookItem {
	for _, bi := range s.bookItems {
		if bi.ID == id {
			return bi
		}
	}
	return nil
}

func (s *Store) findPatron(id int) *models.Patron {
	for _, p := range s.patrons {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Store) findLoan(id int) *models.Loan {
	for _, l := range s.loans {
		if l.ID == id {
			return l
		}
	}
	return nil
}
