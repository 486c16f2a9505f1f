// Package models defines the library entities shared by storage, services and
// presentation layers.
package models

import "time"

// Author wrote one or more books.
type Author struct {
	ID   int    `json:"Id"`
	Name string `json:"Name"`
}

// Book is a catalog title. Physical copies are BookItem.
type Book struct {
	ID        int    `json:"Id"`
	Title     string `json:"Title"`
	AuthorID  int    `json:"AuthorId"`
	Genre     string `json:"Genre"`
	ImageName string `json:"ImageName"`
	ISBN      string `json:"ISBN"`

	Author *Author `json:"Author,omitempty"`
}

// BookItem is one physical copy of a Book.
type BookItem struct {
	ID              int       `json:"Id"`
	BookID          int       `json:"BookId"`
	AcquisitionDate time.Time `json:"AcquisitionDate"`
	Condition       string    `json:"Condition"`

	Book *Book `json:"Book,omitempty"`
}

// Patron is a library member.
type Patron struct {
	ID              int       `json:"Id"`
	Name            string    `json:"Name"`
	ImageName       string    `json:"ImageName"`
	MembershipStart time.Time `json:"MembershipStart"`
	MembershipEnd   time.Time `json:"MembershipEnd"`

	// Loans is only set on populated patrons. It is never persisted.
	Loans []*Loan `json:"Loans,omitempty"`
}

// MembershipExpired reports whether the membership ended before now.
func (p *Patron) MembershipExpired(now time.Time) bool {
	return p.MembershipEnd.Before(now)
}

// Loan records a BookItem lent to a Patron.
type Loan struct {
	ID         int        `json:"Id"`
	BookItemID int        `json:"BookItemId"`
	PatronID   int        `json:"PatronId"`
	LoanDate   time.Time  `json:"LoanDate"`
	DueDate    time.Time  `json:"DueDate"`
	ReturnDate *time.Time `json:"ReturnDate"`

	BookItem *BookItem `json:"BookItem,omitempty"`
	Patron   *Patron   `json:"Patron,omitempty"`
}

// Returned reports whether the book item was given back.
func (l *Loan) Returned() bool {
	return l.ReturnDate != nil
}

// Overdue reports whether the loan is outstanding past its due date.
func (l *Loan) Overdue(now time.Time) bool {
	return !l.Returned() && l.DueDate.Before(now)
}
