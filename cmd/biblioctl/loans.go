package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/maruel/bibliodb/internal/models"
)

func newLoansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Show, return and extend loans",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a loan with its book and patron",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := a.getLoan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				t := a.loanTree(l)
				if l.Patron != nil {
					t.Add(fmt.Sprintf("Patron #%d %s", l.Patron.ID, l.Patron.Name))
				} else {
					t.Add(fmt.Sprintf("Patron #%d (missing)", l.PatronID))
				}
				a.print(t)
				return nil
			},
		},
		&cobra.Command{
			Use:   "return <id>",
			Short: "Mark a loan returned",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
				status, err := a.svc.ReturnLoan(cmd.Context(), id)
				if err != nil {
					return err
				}
				if status != models.LoanReturnSuccess {
					return errors.New(status.Description())
				}
				fmt.Fprintln(a.out, status.Description())
				return nil
			},
		},
		&cobra.Command{
			Use:   "extend <id>",
			Short: "Push the due date of an outstanding loan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
				status, err := a.svc.ExtendLoan(cmd.Context(), id)
				if err != nil {
					return err
				}
				if status != models.LoanExtensionSuccess {
					return errors.New(status.Description())
				}
				l, err := a.loans.GetLoan(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s Due %s.\n", status.Description(), l.DueDate.Format(dateFormat))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) getLoan(ctx context.Context, arg string) (*models.Loan, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	if err := a.open(ctx); err != nil {
		return nil, err
	}
	l, err := a.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("loan %d: %s", id, models.LoanReturnLoanNotFound.Description())
	}
	return l, nil
}

func (a *app) loanTree(l *models.Loan) gotree.Tree {
	state := "due " + l.DueDate.Format(dateFormat)
	switch {
	case l.Returned():
		state = "returned " + l.ReturnDate.Format(dateFormat)
	case l.Overdue(a.now()):
		state = "overdue since " + l.DueDate.Format(dateFormat)
	}
	t := gotree.New(fmt.Sprintf("Loan #%d, %s", l.ID, state))
	t.Add("Lent " + l.LoanDate.Format(dateFormat))
	bi := l.BookItem
	if bi == nil {
		t.Add(fmt.Sprintf("Item #%d (missing)", l.BookItemID))
		return t
	}
	item := t.Add(fmt.Sprintf("Item #%d, %s", bi.ID, bi.Condition))
	if b := bi.Book; b != nil {
		title := fmt.Sprintf("%q ISBN %s", b.Title, b.ISBN)
		if b.Author != nil {
			title += " by " + b.Author.Name
		}
		item.Add(title)
	}
	return t
}
