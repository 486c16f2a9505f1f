package main

import (
	"errors"
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/maruel/bibliodb/internal/models"
)

func newPatronsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patrons",
		Short: "Search, show and renew patrons",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "search [text]",
			Short: "List patrons whose name contains text",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
				text := ""
				if len(args) == 1 {
					text = args[0]
				}
				patrons, err := a.patrons.SearchPatrons(cmd.Context(), text)
				if err != nil {
					return err
				}
				t := gotree.New(fmt.Sprintf("%d patrons matching %q", len(patrons), text))
				for _, p := range patrons {
					t.Add(a.patronLabel(p))
				}
				a.print(t)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a patron and their loans",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
				p, err := a.patrons.GetPatron(cmd.Context(), id)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("patron %d: %s", id, models.MembershipRenewalPatronNotFound.Description())
				}
				a.print(a.patronTree(p))
				return nil
			},
		},
		&cobra.Command{
			Use:   "renew <id>",
			Short: "Renew a patron's membership",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
				status, err := a.svc.RenewMembership(cmd.Context(), id)
				if err != nil {
					return err
				}
				if status != models.MembershipRenewalSuccess {
					return errors.New(status.Description())
				}
				p, err := a.patrons.GetPatron(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s Membership ends %s.\n", status.Description(), p.MembershipEnd.Format(dateFormat))
				return nil
			},
		},
	)
	return cmd
}

func (a *app) patronLabel(p *models.Patron) string {
	state := "member until"
	if p.MembershipExpired(a.now()) {
		state = "expired"
	}
	return fmt.Sprintf("#%d %s (%s %s, %d loans)", p.ID, p.Name, state, p.MembershipEnd.Format(dateFormat), len(p.Loans))
}

func (a *app) patronTree(p *models.Patron) gotree.Tree {
	t := gotree.New(a.patronLabel(p))
	t.Add("Member since " + p.MembershipStart.Format(dateFormat))
	if p.ImageName != "" {
		t.Add("Image " + p.ImageName)
	}
	if len(p.Loans) == 0 {
		return t
	}
	loans := t.Add("Loans")
	for _, l := range p.Loans {
		loans.AddTree(a.loanTree(l))
	}
	return t
}
