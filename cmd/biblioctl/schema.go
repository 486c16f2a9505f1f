package main

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/maruel/bibliodb/internal/storage"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "schema [collection]",
		Short:     "Print the persisted columns of each collection",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: storage.Collections,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := storage.Collections
			if len(args) == 1 {
				names = args
			}
			for _, name := range names {
				cols, err := storage.Schema(name)
				if err != nil {
					return err
				}
				t := gotree.New(name)
				for _, c := range cols {
					label := fmt.Sprintf("%s %s", c.Name, c.Type)
					if c.Required {
						label += " required"
					}
					t.Add(label)
				}
				a.print(t)
			}
			return nil
		},
	}
}
