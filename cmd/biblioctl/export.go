package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/maruel/bibliodb/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.db>",
		Short: "Write a SQLite snapshot of every collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			res, err := export.SQLite(cmd.Context(), args[0], a.store)
			if err != nil {
				return err
			}
			t := gotree.New(fmt.Sprintf("Snapshot %s", res.SnapshotID))
			t.Add("Exported at " + res.ExportedAt.Format("2006-01-02 15:04:05Z07:00"))
			for _, table := range slices.Sorted(maps.Keys(res.Rows)) {
				t.Add(fmt.Sprintf("%s: %d rows", table, res.Rows[table]))
			}
			if res.Dangling > 0 {
				t.Add(fmt.Sprintf("%d dangling references written as NULL", res.Dangling))
			}
			a.print(t)
			return nil
		},
	}
}
