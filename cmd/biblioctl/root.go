package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/maruel/bibliodb/internal/buildinfo"
	"github.com/maruel/bibliodb/internal/circulation"
	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/logging"
	"github.com/maruel/bibliodb/internal/storage"
)

const dateFormat = "2006-01-02"

// app is the state shared by every command.
type app struct {
	configPath string
	logLevel   string
	levels     *slog.LevelVar
	out        io.Writer
	// width truncates output lines when positive.
	width int
	now   func() time.Time

	cfg     *config.Config
	store   *storage.Store
	loans   *storage.LoanRepository
	patrons *storage.PatronRepository
	svc     *circulation.Service
}

func newRootCmd(a *app) *cobra.Command {
	if a.now == nil {
		a.now = time.Now
	}
	root := &cobra.Command{
		Use:           "biblioctl",
		Short:         "Inspect and edit the library data files",
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			if a.levels != nil {
				a.levels.Set(level)
			}
			return nil
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.AddCommand(newPatronsCmd(a), newLoansCmd(a), newSchemaCmd(a), newExportCmd(a), newTokenCmd(a))
	return root
}

// loadConfig reads the configuration once.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, err
		}
		a.cfg = cfg
	}
	return a.cfg, nil
}

// open creates the store, repositories and circulation service.
func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	var opts []storage.Option
	if cfg.History.Enabled {
		h, err := storage.OpenHistory(cfg.History.Dir, cfg.History.AuthorName, cfg.History.AuthorEmail)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		opts = append(opts, storage.WithHistory(h))
	}
	store, err := storage.NewStore(cfg.JSONPaths, opts...)
	if err != nil {
		return err
	}
	if err := store.EnsureDataLoaded(ctx); err != nil {
		return err
	}
	a.store = store
	a.loans = storage.NewLoanRepository(store)
	a.patrons = storage.NewPatronRepository(store)
	a.svc = circulation.New(a.loans, a.patrons, cfg.Circulation, circulation.WithClock(a.now))
	return nil
}

// print writes t, cutting lines wider than the terminal.
func (a *app) print(t gotree.Tree) {
	for line := range strings.SplitSeq(strings.TrimRight(t.Print(), "\n"), "\n") {
		fmt.Fprintln(a.out, truncate(line, a.width))
	}
}

func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
