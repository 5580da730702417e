package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/cookiesync/internal/bootstrap"
	"github.com/ericfisherdev/cookiesync/internal/config"
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	dbPath  string
	verbose bool

	stack *bootstrap.Stack
	out   *printer
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "cookiesyncctl",
		Short: "Inspect and change cookiesync configuration",
		Long: `cookiesyncctl reads and writes the same database as the cookiesync
server. Changes are picked up by a running server through its database
watcher.

Configuration is read from COOKIESYNC_* environment variables and the optional
COOKIESYNC_CONFIG file; --db overrides the database path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsStore(cmd) {
				return nil
			}
			return c.open(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "path to the cookiesync database (overrides COOKIESYNC_DB_PATH)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log store commits to stderr")

	root.AddCommand(
		newCredentialsCmd(c),
		newSettingsCmd(c),
		newKeyCmd(c),
		newDomainsCmd(c),
	)
	return root, c
}

// needsStore reports whether cmd reads or writes records. Help and shell
// completion must work without touching the database.
func needsStore(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		switch cmd.Name() {
		case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd, "completion":
			return false
		}
	}
	return true
}

func (c *cli) open(cmd *cobra.Command) error {
	c.out = newPrinter(cmd.OutOrStdout())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	stack, err := bootstrap.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	c.stack = stack
	return nil
}

func (c *cli) close() error {
	if c.stack == nil {
		return nil
	}
	err := c.stack.Close()
	c.stack = nil
	return err
}
