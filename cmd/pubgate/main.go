// cmd/pubgate/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"

	"pubgate/internal/config"
	apperr "pubgate/internal/errors"
	"pubgate/internal/ledger"
	"pubgate/internal/logging"
	"pubgate/internal/publish"
	"pubgate/internal/workspace"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every command needs, built once in PersistentPreRunE.
type app struct {
	repo      string
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *logging.Logger
	ledger *ledger.Store
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pubgate",
		Short: "pubgate guards published directories before a push",
		Long: `pubgate classifies every pending change in the working tree and refuses to
publish renames, deletes, in-place edits of published assets, or new
published assets without a version tag (-v1, -v2.1, ...).

Exit codes:
  0   published, or nothing to publish
  2   rename/delete detected
  3   modification of a published asset without --allow-modify
  4   new published asset missing a version tag without --force
  10  unparsable status snapshot
  11  rename record missing its new path`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.repo, "repo", "C", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default: <repo>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (console, json)")

	rootCmd.AddCommand(
		newPublishCmd(a),
		newCheckCmd(a),
		newHistoryCmd(a),
		newPruneCmd(a),
		newReplayCmd(a),
		newWatchCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	root := a.repo
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		root = cwd
	}

	cfg, err := config.Load(root, a.cfgFile)
	if err != nil {
		return apperr.Config("loading configuration", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return apperr.Config("initializing logger", err)
	}
	a.logger = logger
	return nil
}

// openLedger opens the run ledger. The ledger is advisory: when it
// cannot be opened the run continues without it.
func (a *app) openLedger() *ledger.Store {
	if a.ledger != nil || a.cfg.Ledger.Disabled {
		return a.ledger
	}
	store, err := ledger.Open(a.cfg.LedgerDir(), a.cfg.Ledger.CacheSize)
	if err != nil {
		a.logger.Warn("run ledger unavailable", zap.String("path", a.cfg.LedgerDir()), zap.Error(err))
		return nil
	}
	a.ledger = store
	return store
}

func (a *app) publisher() (*publish.Publisher, error) {
	ws, err := workspace.NewGit(a.cfg, a.logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace: %w", err)
	}
	p, err := publish.New(ws, a.cfg, a.logger.Logger)
	if err != nil {
		return nil, err
	}
	p.Out = os.Stdout
	if store := a.openLedger(); store != nil {
		p.Ledger = store
	}
	return p, nil
}

func (a *app) close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.Warn("closing run ledger", zap.Error(err))
		}
		a.ledger = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	// PersistentPostRun is skipped when RunE fails.
	a.close()

	if err != nil {
		reportError(err)
		os.Exit(apperr.ExitCode(err))
	}
}

// reportError prints err for the user. Policy violations were already
// rendered by the command; collaborator output is surfaced verbatim.
func reportError(err error) {
	var e *apperr.Error
	if !stderrors.As(err, &e) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	switch e.Type {
	case apperr.ErrorTypePolicy:
	case apperr.ErrorTypeMalformed:
		fmt.Fprintln(os.Stderr, "Blocked:", err)
	case apperr.ErrorTypeCollaborator:
		if out, ok := e.Details.(string); ok && out != "" {
			fmt.Fprintln(os.Stderr, out)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}
