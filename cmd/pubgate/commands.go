package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"pubgate/internal/change"
	"pubgate/internal/policy"
	"pubgate/internal/publish"
	"pubgate/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func addPolicyFlags(cmd *cobra.Command, opts *policy.Options) {
	cmd.Flags().BoolVar(&opts.AllowModify, "allow-modify", false, "Allow modifying already-published assets")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Bypass version-tag enforcement (not recommended)")
}

func newPublishCmd(a *app) *cobra.Command {
	var req publish.Request

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Check, stage, commit and push pending changes",
		Long: `Captures the working tree status, enforces the publishing rules, refreshes
indexes, re-checks the result, then stages everything, commits and pushes.`,
		Example: `  pubgate publish
  pubgate publish -m "Add Q3 deck" --skip-index
  pubgate publish --allow-modify --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.publisher()
			if err != nil {
				return err
			}

			res, err := p.Publish(cmd.Context(), req)
			out := cmd.OutOrStdout()
			if res != nil && res.Violation != nil {
				printViolation(out, res.Violation)
			}
			if err != nil {
				return err
			}

			switch {
			case res.Outcome == policy.OutcomeNothingToDo:
				printResult(out, res)
			case req.DryRun:
				printResult(out, res)
				fmt.Fprintf(out, "Dry run: would commit %q\n", res.CommitMessage)
			default:
				fmt.Fprintf(out, "%s %s\n", green("Committed:"), res.CommitMessage)
				if res.Pushed {
					fmt.Fprintln(out, green("Pushed."))
				}
			}
			return nil
		},
	}

	addPolicyFlags(cmd, &req.Policy)
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "Custom commit message")
	cmd.Flags().BoolVar(&req.SkipIndex, "skip-index", false, "Skip the index regeneration step")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "Evaluate and build the message without committing")
	cmd.Flags().BoolVar(&req.NoPush, "no-push", false, "Commit but do not push")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var (
		req      publish.CheckRequest
		snapshot string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the publishing rules without committing",
		Long: `Evaluates the rules against the working tree, or against a saved snapshot
with --snapshot (use - for stdin). Suitable for a pre-push hook.`,
		Example: `  pubgate check
  git status --porcelain=v1 -z | pubgate check --snapshot -
  pubgate check --snapshot status.txt --format lines`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Format = change.Format(format)
			if snapshot != "" {
				raw, err := readSnapshot(cmd.InOrStdin(), snapshot)
				if err != nil {
					return err
				}
				req.Snapshot = raw
			}

			p, err := a.publisher()
			if err != nil {
				return err
			}
			res, err := p.Check(cmd.Context(), req)
			if res != nil && res.Outcome != "" {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	addPolicyFlags(cmd, &req.Policy)
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "Read the status snapshot from a file (- for stdin)")
	cmd.Flags().StringVar(&format, "format", string(change.FormatNUL), "Snapshot format: z (NUL-delimited) or lines (legacy)")
	return cmd
}

func readSnapshot(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot from stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return raw, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded gate runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openLedger()
			if store == nil {
				return fmt.Errorf("run ledger is disabled or unavailable")
			}
			runs, err := store.List(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			for _, r := range runs {
				printRun(out, r)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func newPruneCmd(a *app) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs from the ledger and free their snapshots",
		Example: `  pubgate prune --keep 50
  pubgate prune --keep 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openLedger()
			if store == nil {
				return fmt.Errorf("run ledger is disabled or unavailable")
			}
			stats, err := store.Prune(keep)
			if err != nil {
				return err
			}
			a.logger.Info("ledger pruned",
				zap.Int("runs", stats.Runs),
				zap.Int("snapshots", stats.Snapshots),
				zap.Int64("bytes", stats.Bytes))
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) and %d snapshot(s), %d bytes freed\n",
				stats.Runs, stats.Snapshots, stats.Bytes)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 100, "Number of newest runs to keep")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var req publish.CheckRequest

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-evaluate the snapshot captured by a past run",
		Long: `Loads the status snapshot stored for a past run and evaluates it with the
current configuration and flags. The working tree is not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openLedger()
			if store == nil {
				return fmt.Errorf("run ledger is disabled or unavailable")
			}
			run, err := store.Get(args[0])
			if err != nil {
				return err
			}
			raw, err := store.Snapshot(run)
			if err != nil {
				return fmt.Errorf("loading snapshot for run %s: %w", run.ID, err)
			}

			p, err := a.publisher()
			if err != nil {
				return err
			}
			req.Snapshot = raw
			req.Format = change.FormatNUL
			req.Command = "replay"

			fmt.Fprintf(cmd.OutOrStdout(), "Replaying run %s (%s, %s)\n",
				run.ID, run.Command, run.StartedAt.Format("2006-01-02 15:04:05"))
			if run.Root != "" && run.Root != p.Workspace.Root() {
				fmt.Fprintf(cmd.OutOrStdout(), "Note: run was recorded in %s\n", run.Root)
			}
			res, err := p.Check(cmd.Context(), req)
			if res != nil && res.Outcome != "" {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	addPolicyFlags(cmd, &req.Policy)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var opts policy.Options

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check the rules whenever published directories change",
		Long: `Watches the published directories and evaluates the rules after each burst
of changes. Never stages or commits. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.publisher()
			if err != nil {
				return err
			}
			// Watch runs are not worth a ledger entry each.
			p.Ledger = nil

			w, err := watch.New(a.cfg, a.logger.Logger)
			if err != nil {
				return err
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %v (Ctrl-C to stop)\n", a.cfg.PublishedDirs)

			err = w.Run(cmd.Context(), func(ctx context.Context) {
				res, err := p.Check(ctx, publish.CheckRequest{Policy: opts, Command: "watch"})
				if res != nil && res.Outcome != "" {
					printResult(out, res)
				}
				if err != nil && res.Violation == nil {
					a.logger.Error("evaluation failed", zap.Error(err))
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	addPolicyFlags(cmd, &opts)
	return cmd
}
