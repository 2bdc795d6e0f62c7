package main

import (
	"fmt"
	"io"
	"time"

	"pubgate/internal/change"
	"pubgate/internal/policy"
	"pubgate/internal/publish"
	"pubgate/shared/types"

	"github.com/fatih/color"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func printViolation(w io.Writer, v *policy.Violation) {
	fmt.Fprintf(w, "\n%s %s\n", red("Blocked:"), v.Headline)
	for _, r := range v.Offenders {
		switch v.Rule {
		case policy.RuleVersionTagRequired:
			fmt.Fprintf(w, "  %s\n", r.Path)
		default:
			fmt.Fprintf(w, "  %s\n", colorRecord(r))
		}
	}
	fmt.Fprintln(w)
	for _, line := range v.Remediation {
		fmt.Fprintln(w, line)
	}
}

// colorRecord colors the status code by its most severe kind and
// labels the line with every kind the code carries.
func colorRecord(r change.Record) string {
	k := r.Kind()
	code := r.Code
	switch {
	case k.Has(change.KindRenamedOrCopied), k.Has(change.KindDeleted), k.Has(change.KindUnmerged):
		code = red(code)
	case k.Has(change.KindModified):
		code = yellow(code)
	case k.Has(change.KindAdded), k.Has(change.KindUntracked):
		code = green(code)
	}

	line := fmt.Sprintf("%s  %s", code, r.Path)
	if k.Has(change.KindRenamedOrCopied) {
		line = fmt.Sprintf("%s  %s -> %s", code, r.OriginalPath, r.Path)
	}
	return line + "  " + faint("("+k.String()+")")
}

// printResult renders a non-violation outcome.
func printResult(w io.Writer, res *publish.Result) {
	switch res.Outcome {
	case policy.OutcomeNothingToDo:
		fmt.Fprintln(w, "Nothing to publish (working tree clean).")
		return
	case policy.OutcomeViolation:
		printViolation(w, res.Violation)
		return
	}

	s := change.Summarize(res.Records)
	fmt.Fprintf(w, "%s %d change(s): %d new, %d modified\n",
		green("OK"), s.Total, s.Added, s.Modified)
	for _, r := range res.Records {
		fmt.Fprintf(w, "  %s\n", colorRecord(r))
	}
}

func printRun(w io.Writer, r *shared.RunRecord) {
	outcome := r.Outcome
	switch policy.Outcome(r.Outcome) {
	case policy.OutcomePass:
		outcome = green(outcome)
	case policy.OutcomeViolation:
		outcome = red(outcome)
	case policy.OutcomeNothingToDo:
		outcome = cyan(outcome)
	default:
		outcome = yellow(outcome)
	}

	fmt.Fprintf(w, "%s  %s  %-8s %-14s exit=%d records=%d",
		bold(r.ID),
		r.StartedAt.Format(time.RFC3339),
		r.Command,
		outcome,
		r.ExitCode,
		r.Records,
	)
	if r.Rule != "" {
		fmt.Fprintf(w, "  [%s]", r.Rule)
	}
	if r.CommitMessage != "" {
		fmt.Fprintf(w, "  %q", r.CommitMessage)
	}
	fmt.Fprintln(w)
}
