package shared

import (
	"context"
	"time"
)

// Workspace is the version-controlled working tree the gate runs against.
type Workspace interface {
	// Root is the absolute path of the working tree.
	Root() string

	// Snapshot returns raw `git status --porcelain=v1 -z` output.
	Snapshot(ctx context.Context) ([]byte, error)

	// RefreshIndex runs the index regeneration script. ran is false when
	// the script does not exist.
	RefreshIndex(ctx context.Context) (ran bool, err error)

	// Stage stages every pending change.
	Stage(ctx context.Context) error

	// Commit records the staged changes with message.
	Commit(ctx context.Context, message string) error

	// Push publishes the current branch.
	Push(ctx context.Context) error
}

// RunRecord is one gate run as kept in the ledger.
type RunRecord struct {
	ID            string        `json:"id"`
	Command       string        `json:"command"`
	Root          string        `json:"root,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Outcome       string        `json:"outcome"`
	ExitCode      int           `json:"exit_code"`
	Rule          string        `json:"rule,omitempty"`
	Offenders     []string      `json:"offenders,omitempty"`
	Records       int           `json:"records"`
	SnapshotHash  string        `json:"snapshot_hash,omitempty"`
	CommitMessage string        `json:"commit_message,omitempty"`
	AllowModify   bool          `json:"allow_modify"`
	Force         bool          `json:"force"`
	Error         string        `json:"error,omitempty"`
}

func (r *RunRecord) GetID() string {
	return r.ID
}
