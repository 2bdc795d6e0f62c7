package publish

import (
	"pubgate/internal/change"
	"pubgate/internal/policy"
	"pubgate/shared/types"
)

// Ledger records runs. Failures are never fatal to a run.
type Ledger interface {
	Record(r *shared.RunRecord) error
	SaveSnapshot(raw []byte) (string, error)
	ReleaseSnapshot(hash string) error
}

// Request configures one publish run.
type Request struct {
	Policy    policy.Options
	Message   string
	SkipIndex bool
	// DryRun evaluates and builds the message without staging.
	DryRun bool
	NoPush bool
}

// CheckRequest evaluates a snapshot without touching the working tree.
// A nil Snapshot is captured from the workspace.
type CheckRequest struct {
	Policy   policy.Options
	Snapshot []byte
	Format   change.Format
	// Command labels the ledger entry.
	Command string
}

// Result describes what a run did.
type Result struct {
	RunID          string            `json:"run_id,omitempty"`
	Outcome        policy.Outcome    `json:"outcome"`
	Records        []change.Record   `json:"records"`
	Violation      *policy.Violation `json:"violation,omitempty"`
	CommitMessage  string            `json:"commit_message,omitempty"`
	IndexRefreshed bool              `json:"index_refreshed"`
	Committed      bool              `json:"committed"`
	Pushed         bool              `json:"pushed"`
}
