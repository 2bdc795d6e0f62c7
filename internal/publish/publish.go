// internal/publish/publish.go
package publish

import (
	"context"
	"fmt"
	"io"
	"time"

	"pubgate/internal/change"
	"pubgate/internal/config"
	apperr "pubgate/internal/errors"
	"pubgate/internal/intent"
	"pubgate/internal/logging"
	"pubgate/internal/policy"
	"pubgate/shared/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher runs the gate against a workspace: snapshot, parse,
// evaluate, refresh indexes, re-evaluate, then stage, commit and push.
type Publisher struct {
	Workspace shared.Workspace
	Config    *config.Config
	Ledger    Ledger
	Logger    *zap.Logger

	// Out receives progress notes for the user.
	Out io.Writer
	Now func() time.Time
}

// run is the bookkeeping for a single Publish or Check call.
type run struct {
	record *shared.RunRecord
	log    *zap.Logger
}

func New(ws shared.Workspace, cfg *config.Config, logger *zap.Logger) (*Publisher, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		Workspace: ws,
		Config:    cfg,
		Logger:    logger,
		Out:       io.Discard,
		Now:       time.Now,
	}, nil
}

// Publish runs the full gate. A policy violation or malformed snapshot
// is returned as an *errors.Error carrying the exit code; res is still
// populated so the caller can report offenders.
func (p *Publisher) Publish(ctx context.Context, req Request) (res *Result, err error) {
	r := p.begin("publish", req.Policy)
	res = &Result{}
	defer func() { p.finish(r, res, err) }()

	engine, err := p.newEngine(r, req.Policy)
	if err != nil {
		return res, err
	}

	if err := p.captureAndEvaluate(ctx, engine, r, res); err != nil || res.Outcome != policy.OutcomePass {
		return res, err
	}

	if !req.SkipIndex {
		ran, err := p.refreshIndex(ctx)
		res.IndexRefreshed = ran
		if err != nil {
			return res, err
		}

		// The index script may itself introduce changes.
		if ran {
			if err := p.captureAndEvaluate(ctx, engine, r, res); err != nil || res.Outcome != policy.OutcomePass {
				return res, err
			}
		}
	}

	res.CommitMessage = intent.BuildMessage(res.Records, req.Message, p.Now())
	r.log.Info("change set accepted",
		zap.Int("records", len(res.Records)),
		zap.String("message", res.CommitMessage))

	if req.DryRun {
		return res, nil
	}

	if err := p.Workspace.Stage(ctx); err != nil {
		return res, err
	}
	if err := p.Workspace.Commit(ctx, res.CommitMessage); err != nil {
		return res, err
	}
	res.Committed = true

	if req.NoPush {
		return res, nil
	}
	if err := p.Workspace.Push(ctx); err != nil {
		return res, err
	}
	res.Pushed = true
	return res, nil
}

// Check evaluates a snapshot without changing the working tree.
func (p *Publisher) Check(ctx context.Context, req CheckRequest) (res *Result, err error) {
	command := req.Command
	if command == "" {
		command = "check"
	}
	r := p.begin(command, req.Policy)
	res = &Result{}
	defer func() { p.finish(r, res, err) }()

	engine, err := p.newEngine(r, req.Policy)
	if err != nil {
		return res, err
	}

	raw := req.Snapshot
	if raw == nil {
		if raw, err = p.Workspace.Snapshot(ctx); err != nil {
			return res, err
		}
	}
	p.keepSnapshot(r, raw)

	records, err := change.ParseFormat(req.Format, raw)
	if err != nil {
		return res, err
	}
	return res, p.evaluate(engine, records, res)
}

func (p *Publisher) newEngine(r *run, opts policy.Options) (*policy.Engine, error) {
	engine, err := policy.NewEngine(p.Config, opts, r.log)
	if err != nil {
		return nil, err
	}
	r.log.Debug("policy engine ready",
		zap.Stringers("rules", engine.Rules()),
		zap.Bool("allow_modify", opts.AllowModify),
		zap.Bool("force", opts.Force))
	return engine, nil
}

func (p *Publisher) captureAndEvaluate(ctx context.Context, engine *policy.Engine, r *run, res *Result) error {
	raw, err := p.Workspace.Snapshot(ctx)
	if err != nil {
		return err
	}
	p.keepSnapshot(r, raw)

	records, err := change.Parse(raw)
	if err != nil {
		return err
	}
	return p.evaluate(engine, records, res)
}

func (p *Publisher) evaluate(engine *policy.Engine, records []change.Record, res *Result) error {
	res.Records = records
	outcome, violation := engine.Evaluate(records)
	res.Outcome = outcome
	res.Violation = violation
	if violation != nil {
		return violation.AsError()
	}
	return nil
}

// refreshIndex prints "Updating indexes..." only when the script ran,
// and the skip note only when it is missing.
func (p *Publisher) refreshIndex(ctx context.Context) (bool, error) {
	ran, err := p.Workspace.RefreshIndex(ctx)
	if !ran {
		if err == nil {
			fmt.Fprintf(p.Out, "Note: %s not found. Skipping index update.\n", p.Config.IndexScript)
		}
		return false, err
	}
	fmt.Fprintln(p.Out, "Updating indexes...")
	return true, err
}

func (p *Publisher) begin(command string, opts policy.Options) *run {
	rec := &shared.RunRecord{
		Command:     command,
		Root:        p.Workspace.Root(),
		StartedAt:   p.Now(),
		AllowModify: opts.AllowModify,
		Force:       opts.Force,
	}
	if id, err := uuid.NewV7(); err == nil {
		rec.ID = id.String()
	} else {
		p.Logger.Warn("generating run id", zap.Error(err))
	}

	log := logging.WithRun(p.Logger, rec.ID).With(zap.String("command", command))
	log.Debug("run started", zap.String("root", rec.Root))
	return &run{record: rec, log: log}
}

// keepSnapshot stores raw in the ledger. Only the last snapshot
// evaluated stays referenced by the run. Best-effort.
func (p *Publisher) keepSnapshot(r *run, raw []byte) {
	if p.Ledger == nil {
		return
	}
	hash, err := p.Ledger.SaveSnapshot(raw)
	if err != nil {
		r.log.Warn("storing snapshot in ledger", zap.Error(err))
		return
	}
	p.releaseSnapshot(r)
	r.record.SnapshotHash = hash
}

func (p *Publisher) releaseSnapshot(r *run) {
	if r.record.SnapshotHash == "" {
		return
	}
	if err := p.Ledger.ReleaseSnapshot(r.record.SnapshotHash); err != nil {
		r.log.Warn("releasing snapshot", zap.String("hash", r.record.SnapshotHash), zap.Error(err))
	}
	r.record.SnapshotHash = ""
}

func (p *Publisher) finish(r *run, res *Result, err error) {
	rec := r.record
	rec.Duration = p.Now().Sub(rec.StartedAt)
	rec.Outcome = string(res.Outcome)
	rec.ExitCode = apperr.ExitCode(err)
	rec.Records = len(res.Records)
	rec.CommitMessage = res.CommitMessage
	if res.Violation != nil {
		rec.Rule = string(res.Violation.Rule)
		for _, c := range res.Violation.Offenders {
			rec.Offenders = append(rec.Offenders, c.String())
		}
	}
	if err != nil {
		rec.Error = err.Error()
		if res.Outcome == "" {
			rec.Outcome = "error"
		}
	}

	r.log.Debug("run finished",
		zap.String("outcome", rec.Outcome),
		zap.Int("exit_code", rec.ExitCode),
		zap.Duration("duration", rec.Duration))

	if p.Ledger == nil {
		return
	}
	if lerr := p.Ledger.Record(rec); lerr != nil {
		r.log.Warn("recording run in ledger", zap.Error(lerr))
		p.releaseSnapshot(r)
		return
	}
	res.RunID = rec.ID
}
