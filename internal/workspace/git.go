// internal/workspace/git.go
package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"pubgate/internal/config"
	apperr "pubgate/internal/errors"

	"go.uber.org/zap"
)

// Git drives the git binary and the index script in a working tree.
// Nothing is retried: staging, committing and pushing are not idempotent.
type Git struct {
	root   string
	binary string
	cfg    *config.Config
	Logger *zap.Logger
}

func NewGit(cfg *config.Config, logger *zap.Logger) (*Git, error) {
	if cfg == nil || cfg.Root == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", cfg.Root, err)
	}
	binary, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git command not found: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Git{root: root, binary: binary, cfg: cfg, Logger: logger}, nil
}

func (g *Git) Root() string {
	return g.root
}

func (g *Git) Snapshot(ctx context.Context) ([]byte, error) {
	out, err := g.run(ctx, g.binary, "status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	g.Logger.Debug("captured status snapshot", zap.Int("bytes", len(out)))
	return out, nil
}

func (g *Git) RefreshIndex(ctx context.Context) (bool, error) {
	if g.cfg.IndexScript == "" {
		return false, nil
	}
	script := g.cfg.IndexScript
	if !filepath.IsAbs(script) {
		script = filepath.Join(g.root, script)
	}
	if _, err := os.Stat(script); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking index script: %w", err)
	}

	var err error
	if g.cfg.IndexInterpreter != "" {
		_, err = g.run(ctx, g.cfg.IndexInterpreter, script)
	} else {
		_, err = g.run(ctx, script)
	}
	return true, err
}

func (g *Git) Stage(ctx context.Context) error {
	_, err := g.run(ctx, g.binary, "add", "-A")
	return err
}

func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, g.binary, "commit", "-m", message)
	return err
}

func (g *Git) Push(ctx context.Context) error {
	args := []string{"push"}
	if g.cfg.Remote != "" {
		args = append(args, g.cfg.Remote)
	}
	_, err := g.run(ctx, g.binary, args...)
	return err
}

// run executes name in the working tree and returns stdout. A non-zero
// exit becomes a collaborator error carrying the same exit code and the
// captured output.
func (g *Git) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdStr := strings.TrimSpace(filepath.Base(name) + " " + strings.Join(args, " "))
	g.Logger.Debug("running collaborator", zap.String("command", cmdStr))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = g.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	code := apperr.ExitInternal
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		code = exitErr.ExitCode()
	}
	g.Logger.Warn("collaborator failed",
		zap.String("command", cmdStr),
		zap.Int("exit_code", code),
		zap.Error(err))

	return nil, apperr.Collaborator(code, cmdStr+" failed",
		captured(stdout.Bytes(), stderr.Bytes()), err)
}

func captured(stdout, stderr []byte) string {
	var parts []string
	for _, b := range [][]byte{stdout, stderr} {
		if s := strings.TrimSpace(string(bytes.ToValidUTF8(b, []byte("�")))); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
