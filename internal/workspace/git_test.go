package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"pubgate/internal/change"
	"pubgate/internal/config"
	apperr "pubgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*Git, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
		{"config", "commit.gpgsign", "false"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	cfg := config.Default()
	cfg.Root = dir
	g, err := NewGit(cfg, nil)
	require.NoError(t, err)
	return g, dir
}

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestGitSnapshotAndCommit(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	raw, err := g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)

	writeFile(t, dir, "decks/My Talk-v1.pptx", "slides")
	writeFile(t, dir, "references/Guide.md", "# guide")

	raw, err = g.Snapshot(ctx)
	require.NoError(t, err)
	records, err := change.Parse(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, change.UntrackedCode, r.Code)
	}

	require.NoError(t, g.Stage(ctx))
	require.NoError(t, g.Commit(ctx, "Publish 2 asset(s)"))

	raw, err = g.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestGitRenameSnapshot(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "decks/a-v1.pptx", "same content for rename detection")
	require.NoError(t, g.Stage(ctx))
	require.NoError(t, g.Commit(ctx, "init"))

	require.NoError(t, os.Rename(filepath.Join(dir, "decks/a-v1.pptx"), filepath.Join(dir, "decks/b-v1.pptx")))
	require.NoError(t, g.Stage(ctx))

	raw, err := g.Snapshot(ctx)
	require.NoError(t, err)
	records, err := change.Parse(raw)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsRenameOrCopy())
	assert.ElementsMatch(t, []string{"decks/a-v1.pptx", "decks/b-v1.pptx"},
		[]string{records[0].Path, records[0].OriginalPath})
}

func TestGitCollaboratorFailure(t *testing.T) {
	g, _ := setupTestRepo(t)

	// Nothing staged: git commit exits 1.
	err := g.Commit(context.Background(), "empty")
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.ErrorTypeCollaborator))
	assert.Equal(t, 1, apperr.ExitCode(err))
}

func TestGitRefreshIndex(t *testing.T) {
	g, dir := setupTestRepo(t)
	ctx := context.Background()

	ran, err := g.RefreshIndex(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "script missing")

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	g.cfg.IndexInterpreter = "sh"
	g.cfg.IndexScript = "tools/update-index.sh"

	writeFile(t, dir, "tools/update-index.sh", "echo '# index' > references/index.md\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "references"), 0755))
	ran, err = g.RefreshIndex(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.FileExists(t, filepath.Join(dir, "references", "index.md"))

	writeFile(t, dir, "tools/update-index.sh", "echo broken >&2\nexit 5\n")
	_, err = g.RefreshIndex(ctx)
	require.Error(t, err)
	assert.Equal(t, 5, apperr.ExitCode(err))

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Details, "broken")
}
