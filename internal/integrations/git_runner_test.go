package integrations

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(out))
}

func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	gitCmd(t, dir, "init", "--quiet")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644))
	gitCmd(t, dir, "add", "hello.txt")
	gitCmd(t, dir, "commit", "--quiet", "-m", "initial commit")

	return dir
}

func addCommit(t *testing.T, dir, content, msg string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte(content), 0o644))
	gitCmd(t, dir, "commit", "--quiet", "-am", msg)
}

func TestGitRunnerParentAndCheckout(t *testing.T) {
	dir := setupGitRepo(t)
	g := NewGitRunner(dir)
	ctx := context.Background()

	_, ok, err := g.Parent(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "root commit has no parent")

	first, err := g.RevParse(ctx, "HEAD")
	require.NoError(t, err)
	addCommit(t, dir, "second", "second commit")

	parent, ok, err := g.Parent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, parent)

	require.NoError(t, g.Checkout(ctx, parent))
	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestGitRunnerCloneShallow(t *testing.T) {
	src := setupGitRepo(t)
	addCommit(t, src, "two", "two")
	addCommit(t, src, "three", "three")

	dest := filepath.Join(t.TempDir(), "clone")
	g := NewGitRunner("")
	require.NoError(t, g.Clone(context.Background(), "file://"+src, dest, 2))

	g = NewGitRunner(dest)
	_, err := g.RevParse(context.Background(), "HEAD~1")
	require.NoError(t, err)
	_, err = g.RevParse(context.Background(), "HEAD~2")
	assert.Error(t, err, "history beyond the clone depth is absent")
}

func TestGitRunnerShow(t *testing.T) {
	dir := setupGitRepo(t)
	addCommit(t, dir, "changed", "change greeting")

	out, err := NewGitRunner(dir).Show(context.Background(), "HEAD")
	require.NoError(t, err)
	assert.Contains(t, out, "change greeting")
	assert.Contains(t, out, "+changed")
}

func TestGitRunnerErrorIncludesStderr(t *testing.T) {
	_, err := NewGitRunner(t.TempDir()).RevParse(context.Background(), "HEAD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git rev-parse")
}
