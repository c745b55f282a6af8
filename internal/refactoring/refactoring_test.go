package refactoring

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
  "commits": [{
    "repository": "https://github.com/acme/widget.git",
    "sha1": "abc123",
    "url": "https://github.com/acme/widget/commit/abc123",
    "refactorings": [
      {"type": "Extract Method", "description": "Extract Method\tprivate load() : void extracted from public init() : void in class Widget"},
      {"type": "Rename Variable", "description": "Rename Variable\tx to count in method public add() : void in class Widget"},
      {"type": "Extract Method", "description": "Extract Method\tprivate save() : void extracted from public close() : void in class Widget"}
    ]
  }]
}`

// fakeMiner writes a RefactoringMiner stand-in. remote and local are the JSON
// documents produced for -gc and -c; an empty string makes that mode fail.
func fakeMiner(t *testing.T, remote, local string) (bin, argsLog string) {
	t.Helper()
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args.log")
	remoteFile := filepath.Join(dir, "remote.json")
	localFile := filepath.Join(dir, "local.json")
	require.NoError(t, os.WriteFile(remoteFile, []byte(remote), 0o644))
	require.NoError(t, os.WriteFile(localFile, []byte(local), 0o644))

	script := `#!/bin/sh
echo "$@" >> ` + argsLog + `
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-json" ]; then out="$a"; fi
  prev="$a"
done
case "$1" in
  -gc) src=` + remoteFile + ` ;;
  -c) src=` + localFile + ` ;;
esac
if [ ! -s "$src" ]; then echo "cannot analyze" 1>&2; exit 1; fi
cp "$src" "$out"
`
	bin = filepath.Join(dir, "RefactoringMiner")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsLog
}

func TestCleanCommitID(t *testing.T) {
	assert.Equal(t, "abc123", CleanCommitID("abc123"))
	assert.Equal(t, "abc123", CleanCommitID("abc123#diff-5e1f"))
	assert.Equal(t, "", CleanCommitID("#top"))
}

func TestRepoURL(t *testing.T) {
	assert.Equal(t, "https://github.com/acme/widget.git", RepoURL("https://github.com/acme/widget"))
	assert.Equal(t, "https://github.com/acme/widget.git", RepoURL("https://github.com/acme/widget.git"))
	assert.Equal(t, "https://github.com/acme/widget.git", RepoURL("https://github.com/acme/widget/"))
}

func TestParseOutputMessagesAndCounts(t *testing.T) {
	res, err := parseOutput([]byte(sampleOutput), "abc123")
	require.NoError(t, err)
	require.Len(t, res.Refactorings, 3)

	msgs := res.Messages()
	assert.True(t, strings.HasPrefix(msgs, "1. Extract Method\tprivate load()"))
	assert.Contains(t, msgs, "\n2. Rename Variable\t")
	assert.True(t, strings.HasSuffix(msgs, "in class Widget\n"))

	assert.Equal(t, map[string]int{"Extract Method": 2, "Rename Variable": 1}, res.Counts())
	assert.Equal(t, []string{"Extract Method", "Rename Variable"}, res.Types())
}

func TestParseOutputSkipsOtherCommits(t *testing.T) {
	res, err := parseOutput([]byte(sampleOutput), "fff000")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, "", res.Messages())
}

func TestParseOutputInvalidJSON(t *testing.T) {
	_, err := parseOutput([]byte("{"), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing refactoring output")
}

func TestNilResult(t *testing.T) {
	var r *Result
	assert.True(t, r.Empty())
	assert.Empty(t, r.Counts())
	assert.Equal(t, "", r.Messages())
}

func TestDetectRemote(t *testing.T) {
	bin, argsLog := fakeMiner(t, sampleOutput, "")
	m := NewMiner(Options{Binary: bin, Timeout: 5 * time.Second})

	res, err := m.Detect(context.Background(), "https://github.com/acme/widget", "abc123#L10", "ghp_token")
	require.NoError(t, err)
	assert.Equal(t, "remote", res.Method)
	assert.Len(t, res.Refactorings, 3)

	args, err := os.ReadFile(argsLog)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-gc https://github.com/acme/widget.git abc123 5 -json ")
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(out))
	return strings.TrimSpace(string(out))
}

// bareRepo creates <tmp>/widget.git with two commits and returns the path
// without the .git suffix along with the HEAD hash.
func bareRepo(t *testing.T) (string, string) {
	t.Helper()
	work := t.TempDir()
	gitCmd(t, work, "init", "--quiet")
	gitCmd(t, work, "config", "user.email", "test@test.com")
	gitCmd(t, work, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(work, "a.txt"), []byte("one"), 0o644))
	gitCmd(t, work, "add", "a.txt")
	gitCmd(t, work, "commit", "--quiet", "-m", "first")
	require.NoError(t, os.WriteFile(filepath.Join(work, "a.txt"), []byte("two"), 0o644))
	gitCmd(t, work, "commit", "--quiet", "-am", "second")
	head := gitCmd(t, work, "rev-parse", "HEAD")

	root := t.TempDir()
	gitCmd(t, root, "clone", "--quiet", "--bare", work, "widget.git")
	return filepath.Join(root, "widget"), head
}

func TestDetectFallsBackToLocalClone(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo, head := bareRepo(t)
	local := strings.ReplaceAll(sampleOutput, `"abc123"`, `"`+head+`"`)
	bin, argsLog := fakeMiner(t, "", local)
	m := NewMiner(Options{Binary: bin, Timeout: 5 * time.Second, TempDir: t.TempDir()})

	res, err := m.Detect(context.Background(), repo, head, "")
	require.NoError(t, err)
	assert.Equal(t, "local", res.Method)
	assert.Len(t, res.Refactorings, 3)

	args, err := os.ReadFile(argsLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(args)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "-gc "))
	assert.True(t, strings.HasPrefix(lines[1], "-c "))
}

func TestDetectBothFail(t *testing.T) {
	bin, _ := fakeMiner(t, "", "")
	m := NewMiner(Options{Binary: bin, Timeout: 5 * time.Second, TempDir: t.TempDir()})

	_, err := m.Detect(context.Background(), filepath.Join(t.TempDir(), "missing"), "abc123", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detecting refactorings")
}

func TestDetectEmptyCommitID(t *testing.T) {
	m := NewMiner(Options{})
	_, err := m.Detect(context.Background(), "https://github.com/acme/widget", "#x", "")
	require.Error(t, err)
}
