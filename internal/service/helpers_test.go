package service

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
)

// fakeVCS records calls and serves canned git output.
type fakeVCS struct {
	mu         sync.Mutex
	calls      []string
	cloneDelay time.Duration
	cloneErr   error
	pullErr    error
	commits    map[string]string   // ref -> hash
	nameStatus string              // output for DiffNameStatus
	files      map[string]string   // last path -> unified diff
	fileErrs   map[string]error    // last path -> error
	filePaths  map[string][]string // last path -> paths passed
}

func (f *fakeVCS) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeVCS) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeVCS) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeVCS) Clone(ctx context.Context, url, dest string) error {
	f.record("clone")
	if f.cloneDelay > 0 {
		time.Sleep(f.cloneDelay)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if f.cloneErr != nil {
		return f.cloneErr
	}
	return os.MkdirAll(filepath.Join(dest, ".git"), 0o755)
}

func (f *fakeVCS) Pull(ctx context.Context, repoPath string) error {
	f.record("pull")
	return f.pullErr
}

func (f *fakeVCS) ResolveCommit(ctx context.Context, repoPath, ref string) (string, error) {
	f.record("rev-parse")
	if h, ok := f.commits[ref]; ok {
		return h, nil
	}
	return "", errors.New("unknown revision")
}

func (f *fakeVCS) DiffNameStatus(ctx context.Context, repoPath, fromRef, toRef string) (string, error) {
	f.record("name-status")
	return f.nameStatus, nil
}

func (f *fakeVCS) DiffFile(ctx context.Context, repoPath, fromRef, toRef string, paths ...string) (string, error) {
	f.record("diff")
	key := paths[len(paths)-1]
	f.mu.Lock()
	if f.filePaths == nil {
		f.filePaths = make(map[string][]string)
	}
	f.filePaths[key] = paths
	f.mu.Unlock()
	if err := f.fileErrs[key]; err != nil {
		return "", err
	}
	return f.files[key], nil
}

func newTestMirrors(t *testing.T, vcs *fakeVCS) (*MirrorService, string) {
	t.Helper()
	root := t.TempDir()
	return NewMirrorService(vcs, root, time.Minute, nil, logger.Nop()), root
}

// makeMirror creates an on-disk mirror for id without any git history.
func makeMirror(t *testing.T, root string, id domain.RepoIdentity) string {
	t.Helper()
	dir := filepath.Join(root, id.Path())
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// gitRunner runs git commands inside dir and returns trimmed output.
func gitRunner(t *testing.T, dir string) func(args ...string) string {
	return func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}
}

const remoteURL = "https://example.test/acme/widget.git"

// setupRemote creates a repository with commits c1 -> c2, where c2 replaces
// the README line "old" with "new", and rewrites https://example.test/ to
// the directory holding it so remoteURL clones from disk.
func setupRemote(t *testing.T) (dir, c1, c2 string) {
	t.Helper()
	requireGit(t)
	base := t.TempDir()
	dir = filepath.Join(base, "acme", "widget.git")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	run := gitRunner(t, dir)

	run("init", "--quiet")
	run("checkout", "-q", "-b", "main")
	os.WriteFile(filepath.Join(dir, "README"), []byte("title\nold\n"), 0o644)
	run("add", "-A")
	run("commit", "-q", "-m", "c1")
	c1 = run("rev-parse", "HEAD")

	os.WriteFile(filepath.Join(dir, "README"), []byte("title\nnew\n"), 0o644)
	run("add", "-A")
	run("commit", "-q", "-m", "c2")
	c2 = run("rev-parse", "HEAD")

	t.Setenv("GIT_CONFIG_COUNT", "1")
	t.Setenv("GIT_CONFIG_KEY_0", "url.file://"+filepath.ToSlash(base)+"/.insteadOf")
	t.Setenv("GIT_CONFIG_VALUE_0", "https://example.test/")
	return dir, c1, c2
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
