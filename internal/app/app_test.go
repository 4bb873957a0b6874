package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/adapter/store"
	"github.com/arturoeanton/go-git-mirror/internal/adapter/vcs"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
	"github.com/arturoeanton/go-git-mirror/pkg/config"
)

// stubVCS clones by creating an empty working copy and knows no commits.
type stubVCS struct{}

func (stubVCS) Clone(ctx context.Context, url, dest string) error {
	return os.MkdirAll(filepath.Join(dest, ".git"), 0o755)
}
func (stubVCS) Pull(ctx context.Context, repoPath string) error { return nil }
func (stubVCS) ResolveCommit(ctx context.Context, repoPath, ref string) (string, error) {
	return "", errors.New("unknown revision")
}
func (stubVCS) DiffNameStatus(ctx context.Context, repoPath, fromRef, toRef string) (string, error) {
	return "", nil
}
func (stubVCS) DiffFile(ctx context.Context, repoPath, fromRef, toRef string, paths ...string) (string, error) {
	return "", nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.StoreRoot = t.TempDir()
	cfg.FrontendDir = filepath.Join(t.TempDir(), "missing")
	cfg.WebhookAutoClone = false
	return cfg
}

func newTestApp(t *testing.T, git port.VCSProvider) (*App, *fiber.App) {
	t.Helper()
	log := logger.Nop()
	a := NewWithStore(testConfig(t), log, git, store.NewLogStore(log))

	ctx, cancel := context.WithCancel(context.Background())
	a.Webhooks.Start(ctx)
	t.Cleanup(func() {
		cancel()
		a.Webhooks.Wait()
	})
	return a, a.HTTP()
}

type response struct {
	status int
	body   map[string]any
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode, body: map[string]any{}}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func TestHealth(t *testing.T) {
	_, app := newTestApp(t, stubVCS{})
	r := do(t, app, http.MethodGet, "/api/v1/health", "")
	if r.status != http.StatusOK || r.body["status"] != "healthy" {
		t.Fatalf("health = %d %v", r.status, r.body)
	}
}

func TestRepositoryEndpoints(t *testing.T) {
	_, app := newTestApp(t, stubVCS{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"clone without url", http.MethodPost, "/api/v1/repository/clone", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"clone bad url", http.MethodPost, "/api/v1/repository/clone", `{"git_url":"ftp://x/o/n"}`, http.StatusBadRequest, "NOT_A_GIT_URL"},
		{"update absent", http.MethodPost, "/api/v1/repository/update", `{"git_url":"https://github.com/o/n.git"}`, http.StatusNotFound, "MIRROR_ABSENT"},
		{"clone", http.MethodPost, "/api/v1/repository/clone", `{"git_url":"https://github.com/o/n.git"}`, http.StatusOK, ""},
		{"update", http.MethodPost, "/api/v1/repository/update", `{"url":"git@github.com:o/n.git"}`, http.StatusOK, ""},
		{"changes missing params", http.MethodGet, "/api/v1/changes?repo=github.com/o/n", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"changes unknown commit", http.MethodGet, "/api/v1/changes?repo=github.com/o/n&before=a&after=b", "", http.StatusUnprocessableEntity, "COMMIT_NOT_FOUND"},
		{"changes absent mirror", http.MethodGet, "/api/v1/changes?repo=github.com/o/other&before=a&after=b", "", http.StatusNotFound, "MIRROR_ABSENT"},
		{"audit without database", http.MethodGet, "/api/v1/audit/logs", "", http.StatusServiceUnavailable, "STORE_DISABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := do(t, app, tt.method, tt.path, tt.body)
			if r.status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", r.status, tt.status, r.body)
			}
			if tt.code != "" && r.body["code"] != tt.code {
				t.Errorf("code = %v, want %s", r.body["code"], tt.code)
			}
		})
	}

	r := do(t, app, http.MethodGet, "/api/v1/repositories", "")
	repos, _ := r.body["repositories"].([]any)
	if r.status != http.StatusOK || len(repos) != 1 || repos[0] != "github.com/o/n" {
		t.Errorf("repositories = %d %v", r.status, r.body)
	}
}

func TestWebhookEndpoints(t *testing.T) {
	_, app := newTestApp(t, stubVCS{})

	r := do(t, app, http.MethodPost, "/webhook/github", `{}`, "X-GitHub-Event", "push")
	if r.status != http.StatusBadRequest || r.body["code"] != "EMPTY_PAYLOAD" {
		t.Errorf("empty payload = %d %v", r.status, r.body)
	}

	r = do(t, app, http.MethodPost, "/webhook/github", `{"before":"b"}`, "X-GitHub-Event", "push")
	if r.status != http.StatusBadRequest || r.body["code"] != "MALFORMED_PAYLOAD" {
		t.Errorf("malformed payload = %d %v", r.status, r.body)
	}

	r = do(t, app, http.MethodPost, "/webhook/github", `{"zen":"hi"}`, "X-GitHub-Event", "ping")
	if r.status != http.StatusOK || r.body["message"] != "pong" {
		t.Errorf("ping = %d %v", r.status, r.body)
	}

	r = do(t, app, http.MethodPost, "/webhook/github", `{"action":"opened"}`, "X-GitHub-Event", "issues")
	if r.status != http.StatusAccepted || r.body["message"] != "event ignored" {
		t.Errorf("issues = %d %v", r.status, r.body)
	}

	payload := `{"repository":{"full_name":"o/n"},"before":"b","after":"a"}`
	r = do(t, app, http.MethodPost, "/webhook/github", payload, "X-GitHub-Event", "push")
	if r.status != http.StatusAccepted || r.body["repo"] != "github.com/o/n" {
		t.Fatalf("push = %d %v", r.status, r.body)
	}
	jobID, _ := r.body["job_id"].(string)
	if jobID == "" {
		t.Fatal("no job id returned")
	}

	// The mirror does not exist and auto-clone is off, so the job fails.
	deadline := time.Now().Add(5 * time.Second)
	var job response
	for time.Now().Before(deadline) {
		job = do(t, app, http.MethodGet, "/api/v1/jobs/"+jobID, "")
		if job.body["status"] == "error" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.body["status"] != "error" || job.body["error_code"] != "MIRROR_ABSENT" {
		t.Errorf("job = %v", job.body)
	}

	r = do(t, app, http.MethodGet, "/api/v1/jobs/nope", "")
	if r.status != http.StatusNotFound || r.body["code"] != "JOB_NOT_FOUND" {
		t.Errorf("unknown job = %d %v", r.status, r.body)
	}

	r = do(t, app, http.MethodPost, "/webhook/gitee", `{"repository":{"full_name":"o/n"},"before":"b","after":"a"}`, "X-Gitee-Event", "Push Hook")
	if r.status != http.StatusAccepted || r.body["repo"] != "gitee.com/o/n" {
		t.Errorf("gitee push = %d %v", r.status, r.body)
	}
}

func TestChangesWithGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	base := t.TempDir()
	remote := filepath.Join(base, "acme", "widget.git")
	os.MkdirAll(remote, 0o755)
	git := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = remote
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
		return strings.TrimSpace(string(out))
	}
	git("init", "--quiet")
	os.WriteFile(filepath.Join(remote, "README"), []byte("title\nold\n"), 0o644)
	git("add", "-A")
	git("commit", "-q", "-m", "c1")
	c1 := git("rev-parse", "HEAD")
	os.WriteFile(filepath.Join(remote, "README"), []byte("title\nnew\n"), 0o644)
	git("add", "-A")
	git("commit", "-q", "-m", "c2")
	c2 := git("rev-parse", "HEAD")

	t.Setenv("GIT_CONFIG_COUNT", "1")
	t.Setenv("GIT_CONFIG_KEY_0", "url.file://"+filepath.ToSlash(base)+"/.insteadOf")
	t.Setenv("GIT_CONFIG_VALUE_0", "https://example.test/")

	_, app := newTestApp(t, vcs.NewGitProvider(""))

	r := do(t, app, http.MethodPost, "/api/v1/repository/clone", `{"git_url":"https://example.test/acme/widget.git"}`)
	if r.status != http.StatusOK {
		t.Fatalf("clone = %d %v", r.status, r.body)
	}

	r = do(t, app, http.MethodGet, "/api/v1/changes?repo=example.test/acme/widget&before="+c1+"&after="+c2, "")
	if r.status != http.StatusOK {
		t.Fatalf("changes = %d %v", r.status, r.body)
	}
	if r.body["total_additions"] != 1.0 || r.body["total_deletions"] != 1.0 {
		t.Errorf("totals = %v / %v", r.body["total_additions"], r.body["total_deletions"])
	}
	files, _ := r.body["files_changed"].([]any)
	if len(files) != 1 {
		t.Fatalf("files_changed = %v", r.body["files_changed"])
	}
	file := files[0].(map[string]any)
	changes, _ := file["changes"].([]any)
	if file["file_path"] != "README" || len(changes) != 2 {
		t.Errorf("file = %v", file)
	}
}
