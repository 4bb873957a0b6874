package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitProvider implements port.VCSProvider using the git CLI.
type GitProvider struct {
	binary string
}

// NewGitProvider creates a new Git VCS provider. An empty binary means "git".
func NewGitProvider(binary string) *GitProvider {
	if binary == "" {
		binary = "git"
	}
	return &GitProvider{binary: binary}
}

// Clone clones a repository into dest.
func (g *GitProvider) Clone(ctx context.Context, url string, dest string) error {
	if _, err := g.run(ctx, "", "clone", "--quiet", "--", url, dest); err != nil {
		return fmt.Errorf("git clone %s: %w", url, err)
	}
	return nil
}

// Pull fetches the latest changes for an existing repository.
func (g *GitProvider) Pull(ctx context.Context, repoPath string) error {
	if _, err := g.run(ctx, repoPath, "pull", "--quiet", "--ff-only"); err != nil {
		return fmt.Errorf("git pull %s: %w", repoPath, err)
	}
	return nil
}

// ResolveCommit returns the full hash of the commit ref names.
func (g *GitProvider) ResolveCommit(ctx context.Context, repoPath, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "-") {
		return "", fmt.Errorf("invalid commit ref %q", ref)
	}
	out, err := g.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

// DiffNameStatus returns the file-level change list between two commits.
func (g *GitProvider) DiffNameStatus(ctx context.Context, repoPath, fromRef, toRef string) (string, error) {
	out, err := g.run(ctx, repoPath, "diff", "--no-color", "--no-ext-diff", "-M", "--name-status", fromRef, toRef)
	if err != nil {
		return "", fmt.Errorf("git diff --name-status: %w", err)
	}
	return out, nil
}

// DiffFile returns the zero-context unified diff between two commits for paths.
func (g *GitProvider) DiffFile(ctx context.Context, repoPath, fromRef, toRef string, paths ...string) (string, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff", "-M", "--unified=0", fromRef, toRef, "--"}
	args = append(args, paths...)
	out, err := g.run(ctx, repoPath, args...)
	if err != nil {
		return "", fmt.Errorf("git diff %s: %w", strings.Join(paths, " "), err)
	}
	return out, nil
}

// run executes git with args, in dir when it is not empty, and returns stdout.
// Repository discovery never leaves dir. The error carries git's stderr so
// callers can log something useful.
func (g *GitProvider) run(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-c", "core.quotePath=false"}, args...)
	if dir != "" {
		full = append([]string{"-C", dir}, full...)
	}

	cmd := exec.CommandContext(ctx, g.binary, full...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			cmd.Env = append(cmd.Env, "GIT_CEILING_DIRECTORIES="+filepath.Dir(abs))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", ctxErr, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return "", err
			}
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}
