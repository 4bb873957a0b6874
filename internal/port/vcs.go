package port

import "context"

// VCSProvider abstracts the version-control tool the mirrors are managed with.
// Every method is bounded by ctx; implementations must stop the tool when
// ctx is done.
type VCSProvider interface {
	// Clone clones a repository from url into dest directory.
	Clone(ctx context.Context, url string, dest string) error

	// Pull fetches the default remote and fast-forwards the checked out branch.
	Pull(ctx context.Context, repoPath string) error

	// ResolveCommit returns the full hash of ref, which must name a commit.
	ResolveCommit(ctx context.Context, repoPath, ref string) (string, error)

	// DiffNameStatus returns the name-status listing between two commits.
	DiffNameStatus(ctx context.Context, repoPath, fromRef, toRef string) (string, error)

	// DiffFile returns the zero-context unified diff between two commits
	// restricted to paths.
	DiffFile(ctx context.Context, repoPath, fromRef, toRef string, paths ...string) (string, error)
}
