package port

import "errors"

// Error kinds returned across ports. Callers branch on them with errors.Is.
var (
	ErrNotAGitURL        = errors.New("not a git repository url")
	ErrMirrorAbsent      = errors.New("repository mirror not found")
	ErrCloneFailed       = errors.New("clone failed")
	ErrSyncFailed        = errors.New("sync failed")
	ErrCommitNotFound    = errors.New("commit not found")
	ErrPerFileDiffFailed = errors.New("file diff failed")
	ErrMalformedPayload  = errors.New("malformed webhook payload")
	ErrEmptyPayload      = errors.New("empty webhook payload")
	ErrJobNotFound       = errors.New("job not found")
	ErrStoreDisabled     = errors.New("persistent store disabled")
	ErrQueueFull         = errors.New("webhook queue full")
)

var kinds = []struct {
	err  error
	code string
}{
	{ErrNotAGitURL, "NOT_A_GIT_URL"},
	{ErrMirrorAbsent, "MIRROR_ABSENT"},
	{ErrCloneFailed, "CLONE_FAILED"},
	{ErrSyncFailed, "SYNC_FAILED"},
	{ErrCommitNotFound, "COMMIT_NOT_FOUND"},
	{ErrPerFileDiffFailed, "PER_FILE_DIFF_FAILED"},
	{ErrMalformedPayload, "MALFORMED_PAYLOAD"},
	{ErrEmptyPayload, "EMPTY_PAYLOAD"},
	{ErrJobNotFound, "JOB_NOT_FOUND"},
	{ErrStoreDisabled, "STORE_DISABLED"},
	{ErrQueueFull, "QUEUE_FULL"},
}

// Kind returns the stable code of the first error kind err wraps,
// or "INTERNAL_ERROR".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "INTERNAL_ERROR"
}
