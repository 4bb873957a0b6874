package domain

// ChangeType classifies what happened to a file between two commits.
type ChangeType string

const (
	ChangeAdded       ChangeType = "added"
	ChangeModified    ChangeType = "modified"
	ChangeDeleted     ChangeType = "deleted"
	ChangeRenamed     ChangeType = "renamed"
	ChangeCopied      ChangeType = "copied"
	ChangeTypeChanged ChangeType = "type_changed"
	ChangeUnmerged    ChangeType = "unmerged"
	ChangeUnknown     ChangeType = "unknown"
)

// ChangeTypeFromStatus maps a name-status letter (M, A, R100, ...) to a ChangeType.
func ChangeTypeFromStatus(status string) ChangeType {
	if status == "" {
		return ChangeUnknown
	}
	switch status[0] {
	case 'A':
		return ChangeAdded
	case 'M':
		return ChangeModified
	case 'D':
		return ChangeDeleted
	case 'R':
		return ChangeRenamed
	case 'C':
		return ChangeCopied
	case 'T':
		return ChangeTypeChanged
	case 'U':
		return ChangeUnmerged
	default:
		return ChangeUnknown
	}
}

// LineKind is the side of the diff a changed line belongs to.
type LineKind string

const (
	LineAddition LineKind = "addition"
	LineDeletion LineKind = "deletion"
)

// LineChange is one added or deleted line, without its leading marker.
type LineChange struct {
	Kind    LineKind `json:"type"`
	Content string   `json:"content"`
}

// FileChange describes the line-level changes to one file.
type FileChange struct {
	FilePath    string       `json:"file_path"`
	OldPath     string       `json:"old_path,omitempty"`
	ChangeType  ChangeType   `json:"change_type"`
	Status      string       `json:"status"`
	Additions   int          `json:"additions"`
	Deletions   int          `json:"deletions"`
	LineChanges []LineChange `json:"changes"`
	RawDiff     string       `json:"diff"`
}

// SkippedFile records a file left out of a report and why.
type SkippedFile struct {
	FilePath string `json:"file_path"`
	Reason   string `json:"reason"`
}

// ChangeReport aggregates every file change between two commits.
// TotalAdditions and TotalDeletions are always the sums over FilesChanged.
type ChangeReport struct {
	Repo           string        `json:"repo"`
	Before         string        `json:"before"`
	After          string        `json:"after"`
	FilesChanged   []FileChange  `json:"files_changed"`
	TotalAdditions int           `json:"total_additions"`
	TotalDeletions int           `json:"total_deletions"`
	SkippedFiles   []SkippedFile `json:"skipped_files,omitempty"`
}

// Add appends fc and folds its counts into the totals.
func (r *ChangeReport) Add(fc FileChange) {
	r.FilesChanged = append(r.FilesChanged, fc)
	r.TotalAdditions += fc.Additions
	r.TotalDeletions += fc.Deletions
}

// Skip records a file that could not be diffed.
func (r *ChangeReport) Skip(path string, err error) {
	r.SkippedFiles = append(r.SkippedFiles, SkippedFile{FilePath: path, Reason: err.Error()})
}
