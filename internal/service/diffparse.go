package service

import (
	"strconv"
	"strings"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
)

// NameStatusEntry is one line of `git diff --name-status` output.
type NameStatusEntry struct {
	Status  string // raw status, e.g. "M" or "R087"
	Path    string
	OldPath string // set for renames and copies
}

// ParseNameStatus parses tab-separated name-status output. Blank lines and
// lines without a path are skipped; order is preserved.
func ParseNameStatus(out string) []NameStatusEntry {
	var entries []NameStatusEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		e := NameStatusEntry{Status: strings.TrimSpace(parts[0]), Path: unquotePath(parts[1])}
		if len(parts) >= 3 && (strings.HasPrefix(e.Status, "R") || strings.HasPrefix(e.Status, "C")) {
			e.OldPath = e.Path
			e.Path = unquotePath(parts[2])
		}
		entries = append(entries, e)
	}
	return entries
}

// unquotePath undoes git's C-style quoting of unusual file names.
func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		if u, err := strconv.Unquote(p); err == nil {
			return u
		}
	}
	return p
}

// ParseUnifiedDiff extracts added and deleted lines from unified diff text,
// in the order they appear. Only lines inside hunks count, so file headers
// (---/+++), hunk headers, context and "\ No newline" markers are dropped.
func ParseUnifiedDiff(raw string) ([]domain.LineChange, int, int) {
	changes := []domain.LineChange{}
	additions, deletions := 0, 0
	inHunk := false

	for _, line := range strings.Split(strings.TrimSuffix(raw, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHunk = false
			continue
		case strings.HasPrefix(line, "@@"):
			inHunk = true
			continue
		case !inHunk || line == "":
			continue
		}

		switch line[0] {
		case '+':
			changes = append(changes, domain.LineChange{Kind: domain.LineAddition, Content: line[1:]})
			additions++
		case '-':
			changes = append(changes, domain.LineChange{Kind: domain.LineDeletion, Content: line[1:]})
			deletions++
		}
	}
	return changes, additions, deletions
}
