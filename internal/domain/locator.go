package domain

import (
	"regexp"
	"strings"
)

var (
	// https://host/owner/name(.git)?
	httpsRepoPattern = regexp.MustCompile(`^https://([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)

	// git@host:owner/name(.git)?
	sshRepoPattern = regexp.MustCompile(`^git@([^:/]+):([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// Locate maps a remote repository URL to its identity. It recognizes the
// HTTPS and SCP-like SSH forms only; ok is false for anything else and the
// caller must not attempt a clone. Locate performs no I/O.
func Locate(url string) (RepoIdentity, bool) {
	for _, re := range []*regexp.Regexp{httpsRepoPattern, sshRepoPattern} {
		m := re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		id := RepoIdentity{Host: m[1], Owner: m[2], Name: m[3]}
		if !validSegments(id) {
			return RepoIdentity{}, false
		}
		return id, true
	}
	return RepoIdentity{}, false
}

// ParseIdentity parses the canonical relative form "host/owner/name".
func ParseIdentity(rel string) (RepoIdentity, bool) {
	rel = strings.TrimSuffix(strings.ReplaceAll(rel, `\`, "/"), "/")
	parts := strings.Split(rel, "/")
	if len(parts) != 3 {
		return RepoIdentity{}, false
	}
	id := RepoIdentity{Host: parts[0], Owner: parts[1], Name: strings.TrimSuffix(parts[2], ".git")}
	if !validSegments(id) {
		return RepoIdentity{}, false
	}
	return id, true
}

// Resolve accepts either a remote URL or a canonical relative path.
func Resolve(ref string) (RepoIdentity, bool) {
	ref = strings.TrimSpace(ref)
	if id, ok := Locate(ref); ok {
		return id, true
	}
	if strings.Contains(ref, "://") || strings.Contains(ref, "@") {
		return RepoIdentity{}, false
	}
	return ParseIdentity(ref)
}

// validSegments rejects identities that would escape the store root.
func validSegments(id RepoIdentity) bool {
	for _, s := range []string{id.Host, id.Owner, id.Name} {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `\`+"\x00") {
			return false
		}
	}
	return true
}
