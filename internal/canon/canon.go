// Package canon implements the normalization/validation layer applied
// at every ingress (HTTP body, import record, CLI arg translation).
// Every function here is pure and idempotent: Canonicalize(Canonicalize(x))
// == Canonicalize(x).
package canon

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

var (
	idPattern       = regexp.MustCompile(`^[a-z]{2}-[0-9a-z]{4}$`)
	gitRefIDPattern = regexp.MustCompile(`^gf-[0-9a-z]{4}$`)
	hexPattern      = regexp.MustCompile(`^[0-9a-f]{40}$`)
	extRelPattern   = regexp.MustCompile(`^x-[a-z0-9_-]+$`)
	whitespace      = regexp.MustCompile(`\s`)
)

// Title trims leading/trailing whitespace and rejects an empty result.
func Title(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", errors.Invalid("title must not be empty")
	}
	return t, nil
}

// Status trims and lowercases a status value, rejecting anything
// outside the enumerated set.
func Status(raw string) (models.Status, error) {
	s := models.Status(strings.ToLower(strings.TrimSpace(raw)))
	if !models.AllStatuses[s] {
		return "", errors.Invalidf("invalid status: %s", raw)
	}
	return s, nil
}

// TaskType trims and lowercases a task type, rejecting anything
// outside the enumerated set.
func TaskType(raw string) (models.Type, error) {
	t := models.Type(strings.ToLower(strings.TrimSpace(raw)))
	if !models.AllTypes[t] {
		return "", errors.Invalidf("invalid type: %s", raw)
	}
	return t, nil
}

// Priority requires an integer in [0,4].
func Priority(p int) (int, error) {
	if p < 0 || p > 4 {
		return 0, errors.Invalid("priority must be between 0 and 4")
	}
	return p, nil
}

// Labels trims, lowercases, and drops empties, returning the sorted
// unique set.
func Labels(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// ID validates a task id against the canonical id regex.
func ID(raw string) (string, error) {
	if !idPattern.MatchString(raw) {
		return "", errors.Invalidf("invalid task id: %s", raw)
	}
	return raw, nil
}

// GitRefID validates a git-ref id against its canonical form.
func GitRefID(raw string) (string, error) {
	if !gitRefIDPattern.MatchString(raw) {
		return "", errors.Invalidf("invalid git-ref id: %s", raw)
	}
	return raw, nil
}

// GitHash trims, lowercases, and requires exactly 40 hex characters.
func GitHash(raw string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(raw))
	if !hexPattern.MatchString(h) {
		return "", errors.Invalidf("invalid git hash: %s", raw)
	}
	return h, nil
}

// ResolvedCommit validates an optional resolved_commit: empty string
// and absent are semantically equivalent, so "" always passes through.
func ResolvedCommit(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	return GitHash(raw)
}

// GitRelation trims and lowercases a relation, accepting built-ins or
// an `x-<suffix>` extension.
func GitRelation(raw string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(raw))
	if models.IsBuiltinRelation(r) {
		return r, nil
	}
	if extRelPattern.MatchString(r) {
		return r, nil
	}
	return "", errors.Invalidf("invalid git relation: %s", raw)
}

// RepoSlug canonicalizes a repo reference into `host/owner/name`,
// accepting URL form, SCP-style form (git@host:owner/name), or a bare
// slug. Idempotent: re-canonicalizing an already-canonical slug
// returns it unchanged.
func RepoSlug(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	var host, rest string

	switch {
	case strings.Contains(s, "://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return "", errors.Invalidf("invalid repo URL: %s", raw)
		}
		host = u.Host
		rest = strings.Trim(u.Path, "/")
	case strings.Contains(s, "@") && strings.Contains(s, ":"):
		at := strings.Index(s, "@")
		colon := strings.Index(s, ":")
		if colon < at {
			return "", errors.Invalidf("invalid repo reference: %s", raw)
		}
		host = s[at+1 : colon]
		rest = s[colon+1:]
	default:
		host = ""
		rest = s
	}

	var full string
	if host != "" {
		full = host + "/" + strings.Trim(rest, "/")
	} else {
		full = rest
	}

	full = strings.ToLower(strings.TrimSpace(full))
	full = strings.TrimSuffix(full, "/")
	full = strings.TrimSuffix(full, ".git")
	full = strings.TrimSuffix(full, "/")

	segs := strings.Split(full, "/")
	if len(segs) != 3 {
		return "", errors.Invalidf("repo slug must have exactly three segments (host/owner/name): %s", raw)
	}
	for _, seg := range segs {
		if seg == "" || whitespace.MatchString(seg) {
			return "", errors.Invalidf("invalid repo slug segment in: %s", raw)
		}
	}
	return strings.Join(segs, "/"), nil
}

// GitPath normalizes a path object_value: rejects leading `/` and any
// `..` segment, then collapses redundant separators and `.` segments.
func GitPath(raw string) (string, error) {
	if strings.HasPrefix(raw, "/") {
		return "", errors.Invalidf("path must not be absolute: %s", raw)
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", errors.Invalidf("path must not contain .. segments: %s", raw)
		}
	}
	cleaned := path.Clean(raw)
	if cleaned == "." {
		return "", errors.Invalid("path must not be empty")
	}
	if strings.HasPrefix(cleaned, "/") || strings.HasPrefix(cleaned, "..") {
		return "", errors.Invalidf("path must not be absolute: %s", raw)
	}
	return cleaned, nil
}

// GitRefLike trims a branch/tag object_value and rejects embedded
// whitespace.
func GitRefLike(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", errors.Invalid("object_value must not be empty")
	}
	if whitespace.MatchString(t) {
		return "", errors.Invalidf("object_value must not contain whitespace: %s", raw)
	}
	return t, nil
}

// ObjectValue canonicalizes a git-ref object_value according to its
// object_type.
func ObjectValue(objType models.ObjectType, raw string) (string, error) {
	switch objType {
	case models.ObjectCommit, models.ObjectBlob, models.ObjectTree:
		return GitHash(raw)
	case models.ObjectPath:
		return GitPath(raw)
	case models.ObjectBranch, models.ObjectTag:
		return GitRefLike(raw)
	default:
		return "", errors.Invalidf("invalid object_type: %s", objType)
	}
}

// ObjectTypeOf validates an object_type string against the enumerated
// set.
func ObjectTypeOf(raw string) (models.ObjectType, error) {
	t := models.ObjectType(strings.ToLower(strings.TrimSpace(raw)))
	if !models.AllObjectTypes[t] {
		return "", errors.Invalidf("invalid object_type: %s", raw)
	}
	return t, nil
}
