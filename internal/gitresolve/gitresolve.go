// Package gitresolve does best-effort resolution of a git-ref's
// object value (a short sha, tag, or branch) to its 40-hex commit via
// the GitHub API, when the ref's repo is GitHub-hosted and a token is
// configured.
package gitresolve

import (
	"context"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Resolver wraps a rate-limited go-github client. A zero-value
// Resolver (no token) is valid and always reports unresolved, so
// callers need not branch on configuration.
type Resolver struct {
	client  *github.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// New builds a Resolver. An empty token yields a Resolver that never
// attempts a network call.
func New(token string, logger *logrus.Logger) *Resolver {
	if token == "" {
		return &Resolver{logger: logger}
	}
	return &Resolver{
		client:  github.NewClient(nil).WithAuthToken(token),
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		logger:  logger,
	}
}

// ResolveCommit resolves ref (a sha, tag, or branch name) against a
// GitHub-hosted slug of the form "github.com/owner/name", returning
// the full commit sha. It returns "" whenever resolution isn't
// possible or doesn't apply — a network failure never fails the
// caller's write, it just leaves resolved_commit empty.
func (r *Resolver) ResolveCommit(ctx context.Context, repoSlug, ref string) string {
	if r.client == nil || ref == "" {
		return ""
	}
	owner, name, ok := githubOwnerName(repoSlug)
	if !ok {
		return ""
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.limiter.Wait(reqCtx); err != nil {
		return ""
	}

	commit, _, err := r.client.Repositories.GetCommit(reqCtx, owner, name, ref, nil)
	if err != nil {
		if r.logger != nil {
			r.logger.WithError(err).WithField("repo", repoSlug).Debug("git-ref commit resolution skipped")
		}
		return ""
	}
	return commit.GetSHA()
}

func githubOwnerName(slug string) (owner, name string, ok bool) {
	segs := strings.Split(slug, "/")
	if len(segs) != 3 || segs[0] != "github.com" {
		return "", "", false
	}
	return segs[1], segs[2], true
}
