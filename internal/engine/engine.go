// Package engine implements the business rules of the task graph on
// top of the embedded store: id generation, canonicalization wiring,
// patch-merge semantics, dependency-graph invariants, and the close
// workflow's git-ref annotation step.
package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sabaini/grns/internal/config"
	"github.com/sabaini/grns/internal/gitresolve"
	"github.com/sabaini/grns/internal/store"
)

// Engine groups the Task, Git-Ref, and Query operations behind a
// single handle bound to one project (prefix) and one store.
type Engine struct {
	db       *store.DB
	logger   *logrus.Logger
	prefix   string
	resolver *gitresolve.Resolver
}

// New builds an Engine scoped to a project identified by prefix (the
// two-letter lowercase id prefix new tasks in this project receive).
// When GRNS_GITHUB_TOKEN is set, the Git-Ref Engine best-effort
// resolves refs whose request names a GitHub-hosted repo to their full
// commit sha; refs that fall back to the task's source_repo are not
// resolved.
func New(db *store.DB, logger *logrus.Logger, prefix string) *Engine {
	return &Engine{
		db:       db,
		logger:   logger,
		prefix:   prefix,
		resolver: gitresolve.New(config.GetString("GRNS_GITHUB_TOKEN", ""), logger),
	}
}

const maxIDRetries = 5

func nowUTC() time.Time {
	return time.Now().UTC()
}
