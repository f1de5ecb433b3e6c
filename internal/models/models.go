// Package models defines the core data structures for the task graph:
// tasks, dependency edges, git references, and the shared repo
// catalog.
package models

import "time"

// Status is a task's place in its lifecycle.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDeferred   Status = "deferred"
	StatusClosed     Status = "closed"
	StatusPinned     Status = "pinned"
	StatusTombstone  Status = "tombstone"
)

// AllStatuses is the exhaustive set of valid task statuses.
var AllStatuses = map[Status]bool{
	StatusOpen:       true,
	StatusInProgress: true,
	StatusBlocked:    true,
	StatusDeferred:   true,
	StatusClosed:     true,
	StatusPinned:     true,
	StatusTombstone:  true,
}

// Type is the kind of work a task represents.
type Type string

const (
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
	TypeTask    Type = "task"
	TypeEpic    Type = "epic"
	TypeChore   Type = "chore"
)

// AllTypes is the exhaustive set of valid task types.
var AllTypes = map[Type]bool{
	TypeBug:     true,
	TypeFeature: true,
	TypeTask:    true,
	TypeEpic:    true,
	TypeChore:   true,
}

// DepType is the kind of a dependency edge. "blocks" is the only kind
// in scope.
type DepType string

const DepBlocks DepType = "blocks"

// Task is a single trackable work item.
type Task struct {
	ID          string            `json:"id" db:"id"`
	Title       string            `json:"title" db:"title"`
	Type        Type              `json:"type" db:"type"`
	Status      Status            `json:"status" db:"status"`
	Priority    int               `json:"priority" db:"priority"`
	Description string            `json:"description,omitempty" db:"description"`
	Acceptance  string            `json:"acceptance,omitempty" db:"acceptance"`
	Assignee    string            `json:"assignee,omitempty" db:"assignee"`
	Parent      string            `json:"parent,omitempty" db:"parent"`
	SpecID      string            `json:"spec_id,omitempty" db:"spec_id"`
	SourceRepo  string            `json:"source_repo,omitempty" db:"source_repo"`
	Labels      []string          `json:"labels"`
	Custom      map[string]string `json:"custom,omitempty"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty" db:"closed_at"`

	// Deps lists the task's "blocks" parents. Populated on read for
	// show/export; absent from the db-backed scalar row.
	Deps []DepEdge `json:"deps,omitempty"`
}

// DepEdge is a directed (child, parent, type) dependency edge,
// embedded in export records.
type DepEdge struct {
	ParentID string  `json:"parent_id"`
	Type     DepType `json:"type"`
}

// ObjectType is the kind of git object a GitRef points at.
type ObjectType string

const (
	ObjectCommit ObjectType = "commit"
	ObjectTag    ObjectType = "tag"
	ObjectBranch ObjectType = "branch"
	ObjectPath   ObjectType = "path"
	ObjectBlob   ObjectType = "blob"
	ObjectTree   ObjectType = "tree"
)

// AllObjectTypes is the exhaustive set of valid git-ref object types.
var AllObjectTypes = map[ObjectType]bool{
	ObjectCommit: true,
	ObjectTag:    true,
	ObjectBranch: true,
	ObjectPath:   true,
	ObjectBlob:   true,
	ObjectTree:   true,
}

// Built-in git-ref relations. Extension relations match `x-<suffix>`.
const (
	RelationDesignDoc    = "design_doc"
	RelationImplements   = "implements"
	RelationFixCommit    = "fix_commit"
	RelationClosedBy     = "closed_by"
	RelationIntroducedBy = "introduced_by"
	RelationRelated      = "related"
)

var builtinRelations = map[string]bool{
	RelationDesignDoc:    true,
	RelationImplements:   true,
	RelationFixCommit:    true,
	RelationClosedBy:     true,
	RelationIntroducedBy: true,
	RelationRelated:      true,
}

// IsBuiltinRelation reports whether relation is one of the fixed
// built-in relation kinds (not an `x-` extension).
func IsBuiltinRelation(relation string) bool {
	return builtinRelations[relation]
}

// GitRef links a task to a git object in a canonical repo.
type GitRef struct {
	ID             string     `json:"id" db:"id"`
	TaskID         string     `json:"task_id" db:"task_id"`
	Repo           string     `json:"repo" db:"repo"`
	Relation       string     `json:"relation" db:"relation"`
	ObjectType     ObjectType `json:"object_type" db:"object_type"`
	ObjectValue    string     `json:"object_value" db:"object_value"`
	ResolvedCommit string     `json:"resolved_commit,omitempty" db:"resolved_commit"`
	Note           string     `json:"note,omitempty" db:"note"`
	Meta           string     `json:"meta,omitempty" db:"meta"` // raw JSON object, opaque to the engine
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// RepoCatalogEntry is a row in the shared canonical-slug interning
// table.
type RepoCatalogEntry struct {
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Filter describes the composable AND-of-predicates list/search query
// parameters.
type Filter struct {
	Label         []string   // label-AND: task labels superset this set
	LabelAny      []string   // label-ANY: task labels intersect this set
	Status        []Status   // status membership
	Type          Type       // exact type match; zero value = any
	SpecRegex     string     // regex against spec_id
	UpdatedBefore *time.Time // updated_at < cutoff
	Search        string     // FTS query
}

// Page describes a limit/offset pagination window.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPage is used when a caller supplies no explicit limit/offset.
var DefaultPage = Page{Limit: 50, Offset: 0}

// ClosePatch is the request shape for batch close.
type ClosePatch struct {
	IDs    []string `json:"ids"`
	Commit string   `json:"commit,omitempty"`
	Repo   string   `json:"repo,omitempty"`
}

// CloseResult reports how many git-refs a close operation newly
// inserted.
type CloseResult struct {
	Tasks     []*Task `json:"tasks"`
	Annotated int     `json:"annotated"`
}
