// internal/model/models.go
package model

import (
	"database/sql"
	"strings"
	"time"
)

// Repository status values. A NULL status means the repository is active.
const (
	StatusNotFound = "not_found"
	StatusTooLarge = "too_large"
)

// Job status values.
const (
	JobPending  = "pending"
	JobQueued   = "queued"
	JobWorking  = "working"
	JobComplete = "complete"
	JobError    = "error"
)

// Host represents a source-control provider such as GitHub or a Gitea
// instance. Host names are unique case-insensitively.
type Host struct {
	ID                int64
	Name              string
	URL               string
	Kind              string
	IconURL           string
	RepositoriesCount int
	CommitsCount      int64
	ContributorsCount int64
	LastSyncedAt      sql.NullTime
	DBCreatedAt       time.Time
	DBUpdatedAt       time.Time
}

// ContributorStat is one row of the shortlog-equivalent aggregation:
// commit counts grouped by email and, once resolved, by login.
type ContributorStat struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Login string `json:"login,omitempty"`
	Count int    `json:"count"`
}

// Bot reports whether the contributor follows the host's bot naming
// convention (a name ending in "[bot]").
func (c ContributorStat) Bot() bool {
	return strings.HasSuffix(c.Name, "[bot]")
}

// Repository is one tracked project on a host.
type Repository struct {
	ID               int64
	HostID           int64
	FullName         string
	Owner            string
	Description      *string
	DefaultBranch    string
	Status           *string // nil = active
	LastSyncedCommit *string
	LastSyncedAt     sql.NullTime

	Committers         []ContributorStat
	TotalCommits       *int
	TotalCommitters    *int
	TotalBotCommits    *int
	TotalBotCommitters *int
	MeanCommits        *float64
	DDS                *float64

	PastYearCommitters         []ContributorStat
	PastYearTotalCommits       *int
	PastYearTotalCommitters    *int
	PastYearTotalBotCommits    *int
	PastYearTotalBotCommitters *int
	PastYearMeanCommits        *float64
	PastYearDDS                *float64

	DBCreatedAt time.Time
	DBUpdatedAt time.Time
}

// Active reports whether the repository has no terminal status.
func (r *Repository) Active() bool {
	return r.Status == nil
}

// Commit is one entry in a repository's commit ledger.
type Commit struct {
	ID            int64
	RepositoryID  int64
	SHA           string
	Message       string
	Timestamp     time.Time
	Merge         bool
	Author        string
	Committer     string
	FilesChanged  int
	Additions     int
	Deletions     int
	CoAuthorEmail *string
	DBCreatedAt   time.Time
}

// Stats returns the commit's diff stats as the (files, additions,
// deletions) triple stored in the ledger.
func (c Commit) Stats() [3]int {
	return [3]int{c.FilesChanged, c.Additions, c.Deletions}
}

// Committer is a resolved identity within a host. Emails are not unique
// across committers; login, when present, is the canonical key.
type Committer struct {
	ID           int64
	HostID       int64
	Login        *string
	Emails       []string
	CommitsCount int
	Hidden       bool
	DBCreatedAt  time.Time
	DBUpdatedAt  time.Time
}

// HasEmail reports whether the committer already owns the given email.
func (c *Committer) HasEmail(email string) bool {
	for _, e := range c.Emails {
		if e == email {
			return true
		}
	}
	return false
}

// Contribution is the materialized (committer, repository) join with a
// precomputed commit count.
type Contribution struct {
	ID           int64
	CommitterID  int64
	RepositoryID int64
	CommitCount  int
}

// Job is an ephemeral record for one asynchronous sync request.
type Job struct {
	ID          string
	URL         string
	IP          string
	Status      string
	TaskID      *int64
	Results     map[string]any
	DBCreatedAt time.Time
	DBUpdatedAt time.Time
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobComplete || j.Status == JobError
}

// Task is one queued unit of work in the priority task queue.
type Task struct {
	ID          int64
	Queue       string
	Kind        string
	Payload     map[string]any
	Status      string
	Error       string
	DBCreatedAt time.Time
	DBUpdatedAt time.Time
}
