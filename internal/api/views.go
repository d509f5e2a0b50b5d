// internal/api/views.go
package api

import (
	"time"

	"git-commit-tracker/internal/model"
)

type hostView struct {
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Kind              string     `json:"kind"`
	IconURL           string     `json:"icon_url,omitempty"`
	RepositoriesCount int        `json:"repositories_count"`
	CommitsCount      int64      `json:"commits_count"`
	ContributorsCount int64      `json:"contributors_count"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
}

func newHostView(h model.Host) hostView {
	v := hostView{
		Name:              h.Name,
		URL:               h.URL,
		Kind:              h.Kind,
		IconURL:           h.IconURL,
		RepositoriesCount: h.RepositoriesCount,
		CommitsCount:      h.CommitsCount,
		ContributorsCount: h.ContributorsCount,
	}
	if h.LastSyncedAt.Valid {
		t := h.LastSyncedAt.Time
		v.LastSyncedAt = &t
	}
	return v
}

type repositoryView struct {
	FullName         string     `json:"full_name"`
	Owner            string     `json:"owner"`
	Description      *string    `json:"description"`
	DefaultBranch    string     `json:"default_branch"`
	Status           *string    `json:"status"`
	LastSyncedCommit *string    `json:"last_synced_commit"`
	LastSyncedAt     *time.Time `json:"last_synced_at"`

	Committers         []model.ContributorStat `json:"committers,omitempty"`
	TotalCommits       *int                    `json:"total_commits"`
	TotalCommitters    *int                    `json:"total_committers"`
	TotalBotCommits    *int                    `json:"total_bot_commits"`
	TotalBotCommitters *int                    `json:"total_bot_committers"`
	MeanCommits        *float64                `json:"mean_commits"`
	DDS                *float64                `json:"dds"`

	PastYearCommitters         []model.ContributorStat `json:"past_year_committers,omitempty"`
	PastYearTotalCommits       *int                    `json:"past_year_total_commits"`
	PastYearTotalCommitters    *int                    `json:"past_year_total_committers"`
	PastYearTotalBotCommits    *int                    `json:"past_year_total_bot_commits"`
	PastYearTotalBotCommitters *int                    `json:"past_year_total_bot_committers"`
	PastYearMeanCommits        *float64                `json:"past_year_mean_commits"`
	PastYearDDS                *float64                `json:"past_year_dds"`
}

func newRepositoryView(r model.Repository) repositoryView {
	v := repositoryView{
		FullName:         r.FullName,
		Owner:            r.Owner,
		Description:      r.Description,
		DefaultBranch:    r.DefaultBranch,
		Status:           r.Status,
		LastSyncedCommit: r.LastSyncedCommit,

		Committers:         r.Committers,
		TotalCommits:       r.TotalCommits,
		TotalCommitters:    r.TotalCommitters,
		TotalBotCommits:    r.TotalBotCommits,
		TotalBotCommitters: r.TotalBotCommitters,
		MeanCommits:        r.MeanCommits,
		DDS:                r.DDS,

		PastYearCommitters:         r.PastYearCommitters,
		PastYearTotalCommits:       r.PastYearTotalCommits,
		PastYearTotalCommitters:    r.PastYearTotalCommitters,
		PastYearTotalBotCommits:    r.PastYearTotalBotCommits,
		PastYearTotalBotCommitters: r.PastYearTotalBotCommitters,
		PastYearMeanCommits:        r.PastYearMeanCommits,
		PastYearDDS:                r.PastYearDDS,
	}
	if r.LastSyncedAt.Valid {
		t := r.LastSyncedAt.Time
		v.LastSyncedAt = &t
	}
	return v
}

type commitView struct {
	SHA           string    `json:"sha"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	Merge         bool      `json:"merge"`
	Author        string    `json:"author"`
	Committer     string    `json:"committer"`
	Stats         [3]int    `json:"stats"`
	CoAuthorEmail *string   `json:"co_author_email,omitempty"`
}

func newCommitView(c model.Commit) commitView {
	return commitView{
		SHA:           c.SHA,
		Message:       c.Message,
		Timestamp:     c.Timestamp,
		Merge:         c.Merge,
		Author:        c.Author,
		Committer:     c.Committer,
		Stats:         c.Stats(),
		CoAuthorEmail: c.CoAuthorEmail,
	}
}

type jobView struct {
	ID      string         `json:"id"`
	URL     string         `json:"url"`
	Status  string         `json:"status"`
	Results map[string]any `json:"results,omitempty"`
}

func newJobView(j model.Job) jobView {
	return jobView{ID: j.ID, URL: j.URL, Status: j.Status, Results: j.Results}
}
