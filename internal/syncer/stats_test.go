// internal/syncer/stats_test.go
package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git-commit-tracker/internal/gitlog"
	"git-commit-tracker/internal/model"
)

func commit(email, name string, merge bool) gitlog.Commit {
	return gitlog.Commit{
		AuthorName:  name,
		AuthorEmail: email,
		Merge:       merge,
		Timestamp:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAggregate_GroupsByEmail(t *testing.T) {
	commits := []gitlog.Commit{
		commit("alice@example.com", "Alice", false),
		commit("bob@example.com", "Bob", false),
		commit("alice@example.com", "Alice", false),
	}

	stats := Aggregate(commits, nil)
	require.Len(t, stats, 2)
	assert.Equal(t, model.ContributorStat{Name: "Alice", Email: "alice@example.com", Count: 2}, stats[0])
	assert.Equal(t, model.ContributorStat{Name: "Bob", Email: "bob@example.com", Count: 1}, stats[1])
}

func TestAggregate_ExcludesMerges(t *testing.T) {
	commits := []gitlog.Commit{
		commit("alice@example.com", "Alice", false),
		commit("alice@example.com", "Alice", true),
	}

	stats := Aggregate(commits, nil)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Count)
}

func TestAggregate_RegroupsByLogin(t *testing.T) {
	// Two emails, one person: the resolver maps both to one login.
	commits := []gitlog.Commit{
		commit("alice@work.com", "Alice", false),
		commit("alice@home.com", "Alice H", false),
		commit("alice@work.com", "Alice", false),
		commit("bob@example.com", "Bob", false),
	}
	logins := map[string]string{
		"alice@work.com": "alice",
		"alice@home.com": "alice",
	}

	stats := Aggregate(commits, func(email string) string { return logins[email] })
	require.Len(t, stats, 2)
	// First-seen name and email win for the merged row.
	assert.Equal(t, model.ContributorStat{Name: "Alice", Email: "alice@work.com", Login: "alice", Count: 3}, stats[0])
	assert.Equal(t, model.ContributorStat{Name: "Bob", Email: "bob@example.com", Count: 1}, stats[1])
}

func TestRegroupByLogin_SortsByCountDescending(t *testing.T) {
	stats := RegroupByLogin([]model.ContributorStat{
		{Name: "Low", Email: "low@example.com", Count: 1},
		{Name: "High", Email: "high@example.com", Count: 10},
	})
	assert.Equal(t, "High", stats[0].Name)
	assert.Equal(t, "Low", stats[1].Name)
}

func TestSummarize_DominanceScore(t *testing.T) {
	summary := Summarize([]model.ContributorStat{
		{Name: "A", Email: "a@example.com", Count: 150},
		{Name: "B", Email: "b@example.com", Count: 100},
		{Name: "C", Email: "c@example.com", Count: 50},
	})

	assert.Equal(t, 300, summary.TotalCommits)
	assert.Equal(t, 3, summary.CommitterCount)
	assert.InDelta(t, 0.5, summary.DDS, 0.0001)
	assert.InDelta(t, 100.0, summary.MeanCommits, 0.0001)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.TotalCommits)
	assert.Zero(t, summary.DDS)
	assert.Zero(t, summary.MeanCommits)
}

func TestSummarize_Bots(t *testing.T) {
	summary := Summarize([]model.ContributorStat{
		{Name: "Alice", Email: "a@example.com", Count: 5},
		{Name: "dependabot[bot]", Email: "dependabot@example.com", Count: 3},
	})

	assert.Equal(t, 1, summary.BotCommitters)
	assert.Equal(t, 3, summary.BotCommits)
}

func TestContributorStat_Bot(t *testing.T) {
	assert.True(t, model.ContributorStat{Name: "dependabot[bot]"}.Bot())
	assert.False(t, model.ContributorStat{Name: "Alice"}.Bot())
	assert.False(t, model.ContributorStat{Name: "[bot] weirdo"}.Bot())
}

func TestCommitsSince(t *testing.T) {
	old := commit("a@example.com", "A", false)
	old.Timestamp = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := commit("b@example.com", "B", false)
	recent.Timestamp = time.Now().AddDate(0, -1, 0)

	window := commitsSince([]gitlog.Commit{old, recent}, time.Now().AddDate(-1, 0, 0))
	require.Len(t, window, 1)
	assert.Equal(t, "b@example.com", window[0].AuthorEmail)
}
