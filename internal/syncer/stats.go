// internal/syncer/stats.go
package syncer

import (
	"sort"

	"git-commit-tracker/internal/gitlog"
	"git-commit-tracker/internal/model"
)

// Summary holds the aggregate fields derived from one contributor set.
type Summary struct {
	Committers     []model.ContributorStat
	TotalCommits   int
	CommitterCount int
	BotCommits     int
	BotCommitters  int
	MeanCommits    float64
	DDS            float64
}

// Aggregate performs the shortlog-equivalent aggregation: group parsed
// commits by author email (merges excluded), attach logins via resolve
// (cache-only at this stage; resolve may be nil), then re-group rows
// that have logins by login. The result is sorted by count descending.
func Aggregate(commits []gitlog.Commit, resolve func(email string) string) []model.ContributorStat {
	var order []string
	byEmail := make(map[string]*model.ContributorStat)
	for _, c := range commits {
		if c.Merge {
			continue
		}
		stat, ok := byEmail[c.AuthorEmail]
		if !ok {
			stat = &model.ContributorStat{Name: c.AuthorName, Email: c.AuthorEmail}
			if resolve != nil {
				stat.Login = resolve(c.AuthorEmail)
			}
			byEmail[c.AuthorEmail] = stat
			order = append(order, c.AuthorEmail)
		}
		stat.Count++
	}

	stats := make([]model.ContributorStat, 0, len(order))
	for _, email := range order {
		stats = append(stats, *byEmail[email])
	}
	return RegroupByLogin(stats)
}

// RegroupByLogin merges stat rows that resolved to the same login,
// keeping the first-seen name and email, and re-sorts by count
// descending. Rows without a login pass through unchanged.
func RegroupByLogin(stats []model.ContributorStat) []model.ContributorStat {
	var merged []model.ContributorStat
	byLogin := make(map[string]int)
	for _, stat := range stats {
		if stat.Login == "" {
			merged = append(merged, stat)
			continue
		}
		if i, ok := byLogin[stat.Login]; ok {
			merged[i].Count += stat.Count
			continue
		}
		byLogin[stat.Login] = len(merged)
		merged = append(merged, stat)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Count > merged[j].Count
	})
	return merged
}

// Summarize computes the aggregate counters over a contributor set:
// totals, bot/human split, mean commits per contributor and the
// dominance/diversity score (1 minus the top contributor's share).
func Summarize(stats []model.ContributorStat) Summary {
	s := Summary{Committers: stats}
	for _, stat := range stats {
		s.TotalCommits += stat.Count
		if stat.Bot() {
			s.BotCommitters++
			s.BotCommits += stat.Count
		}
	}
	s.CommitterCount = len(stats)
	if len(stats) == 0 || s.TotalCommits == 0 {
		return s
	}
	s.MeanCommits = float64(s.TotalCommits) / float64(len(stats))
	s.DDS = 1 - float64(stats[0].Count)/float64(s.TotalCommits)
	return s
}
