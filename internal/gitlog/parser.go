// internal/gitlog/parser.go
// Package gitlog decodes the NUL-delimited git log format produced by
// the gitcli gateway into structured commit records.
package gitlog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Each commit is eight NUL-delimited fields (sha, parent list, author
// name/email, committer name/email, author timestamp, message),
// optionally followed by NUL-delimited numstat entries of the form
// "additions\tdeletions\tpath". Binary files report "-" for both
// numbers and count as zero.
const fieldsPerCommit = 8

var (
	numstatRe   = regexp.MustCompile(`^\s*(\d+|-)\t(\d+|-)\t`)
	coAuthorRe  = regexp.MustCompile(`(?i)Co-authored-by:\s*(.+?)\s*<(.+?)>`)
	signedOffRe = regexp.MustCompile(`(?i)Signed-off-by:\s*(.+?)\s*<(.+?)>`)
)

// Person is a name/email pair extracted from a commit trailer.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is one parsed log record.
type Commit struct {
	SHA            string
	Parents        []string
	Merge          bool
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	Timestamp      time.Time
	Message        string
	FilesChanged   int
	Additions      int
	Deletions      int
}

// Author returns the combined "Name <email>" author string stored in
// the ledger.
func (c Commit) Author() string {
	return c.AuthorName + " <" + c.AuthorEmail + ">"
}

// Committer returns the combined "Name <email>" committer string.
func (c Commit) Committer() string {
	return c.CommitterName + " <" + c.CommitterEmail + ">"
}

// CoAuthors returns every Co-authored-by trailer in the message. Only
// the angle-bracket form is recognised; a trailer without <...> yields
// no match.
func (c Commit) CoAuthors() []Person {
	return scanTrailers(coAuthorRe, c.Message)
}

// SignedOffBy returns every Signed-off-by trailer in the message.
func (c Commit) SignedOffBy() []Person {
	return scanTrailers(signedOffRe, c.Message)
}

// CoAuthorEmail returns the first co-author's email, lower-cased, or ""
// when the message carries no co-author trailer.
func (c Commit) CoAuthorEmail() string {
	authors := c.CoAuthors()
	if len(authors) == 0 {
		return ""
	}
	return strings.ToLower(authors[0].Email)
}

func scanTrailers(re *regexp.Regexp, message string) []Person {
	if message == "" {
		return nil
	}
	var people []Person
	for _, m := range re.FindAllStringSubmatch(message, -1) {
		people = append(people, Person{
			Name:  strings.TrimSpace(m[1]),
			Email: strings.TrimSpace(m[2]),
		})
	}
	return people
}

// Parse decodes raw log output into commit records, newest first.
// Malformed trailing fragments (a truncated final record) are dropped
// rather than reported, mirroring how git itself terminates output.
func Parse(raw string) []Commit {
	if raw == "" {
		return nil
	}
	tokens := strings.Split(raw, "\x00")

	var commits []Commit
	i := 0
	for i+fieldsPerCommit <= len(tokens) {
		sha := strings.TrimLeft(tokens[i], "\n")
		if sha == "" {
			i++
			continue
		}

		parents := strings.TrimSpace(tokens[i+1])
		c := Commit{
			SHA:            clean(sha),
			Merge:          strings.Contains(parents, " "),
			AuthorName:     clean(tokens[i+2]),
			AuthorEmail:    clean(tokens[i+3]),
			CommitterName:  clean(tokens[i+4]),
			CommitterEmail: clean(tokens[i+5]),
			Message:        clean(strings.TrimSpace(tokens[i+7])),
		}
		if parents != "" {
			c.Parents = strings.Fields(parents)
		}
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tokens[i+6])); err == nil {
			c.Timestamp = ts
		}

		// Consume the numstat block, if any, up to the next record.
		i += fieldsPerCommit
		for i < len(tokens) && numstatRe.MatchString(tokens[i]) {
			add, del := parseNumstat(tokens[i])
			c.FilesChanged++
			c.Additions += add
			c.Deletions += del
			i++
		}

		commits = append(commits, c)
	}
	return commits
}

func parseNumstat(line string) (additions, deletions int) {
	m := numstatRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0
	}
	// "-" marks a binary file and counts as zero.
	additions, _ = strconv.Atoi(m[1])
	deletions, _ = strconv.Atoi(m[2])
	return additions, deletions
}

// clean strips stray null bytes and surrounding whitespace from an
// extracted text field before it is persisted.
func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
