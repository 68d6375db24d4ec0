package domain

import (
	"strings"
	"time"
)

// Source is one external listing site.
type Source struct {
	Name       string `json:"name" yaml:"name"`
	ListingURL string `json:"listing_url" yaml:"listing_url"`
}

// CandidateRef is a job card found on a listing page, before the detail fetch.
// Optional fields are nil when the card did not carry them. URL is RawHref
// resolved against the source's listing URL.
type CandidateRef struct {
	Title      string
	Company    *string
	DatePosted *string
	RawHref    string
	URL        string
}

// JobPosting mirrors the `job_postings` PostgreSQL table schema.
// Identity is (URL, ScrapedAt).
type JobPosting struct {
	ID          int64     `json:"id,omitempty"`
	Platform    string    `json:"platform"`
	Company     *string   `json:"company"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	DatePosted  *string   `json:"date_posted"`
	Description *string   `json:"description"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// KeywordProfile holds the ordered target titles and the relevance keywords.
// It is loaded once per run and never mutated.
type KeywordProfile struct {
	Titles   []string
	Keywords []string
}

// NewKeywordProfile trims and drops empty entries, keeping order.
func NewKeywordProfile(titles, keywords []string) KeywordProfile {
	return KeywordProfile{
		Titles:   compact(titles),
		Keywords: compact(keywords),
	}
}

// MatchesTitle reports whether title contains at least one target title,
// case-insensitively.
func (p KeywordProfile) MatchesTitle(title string) bool {
	lower := strings.ToLower(title)
	if strings.TrimSpace(lower) == "" {
		return false
	}
	for _, t := range p.Titles {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// Text is the string embedded on the profile side of the relevance score.
func (p KeywordProfile) Text() string {
	parts := make([]string, 0, len(p.Titles)+len(p.Keywords))
	parts = append(parts, p.Titles...)
	parts = append(parts, p.Keywords...)
	return strings.Join(parts, ", ")
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Optional returns nil for blank strings and a pointer to the trimmed value otherwise.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// RunResult is the per-source outcome of one run.
type RunResult struct {
	SourceName        string  `json:"source_name"`
	Attempted         int     `json:"attempted"`
	Inserted          int     `json:"inserted"`
	SkippedDuplicate  int     `json:"skipped_duplicate"`
	SkippedIrrelevant int     `json:"skipped_irrelevant"`
	PersistErrors     int     `json:"persist_errors"`
	Failed            bool    `json:"failed"`
	LastError         *string `json:"last_error,omitempty"`
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunIdle                  RunState = "idle"
	RunRunning               RunState = "running"
	RunCompleted             RunState = "completed"
	RunCompletedWithFailures RunState = "completed_with_failures"
	RunAborted               RunState = "aborted"
)

// RunReport summarises one complete pass over all sources.
type RunReport struct {
	ID         string      `json:"id"`
	State      RunState    `json:"state"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Results    []RunResult `json:"results"`
	Error      string      `json:"error,omitempty"`
}

// JobQuery is the read-side filter over persisted postings.
type JobQuery struct {
	Title    string
	Platform string
	Page     int
	Limit    int
}

// Offset returns the number of rows to skip for the query's page.
func (q JobQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}
