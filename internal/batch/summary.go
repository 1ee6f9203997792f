package batch

import (
	"fmt"
	"strings"
	"time"
)

// Job statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// JobSummary is the outcome of one job.
type JobSummary struct {
	Name      string
	Status    string
	RunID     string
	Base      string
	Rows      int
	Dropped   int
	Output    string
	ErrorKind string
	Error     string
	Elapsed   time.Duration
}

// FormatSummary renders job summaries as Slack mrkdwn.
func FormatSummary(summaries []JobSummary) string {
	ok, failed, skipped := countStatuses(summaries)

	var sb strings.Builder
	sb.WriteString("*Timeweave Batch Summary*\n")
	fmt.Fprintf(&sb, "%d jobs: %d ok, %d failed, %d skipped\n\n", len(summaries), ok, failed, skipped)

	for _, s := range summaries {
		switch s.Status {
		case StatusOK:
			fmt.Fprintf(&sb, "  - %s: %d rows, %d dropped (base %s)\n", s.Name, s.Rows, s.Dropped, s.Base)
		case StatusFailed:
			fmt.Fprintf(&sb, "  - %s: FAILED [%s]\n", s.Name, s.ErrorKind)
		default:
			fmt.Fprintf(&sb, "  - %s: unchanged, skipped\n", s.Name)
		}
	}
	return sb.String()
}

func countStatuses(summaries []JobSummary) (ok, failed, skipped int) {
	for _, s := range summaries {
		switch s.Status {
		case StatusOK:
			ok++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return ok, failed, skipped
}
