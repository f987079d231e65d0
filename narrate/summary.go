package narrate

import (
	"fmt"
	"strings"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const (
	summaryFileLimit     = 8
	summaryExcerptLimit  = 6
	summaryExcerptEdge   = 3
	summaryExcerptLength = 120
)

// BuildSummary composes a human-readable session summary: step count and
// duration, files touched (first 8), a per-type breakdown, and up to six
// representative narration excerpts (first three plus last three when more
// exist).
func BuildSummary(data model.SessionData) string {
	var parts []string

	total := data.TotalSteps
	mins := int(data.DurationSeconds) / 60
	secs := int(data.DurationSeconds) % 60
	plural := "s"
	if total == 1 {
		plural = ""
	}
	parts = append(parts, fmt.Sprintf("Session covered %d step%s over %dm %ds.", total, plural, mins, secs))

	if len(data.FilesInvolved) > 0 {
		files := data.FilesInvolved
		suffix := ""
		if len(files) > summaryFileLimit {
			files = files[:summaryFileLimit]
			suffix = "..."
		}
		parts = append(parts, fmt.Sprintf("Files touched: %s%s.", strings.Join(files, ", "), suffix))
	}

	if len(data.Steps) > 0 {
		parts = append(parts, "Breakdown: "+typeBreakdown(data.Steps)+".")
	}

	if len(data.Narrations) > 0 {
		parts = append(parts, "\nKey narrations:")
		for _, n := range excerpts(data.Narrations) {
			text := n.Text
			if len(text) > summaryExcerptLength {
				text = text[:summaryExcerptLength]
			}
			parts = append(parts, fmt.Sprintf("  [%s] %s", n.ThinkingType, text))
		}
	}

	return strings.Join(parts, "\n")
}

// typeBreakdown counts steps per thinking type, listing types in the
// order they first appear.
func typeBreakdown(steps []model.StepSummary) string {
	counts := make(map[model.ThinkingType]int)
	var order []model.ThinkingType
	for _, s := range steps {
		if _, seen := counts[s.Type]; !seen {
			order = append(order, s.Type)
		}
		counts[s.Type]++
	}

	entries := make([]string, 0, len(order))
	for _, t := range order {
		entries = append(entries, fmt.Sprintf("%d %s", counts[t], t))
	}
	return strings.Join(entries, ", ")
}

func excerpts(narrations []model.NarrationEntry) []model.NarrationEntry {
	if len(narrations) <= summaryExcerptLimit {
		return narrations
	}
	out := make([]model.NarrationEntry, 0, summaryExcerptLimit)
	out = append(out, narrations[:summaryExcerptEdge]...)
	out = append(out, narrations[len(narrations)-summaryExcerptEdge:]...)
	return out
}
