package narrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const answerSystemPrompt = `You are a pair programmer answering a listener's spoken question about what you
are currently doing. Answer briefly and conversationally, in plain prose that can be
spoken aloud. Use the provided context; do not invent work you have not done.`

// AnswerQuestion produces an answer to a listener question using the
// bounded question context. The external tier is tried when configured;
// failures degrade silently to the template answer. Always returns
// non-empty text.
func (g *Generator) AnswerQuestion(ctx context.Context, question string, qctx model.QuestionContext) string {
	if g.completer != nil {
		answer, err := g.completer.Complete(ctx, answerSystemPrompt, answerPrompt(question, qctx))
		if err == nil && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer)
		}
		g.logger.Warn("llm answer failed, falling back to template", "error", err)
	}
	return BuildAnswer(question, qctx)
}

func answerPrompt(question string, qctx model.QuestionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if qctx.CurrentStep != nil {
		fmt.Fprintf(&b, "Current step: %d of %d\n", *qctx.CurrentStep, qctx.TotalSteps)
	}
	if len(qctx.RecentSteps) > 0 {
		b.WriteString("Recent steps:\n")
		for _, s := range qctx.RecentSteps {
			fmt.Fprintf(&b, "  - Step %d (%s): %s\n", s.StepNumber, s.Type, s.Description)
		}
	}
	if len(qctx.FilesInvolved) > 0 {
		fmt.Fprintf(&b, "Files involved: %s\n", strings.Join(qctx.FilesInvolved, ", "))
	}
	for _, c := range qctx.Conversation {
		fmt.Fprintf(&b, "Earlier Q&A: Q: %s A: %s\n", c.Question, c.Answer)
	}
	if len(qctx.Extra) > 0 {
		b.WriteString("Additional context from the caller:\n")
		for _, k := range sortedKeys(qctx.Extra) {
			fmt.Fprintf(&b, "  - %s: %v\n", k, qctx.Extra[k])
		}
	}
	b.WriteString("\nAnswer the question in a couple of spoken sentences:")
	return b.String()
}

// BuildAnswer composes a deterministic answer from the question context.
// It is the template tier for question answering and works offline.
func BuildAnswer(question string, qctx model.QuestionContext) string {
	var parts []string

	if qctx.CurrentStep != nil && len(qctx.RecentSteps) > 0 {
		latest := qctx.RecentSteps[len(qctx.RecentSteps)-1]
		parts = append(parts, fmt.Sprintf(
			"Right now I'm on step %d, which is about %s.", *qctx.CurrentStep, latest.Description))
	}

	if len(qctx.FilesInvolved) > 0 {
		files := qctx.FilesInvolved
		if len(files) > 5 {
			files = files[:5]
		}
		parts = append(parts, fmt.Sprintf("So far I've been working with: %s.", strings.Join(files, ", ")))
	}

	if len(parts) == 0 {
		parts = append(parts, "Let me think about that.")
	}

	q := strings.ToLower(question)
	switch {
	case containsAnyWord(q, "why", "reason", "explain"):
		if len(qctx.RecentSteps) > 0 {
			recent := qctx.RecentSteps
			if len(recent) > 3 {
				recent = recent[len(recent)-3:]
			}
			var descs []string
			for _, s := range recent {
				if s.Description != "" {
					descs = append(descs, s.Description)
				}
			}
			parts = append(parts, "Here's what I've been doing: "+strings.Join(descs, "; ")+".")
		}
	case containsAnyWord(q, "what file", "which file"):
		if len(qctx.FilesInvolved) > 0 {
			files := qctx.FilesInvolved
			if len(files) > 5 {
				files = files[:5]
			}
			parts = append(parts, fmt.Sprintf("The main files involved are: %s.", strings.Join(files, ", ")))
		}
	case containsAnyWord(q, "how long", "time", "when"):
		current := 0
		if qctx.CurrentStep != nil {
			current = *qctx.CurrentStep
		}
		parts = append(parts, fmt.Sprintf("We're at step %d out of %d so far.", current, qctx.TotalSteps))
	}

	if len(qctx.Extra) > 0 {
		var notes []string
		for _, k := range sortedKeys(qctx.Extra) {
			notes = append(notes, fmt.Sprintf("%s is %v", strings.ReplaceAll(k, "_", " "), qctx.Extra[k]))
		}
		parts = append(parts, "Worth noting: "+strings.Join(notes, ", ")+".")
	}

	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsAnyWord(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
