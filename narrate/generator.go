// Package narrate turns reasoning steps into spoken text.
//
// Generation is two-tier: when an external completion collaborator is
// configured it is tried first, and any failure silently degrades to a
// deterministic template tier that needs no network access. Callers always
// receive non-empty text and never see an error.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Karthik-Ragunath/lock-in/model"
)

// MaxNarrationLen is the default hard upper bound on spoken text.
// Downstream speech synthesis must never be handed unbounded input.
const MaxNarrationLen = 250

const promptHistoryWindow = 3

// narrationSystemPrompt defines the speaking style for the LLM tier.
const narrationSystemPrompt = `You are a friendly, conversational pair programmer narrating your thought process
while writing code. You speak naturally, like a helpful coworker explaining what they're doing.

Rules:
- Keep narrations SHORT (1-2 sentences, under 150 characters when possible)
- Use conversational tone with occasional filler words ("hmm", "okay", "let me see")
- Vary your phrasing - don't repeat the same patterns
- Reference specific file names and concepts when available
- NEVER use markdown, code blocks, or formatting - this will be spoken aloud
- NEVER say "I'm an AI" or break character
- Sound natural, not robotic`

// introPhrases holds the fixed rotation tables, five phrases per thinking type.
var introPhrases = map[model.ThinkingType][]string{
	model.ThinkingPlanning: {
		"Alright, let me think about this...",
		"Okay, so here's my plan...",
		"Let me figure out the best approach...",
		"Thinking about how to structure this...",
		"So the strategy here is...",
	},
	model.ThinkingAnalyzing: {
		"Let me take a look at...",
		"I'm checking out...",
		"Looking at the existing code in...",
		"Let me examine...",
		"Hmm, let me see what's in...",
	},
	model.ThinkingImplementing: {
		"Now I'm writing...",
		"Okay, creating...",
		"Time to implement...",
		"Now for the actual code...",
		"Building out...",
	},
	model.ThinkingDebugging: {
		"Hmm, I see an issue...",
		"Wait, something's not right...",
		"Let me investigate this...",
		"I noticed a problem with...",
		"Okay, need to fix...",
	},
	model.ThinkingTesting: {
		"Let me verify this works...",
		"Running a quick check...",
		"Time to test...",
		"Making sure everything's solid...",
		"Checking the results...",
	},
}

// Completer is the capability contract for the optional external text
// generator. The generator depends only on this interface, never on a
// concrete client.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Generator produces narration text for reasoning steps. The narration
// counter is instance-owned state: a fresh generator starts its phrase
// rotation from the beginning.
type Generator struct {
	completer Completer
	counter   int
	maxLen    int
	logger    *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMaxLength overrides the spoken-text length bound. Values below the
// ellipsis width are ignored.
func WithMaxLength(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 3 {
			g.maxLen = n
		}
	}
}

// NewGenerator creates a generator. completer may be nil, in which case
// only the template tier is used.
func NewGenerator(completer Completer, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	mode := "template-based"
	if completer != nil {
		mode = "LLM-powered"
	}
	logger.Info("narration generator initialized", "mode", mode)
	g := &Generator{completer: completer, maxLen: MaxNarrationLen, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Count reports how many narrations have been generated.
func (g *Generator) Count() int {
	return g.counter
}

// Generate produces spoken text for a step. It never fails: external
// generation errors degrade silently to the template tier. The counter is
// incremented exactly once per call on both tiers so phrase rotation stays
// synchronized.
func (g *Generator) Generate(ctx context.Context, step model.ReasoningStep, previous []model.ReasoningStep) string {
	g.counter++

	if g.completer != nil {
		narration, err := g.completeNarration(ctx, step, previous)
		if err == nil && narration != "" {
			g.logger.Debug("llm narration", "step", step.StepNumber, "text", head(narration, 60))
			return g.truncateSpoken(narration)
		}
		g.logger.Warn("llm narration failed, falling back to template",
			"step", step.StepNumber, "error", err)
	}

	narration := g.templateNarration(step)
	g.logger.Debug("template narration", "step", step.StepNumber, "text", head(narration, 60))
	return narration
}

func (g *Generator) completeNarration(ctx context.Context, step model.ReasoningStep, previous []model.ReasoningStep) (string, error) {
	prompt := narrationPrompt(step, previous)
	out, err := g.completer.Complete(ctx, narrationSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	out = strings.Trim(strings.TrimSpace(out), `"'`)
	return out, nil
}

// narrationPrompt builds the bounded prompt for the LLM tier: current step
// fields plus the last few previous steps.
func narrationPrompt(step model.ReasoningStep, previous []model.ReasoningStep) string {
	var context strings.Builder
	if len(previous) > 0 {
		if len(previous) > promptHistoryWindow {
			previous = previous[len(previous)-promptHistoryWindow:]
		}
		context.WriteString("Recent steps:\n")
		for _, ps := range previous {
			fmt.Fprintf(&context, "  - Step %d (%s): %s\n", ps.StepNumber, ps.ThinkingType, ps.Description)
		}
	} else {
		context.WriteString("This is the first step.")
	}

	files := "no specific files"
	if len(step.FilesInvolved) > 0 {
		files = strings.Join(step.FilesInvolved, ", ")
	}

	return fmt.Sprintf(`Generate a short, natural narration for this coding step.
Speak as if you're a pair programmer explaining what you're doing RIGHT NOW.

Current step:
- Step %d: %s
- Type: %s
- Files: %s

%s

Narrate this step in 1-2 casual sentences (spoken aloud, no formatting):`,
		step.StepNumber, step.Description, step.ThinkingType, files, context.String())
}

// templateNarration composes deterministic narration from the rotation
// tables and type-specific file references.
func (g *Generator) templateNarration(step model.ReasoningStep) string {
	intros, ok := introPhrases[step.ThinkingType]
	if !ok {
		intros = introPhrases[model.ThinkingAnalyzing]
	}
	intro := intros[g.counter%len(intros)]

	files := step.FilesInvolved
	var narration string
	switch step.ThinkingType {
	case model.ThinkingPlanning:
		if len(files) > 0 {
			mention := files
			if len(mention) > 2 {
				mention = mention[:2]
			}
			narration = fmt.Sprintf("%s We'll need to work with %s. %s", intro, strings.Join(mention, ", "), step.Description)
		} else {
			narration = fmt.Sprintf("%s %s", intro, step.Description)
		}
	case model.ThinkingAnalyzing, model.ThinkingImplementing:
		if len(files) > 0 {
			narration = fmt.Sprintf("%s %s. %s", intro, files[0], step.Description)
		} else {
			narration = fmt.Sprintf("%s %s", intro, step.Description)
		}
	default:
		// debugging and testing narrations ignore files
		narration = fmt.Sprintf("%s %s", intro, step.Description)
	}

	return g.truncateSpoken(narration)
}

// truncateSpoken enforces the hard length bound for spoken text.
func (g *Generator) truncateSpoken(s string) string {
	runes := []rune(s)
	if len(runes) <= g.maxLen {
		return s
	}
	return string(runes[:g.maxLen-3]) + "..."
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
