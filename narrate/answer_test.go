package narrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Karthik-Ragunath/lock-in/model"
)

func sampleContext() model.QuestionContext {
	current := 4
	return model.QuestionContext{
		SessionID:   "s1",
		CurrentStep: &current,
		TotalSteps:  4,
		RecentSteps: []model.StepSummary{
			{StepNumber: 3, Description: "wiring the router", Type: model.ThinkingImplementing},
			{StepNumber: 4, Description: "adding middleware", Type: model.ThinkingImplementing},
		},
		FilesInvolved: []string{"router.go", "middleware.go"},
	}
}

func TestBuildAnswerMentionsCurrentStep(t *testing.T) {
	answer := BuildAnswer("what are you doing?", sampleContext())
	if !strings.Contains(answer, "step 4") {
		t.Errorf("answer should mention current step: %q", answer)
	}
	if !strings.Contains(answer, "adding middleware") {
		t.Errorf("answer should mention latest step description: %q", answer)
	}
}

func TestBuildAnswerWhyBranch(t *testing.T) {
	answer := BuildAnswer("why are you doing that?", sampleContext())
	if !strings.Contains(answer, "Here's what I've been doing") {
		t.Errorf("why question should include recent step recap: %q", answer)
	}
}

func TestBuildAnswerWhichFileBranch(t *testing.T) {
	answer := BuildAnswer("which file is that in?", sampleContext())
	if !strings.Contains(answer, "router.go") {
		t.Errorf("file question should list files: %q", answer)
	}
}

func TestBuildAnswerHowLongBranch(t *testing.T) {
	answer := BuildAnswer("how long will this take?", sampleContext())
	if !strings.Contains(answer, "step 4 out of 4") {
		t.Errorf("timing question should report progress: %q", answer)
	}
}

func TestBuildAnswerIncludesCallerContext(t *testing.T) {
	qctx := sampleContext()
	qctx.Extra = map[string]any{
		"current_task": "migrating the schema",
		"branch":       "feature/locks",
	}

	answer := BuildAnswer("what are you doing?", qctx)
	if !strings.Contains(answer, "migrating the schema") {
		t.Errorf("answer should surface caller context values: %q", answer)
	}
	if !strings.Contains(answer, "feature/locks") {
		t.Errorf("answer should surface every caller context entry: %q", answer)
	}
}

func TestAnswerPromptListsCallerContext(t *testing.T) {
	qctx := sampleContext()
	qctx.Extra = map[string]any{"current_task": "migrating the schema"}

	prompt := answerPrompt("what now?", qctx)
	if !strings.Contains(prompt, "current_task: migrating the schema") {
		t.Errorf("prompt should list caller context entries: %q", prompt)
	}
}

func TestBuildAnswerEmptyContext(t *testing.T) {
	answer := BuildAnswer("hello?", model.QuestionContext{})
	if answer == "" {
		t.Error("answer must never be empty")
	}
}

func TestAnswerQuestionPrefersCompleter(t *testing.T) {
	completer := &stubCompleter{response: "I'm wiring up the middleware right now."}
	g := NewGenerator(completer, nil)

	answer := g.AnswerQuestion(context.Background(), "what's happening?", sampleContext())
	if answer != "I'm wiring up the middleware right now." {
		t.Errorf("answer = %q, want completer output", answer)
	}
}

func TestAnswerQuestionFallsBackOnError(t *testing.T) {
	completer := &stubCompleter{err: errors.New("unavailable")}
	g := NewGenerator(completer, nil)

	answer := g.AnswerQuestion(context.Background(), "what's happening?", sampleContext())
	if answer == "" {
		t.Fatal("fallback answer must be non-empty")
	}
	if !strings.Contains(answer, "step 4") {
		t.Errorf("fallback should be the template answer: %q", answer)
	}
}
