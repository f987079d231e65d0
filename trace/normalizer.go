// Package trace converts raw agent trace output into reasoning steps.
//
// Two input shapes are supported: structured JSON event records and plain
// text lines. Structured records are classified through a fixed event-type
// table; plain text is classified by keyword scan. Inputs that carry no
// usable signal (unknown structured types, comments, blank lines) are
// dropped without consuming a step number.
package trace

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const (
	maxDetailLen      = 100
	maxPlainDescLen   = 200
	fallbackFileLabel = "the codebase"
)

// eventTypeMap maps trace event types to thinking types.
var eventTypeMap = map[string]model.ThinkingType{
	"tool_call":       model.ThinkingImplementing,
	"file_read":       model.ThinkingAnalyzing,
	"file_write":      model.ThinkingImplementing,
	"file_edit":       model.ThinkingImplementing,
	"search":          model.ThinkingAnalyzing,
	"plan":            model.ThinkingPlanning,
	"think":           model.ThinkingPlanning,
	"debug":           model.ThinkingDebugging,
	"test":            model.ThinkingTesting,
	"error":           model.ThinkingDebugging,
	"lint":            model.ThinkingTesting,
	"terminal":        model.ThinkingImplementing,
	"grep":            model.ThinkingAnalyzing,
	"codebase_search": model.ThinkingAnalyzing,
}

// eventDescriptions holds per-type description templates. {details} and
// {file} are substituted from the event.
var eventDescriptions = map[string]string{
	"tool_call":       "Using a tool to {details}",
	"file_read":       "Reading file {file}",
	"file_write":      "Creating file {file}",
	"file_edit":       "Editing file {file}",
	"search":          "Searching for {details}",
	"plan":            "Planning: {details}",
	"think":           "Thinking about {details}",
	"debug":           "Debugging: {details}",
	"test":            "Running tests: {details}",
	"error":           "Encountered an error: {details}",
	"lint":            "Checking code quality in {file}",
	"terminal":        "Running command: {details}",
	"grep":            "Searching codebase for {details}",
	"codebase_search": "Searching codebase: {details}",
}

const defaultDescription = "Working on: {details}"

// fileFieldNames are the event fields checked for file paths.
var fileFieldNames = []string{"file", "path", "filepath", "target_file", "file_path"}

// descriptionFieldNames are checked in order for an explicit description.
var descriptionFieldNames = []string{"description", "message", "summary", "text", "content"}

// keywordRules classify plain-text lines by first match, in priority order.
var keywordRules = []struct {
	thinkingType model.ThinkingType
	keywords     []string
}{
	{model.ThinkingPlanning, []string{"plan", "thinking", "approach", "strategy"}},
	{model.ThinkingAnalyzing, []string{"read", "check", "look", "search", "find", "analyz"}},
	{model.ThinkingImplementing, []string{"writ", "creat", "implement", "add", "edit", "modify"}},
	{model.ThinkingDebugging, []string{"debug", "fix", "error", "bug", "issue"}},
	{model.ThinkingTesting, []string{"test", "verify", "assert"}},
}

// Normalizer turns heterogeneous trace input into reasoning steps. Each
// instance owns a private step counter; a fresh instance starts at zero.
// The counter is independent of any step numbering supplied by external
// callers of the step API.
type Normalizer struct {
	counter int
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer with its counter at zero.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// StepCount reports how many steps this normalizer has emitted.
func (n *Normalizer) StepCount() int {
	return n.counter
}

// ParseLine parses one line of trace output. JSON objects go through the
// structured path; anything else is treated as plain text. Returns false
// when the line carries no step.
func (n *Normalizer) ParseLine(line string) (model.ReasoningStep, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.ReasoningStep{}, false
	}

	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err == nil {
		return n.ParseEvent(event)
	}
	return n.parsePlainText(line)
}

// ParseEvent converts a structured trace event into a reasoning step.
// Events without a classifiable type are dropped.
func (n *Normalizer) ParseEvent(event map[string]any) (model.ReasoningStep, bool) {
	eventType := stringField(event, "type", "event", "action")
	if eventType == "" {
		return model.ReasoningStep{}, false
	}
	eventType = strings.ToLower(eventType)

	thinkingType, ok := eventTypeMap[eventType]
	if !ok {
		thinkingType = model.ThinkingAnalyzing
	}

	files := extractFiles(event, true)
	description := buildDescription(eventType, event, files)
	duration := numberField(event, "duration", "estimated_duration")

	n.counter++
	step := model.ReasoningStep{
		StepNumber:        n.counter,
		Description:       description,
		ThinkingType:      thinkingType,
		EstimatedDuration: duration,
		FilesInvolved:     files,
		Timestamp:         time.Now(),
	}
	n.logger.Debug("parsed trace event",
		"step", step.StepNumber,
		"thinking_type", step.ThinkingType,
		"description", clip(description, 60))
	return step, true
}

// parsePlainText handles non-JSON trace lines. Comment lines are dropped.
func (n *Normalizer) parsePlainText(text string) (model.ReasoningStep, bool) {
	if text == "" || strings.HasPrefix(text, "#") {
		return model.ReasoningStep{}, false
	}

	lower := strings.ToLower(text)
	thinkingType := model.ThinkingAnalyzing
	for _, rule := range keywordRules {
		if containsAny(lower, rule.keywords) {
			thinkingType = rule.thinkingType
			break
		}
	}

	n.counter++
	return model.ReasoningStep{
		StepNumber:   n.counter,
		Description:  clip(text, maxPlainDescLen),
		ThinkingType: thinkingType,
		Timestamp:    time.Now(),
	}, true
}

// extractFiles harvests file paths from the fixed candidate fields, plus
// one nested level of args/parameters/params. Result is set-deduplicated;
// order is not guaranteed.
func extractFiles(event map[string]any, descend bool) []string {
	seen := make(map[string]struct{})

	collect := func(v any) {
		switch val := v.(type) {
		case string:
			seen[val] = struct{}{}
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					seen[s] = struct{}{}
				}
			}
		}
	}

	for _, key := range fileFieldNames {
		if v, ok := event[key]; ok {
			collect(v)
		}
	}
	if v, ok := event["files_involved"]; ok {
		collect(v)
	}

	if descend {
		for _, key := range []string{"args", "parameters", "params"} {
			if nested, ok := event[key].(map[string]any); ok {
				for _, f := range extractFiles(nested, false) {
					seen[f] = struct{}{}
				}
			}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	return files
}

func buildDescription(eventType string, event map[string]any, files []string) string {
	for _, key := range descriptionFieldNames {
		if s, ok := event[key].(string); ok {
			return s
		}
	}

	template, ok := eventDescriptions[eventType]
	if !ok {
		template = defaultDescription
	}

	details := detailsField(event, eventType)
	file := fallbackFileLabel
	if len(files) > 0 {
		file = files[0]
	}

	out := strings.ReplaceAll(template, "{details}", details)
	out = strings.ReplaceAll(out, "{file}", file)
	return out
}

func detailsField(event map[string]any, eventType string) string {
	var raw any = eventType
	for _, key := range []string{"details", "query", "command"} {
		if v, ok := event[key]; ok {
			raw = v
			break
		}
	}

	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		compact, err := json.Marshal(v)
		if err != nil {
			return clip(eventType, maxDetailLen)
		}
		return clip(string(compact), maxDetailLen)
	case float64:
		return clip(strconv.FormatFloat(v, 'f', -1, 64), maxDetailLen)
	case bool:
		return strconv.FormatBool(v)
	default:
		compact, err := json.Marshal(v)
		if err != nil {
			return clip(eventType, maxDetailLen)
		}
		return clip(string(compact), maxDetailLen)
	}
}

func stringField(event map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := event[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func numberField(event map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := event[key].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
