// LLM Provider factory - creates providers by name with API keys from the
// environment.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// providerInfo holds per-provider defaults and environment lookups.
type providerInfo struct {
	apiKeyEnv    string
	modelEnv     string
	defaultModel string
	construct    func(apiKey, model string, maxTokens uint32, temperature float32) Provider
}

var providers = map[string]providerInfo{
	"anthropic": {"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "claude-sonnet-4-20250514",
		func(k, m string, t uint32, temp float32) Provider { return NewAnthropicProvider(k, m, t, temp) }},
	"openai": {"OPENAI_API_KEY", "OPENAI_MODEL", "gpt-4o",
		func(k, m string, t uint32, temp float32) Provider { return NewOpenAIProvider(k, m, t, temp) }},
	"deepseek": {"DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", "deepseek-chat",
		func(k, m string, t uint32, temp float32) Provider { return NewDeepSeekProvider(k, m, t, temp) }},
	"gemini": {"GEMINI_API_KEY", "GEMINI_MODEL", "gemini-2.5-flash",
		func(k, m string, t uint32, temp float32) Provider { return NewGeminiProvider(k, m, t, temp) }},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// NewProvider creates a provider by name, reading the API key (and the
// model, unless one is given) from the environment.
func NewProvider(name, model string, maxTokens uint32, temperature float32) (Provider, error) {
	canonical := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := providerAliases[canonical]; ok {
		canonical = alias
	}

	info, ok := providers[canonical]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: anthropic, openai, deepseek, gemini)", name)
	}

	apiKey := os.Getenv(info.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set for provider %q", info.apiKeyEnv, canonical)
	}

	if model == "" {
		model = os.Getenv(info.modelEnv)
	}
	if model == "" {
		model = info.defaultModel
	}

	return info.construct(apiKey, model, maxTokens, temperature), nil
}
