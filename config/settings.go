// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig
	Bridge    BridgeConfig
	Server    ServerConfig
	Narration NarrationConfig
	Archive   ArchiveConfig
}

// LLMConfig holds configuration for the optional external text generator.
// An empty Provider disables the LLM tier entirely; narration then uses
// templates only.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// BridgeConfig holds the channel settings between the reasoning side and
// the speech side.
type BridgeConfig struct {
	VoiceWSURL          string
	DialTimeout         time.Duration
	SendTimeout         time.Duration
	QuestionResumeDelay time.Duration
	DeliveryPoll        time.Duration
}

// ServerConfig holds the tool surface HTTP settings.
type ServerConfig struct {
	Port int
}

// NarrationConfig bounds generated speech text.
type NarrationConfig struct {
	MaxLength int
}

// ArchiveConfig controls the optional SQLite transcript archive. An empty
// Path disables archiving.
type ArchiveConfig struct {
	Path string
}

// New loads settings from environment variables, applying defaults.
// Returns an error if any variable holds an unparseable value.
func New() (Settings, error) {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 100)
	if err != nil {
		return Settings{}, err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.8)
	if err != nil {
		return Settings{}, err
	}
	dialTimeout, err := getEnvMillis("BRIDGE_DIAL_TIMEOUT_MS", 3000)
	if err != nil {
		return Settings{}, err
	}
	sendTimeout, err := getEnvMillis("BRIDGE_SEND_TIMEOUT_MS", 2000)
	if err != nil {
		return Settings{}, err
	}
	resumeDelay, err := getEnvMillis("QUESTION_RESUME_DELAY_MS", 2000)
	if err != nil {
		return Settings{}, err
	}
	deliveryPoll, err := getEnvMillis("DELIVERY_POLL_MS", 500)
	if err != nil {
		return Settings{}, err
	}
	maxLen, err := getEnvInt("NARRATION_MAX_LENGTH", 250)
	if err != nil {
		return Settings{}, err
	}
	port, err := serverPort()
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    os.Getenv("LLM_PROVIDER"),
			Model:       os.Getenv("LLM_MODEL"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Bridge: BridgeConfig{
			VoiceWSURL:          getEnvString("VOICE_WS_URL", "ws://localhost:8766/ws"),
			DialTimeout:         dialTimeout,
			SendTimeout:         sendTimeout,
			QuestionResumeDelay: resumeDelay,
			DeliveryPoll:        deliveryPoll,
		},
		Server:    ServerConfig{Port: port},
		Narration: NarrationConfig{MaxLength: maxLen},
		Archive:   ArchiveConfig{Path: os.Getenv("ARCHIVE_DB_PATH")},
	}, nil
}

// MustNew loads settings, panicking on invalid environment values.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// serverPort resolves the HTTP port: PORT (standard cloud env var) wins
// over SERVER_PORT, defaulting to 8000.
func serverPort() (int, error) {
	if val := os.Getenv("PORT"); val != "" {
		p, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid value for PORT: %q: %w", val, err)
		}
		return p, nil
	}
	return getEnvInt("SERVER_PORT", 8000)
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvMillis(key string, defaultMillis int) (time.Duration, error) {
	ms, err := getEnvInt(key, defaultMillis)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
