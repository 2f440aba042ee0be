package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ClientConfig holds configuration for the terminal voice assistant. It only
// needs the speech credentials; completions go through the server.
type ClientConfig struct {
	ServerURL string `envconfig:"ASSISTANT_SERVER_URL" default:"ws://localhost:8081/ws"`

	AzureSpeechKey    string `envconfig:"AZURE_SPEECH_KEY" required:"true"`
	AzureSpeechRegion string `envconfig:"AZURE_SPEECH_REGION" default:"eastus"`
	AzureSpeechVoice  string `envconfig:"AZURE_SPEECH_VOICE" default:"en-US-JennyNeural"`

	IntentDebounceMs int `envconfig:"INTENT_DEBOUNCE_MS" default:"1000"`

	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"`
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"true"`
}

// LoadClient reads the assistant configuration, loading .env first if present.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.IntentDebounceMs < 0 {
		return nil, fmt.Errorf("INTENT_DEBOUNCE_MS must not be negative")
	}
	return &cfg, nil
}
