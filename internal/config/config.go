package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the voice training server and the
// terminal assistant client.
type Config struct {
	// Server configuration
	Port          string `envconfig:"PORT" default:"8081"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://localhost:3000"` // Browser UI origin for CORS and websocket checks

	// Persistence
	DBPath string `envconfig:"DB_PATH" default:"voicetovoice.sqlite"`

	// Video catalog (YAML file mapping public names to files on disk)
	VideoCatalogPath string `envconfig:"VIDEO_CATALOG_PATH" default:"videos.yaml"`

	// Azure OpenAI completion provider
	AzureOpenAIEndpoint   string `envconfig:"AZURE_OPENAI_ENDPOINT" default:"https://azure-openai-voicetest-01.openai.azure.com/"`
	AzureOpenAIKey        string `envconfig:"AZURE_OPENAI_API_KEY" required:"true"`
	AzureOpenAIAPIVersion string `envconfig:"AZURE_OPENAI_API_VERSION" default:"2024-05-01-preview"`
	AzureOpenAIDeployment string `envconfig:"AZURE_OPENAI_DEPLOYMENT" default:"gpt-4-deployment-01"`
	AssessmentModel       string `envconfig:"ASSESSMENT_MODEL" default:"gpt-4o-mini"` // Model used by grammar/relevance/SWOT stages

	// Azure Speech text-to-speech
	AzureSpeechKey    string `envconfig:"AZURE_SPEECH_KEY" default:""`
	AzureSpeechRegion string `envconfig:"AZURE_SPEECH_REGION" default:"eastus"`
	AzureSpeechVoice  string `envconfig:"AZURE_SPEECH_VOICE" default:"en-US-JennyNeural"`

	// Deepgram streaming speech-to-text
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en-US"`

	// AWS Comprehend sentiment provider
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Scoring
	CSIDivisor float64 `envconfig:"CSI_DIVISOR" default:"4"` // Satisfaction index divisor, see assessment.SatisfactionIndex

	// Voice assistant
	IntentDebounceMs int `envconfig:"INTENT_DEBOUNCE_MS" default:"1000"` // Window during which repeated intents are ignored; 0 disables it

	// Audio processing configuration
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"64000"`    // Pre-roll ring buffer size in bytes (2s of 16kHz PCM16)
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"10"`      // Frames of silence to mark speech end

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that envconfig cannot express.
func (c *Config) Validate() error {
	if c.AzureOpenAIKey == "" {
		return fmt.Errorf("AZURE_OPENAI_API_KEY is required")
	}
	if c.CSIDivisor == 0 {
		return fmt.Errorf("CSI_DIVISOR must be non-zero")
	}
	if c.IntentDebounceMs < 0 {
		return fmt.Errorf("INTENT_DEBOUNCE_MS must not be negative")
	}
	return nil
}

// SpeechEnabled reports whether text-to-speech credentials are configured.
func (c *Config) SpeechEnabled() bool {
	return c.AzureSpeechKey != ""
}

// TranscriptionEnabled reports whether streaming transcription is configured.
func (c *Config) TranscriptionEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// VideoCatalog maps public video names to file paths on disk.
type VideoCatalog struct {
	Videos map[string]string `yaml:"videos"`
}

// DefaultVideoCatalog is used when no catalog file exists.
func DefaultVideoCatalog() *VideoCatalog {
	return &VideoCatalog{Videos: map[string]string{
		"cdn": "videos/cdn.mp4",
	}}
}

// LoadVideoCatalog reads the YAML catalog at path. A missing file yields the
// default catalog.
func LoadVideoCatalog(path string) (*VideoCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultVideoCatalog(), nil
		}
		return nil, fmt.Errorf("read video catalog: %w", err)
	}

	var catalog VideoCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse video catalog: %w", err)
	}
	if catalog.Videos == nil {
		catalog.Videos = map[string]string{}
	}
	return &catalog, nil
}

// Lookup returns the file path registered for name.
func (v *VideoCatalog) Lookup(name string) (string, bool) {
	path, ok := v.Videos[name]
	return path, ok
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
