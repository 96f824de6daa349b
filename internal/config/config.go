package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel             = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultSystemInstruction = "You are J.A.R.V.I.S. Control this interface. Be concise."
	DefaultWebsocketURL      = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	TransportSDK       = "sdk"
	TransportWebsocket = "websocket"
)

// Config stores runtime configuration for the live session.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Audio   AudioConfig   `yaml:"audio"`
	Rules   RulesConfig   `yaml:"rules"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type GeminiConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	Transport         string `yaml:"transport"`
	WebsocketURL      string `yaml:"websocket_url"`
	SystemInstruction string `yaml:"system_instruction"`
	EnableSearch      bool   `yaml:"enable_search"`
}

type AudioConfig struct {
	RecorderCommand  string `yaml:"recorder_command"`
	InputFormat      string `yaml:"input_format"`
	InputDevice      string `yaml:"input_device"`
	InputSampleRate  int    `yaml:"input_sample_rate"`
	ChunkSamples     int    `yaml:"chunk_samples"`
	PlayerCommand    string `yaml:"player_command"`
	PlayerVolume     int    `yaml:"player_volume"`
	OutputSampleRate int    `yaml:"output_sample_rate"`
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type SessionConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	DiagnosticsFull  time.Duration `yaml:"diagnostics_full"`
	DiagnosticsQuick time.Duration `yaml:"diagnostics_quick"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Default returns the configuration used when nothing is overridden.
func Default(home string) Config {
	return Config{
		Gemini: GeminiConfig{
			Model:             DefaultModel,
			Transport:         TransportSDK,
			WebsocketURL:      DefaultWebsocketURL,
			SystemInstruction: DefaultSystemInstruction,
			EnableSearch:      true,
		},
		Audio: AudioConfig{
			RecorderCommand:  "ffmpeg",
			InputFormat:      "pulse",
			InputDevice:      "default",
			InputSampleRate:  16000,
			ChunkSamples:     4096,
			PlayerCommand:    "ffplay",
			PlayerVolume:     80,
			OutputSampleRate: 24000,
		},
		Rules: RulesConfig{
			Path:           filepath.Join(home, ".config", "jarvis", "transcript-rules.yaml"),
			IterationLimit: 30,
		},
		Session: SessionConfig{
			HandshakeTimeout: 10 * time.Second,
			DiagnosticsFull:  5 * time.Second,
			DiagnosticsQuick: 2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load resolves configuration from defaults, an optional YAML file, a .env
// file in the working directory and environment variables, in increasing
// priority.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	// A missing .env is normal; real environment variables are never overwritten.
	_ = godotenv.Load()

	cfg := Default(home)

	path := strings.TrimSpace(os.Getenv("JARVIS_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(home, ".config", "jarvis", "config.yaml")
	}
	if err := loadFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Gemini.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY"), cfg.Gemini.APIKey)
	cfg.Gemini.Model = envOrDefault("JARVIS_MODEL", cfg.Gemini.Model)
	cfg.Gemini.Transport = strings.ToLower(envOrDefault("JARVIS_TRANSPORT", cfg.Gemini.Transport))
	cfg.Gemini.WebsocketURL = envOrDefault("JARVIS_WEBSOCKET_URL", cfg.Gemini.WebsocketURL)
	cfg.Gemini.SystemInstruction = envOrDefault("JARVIS_SYSTEM_INSTRUCTION", cfg.Gemini.SystemInstruction)
	cfg.Gemini.EnableSearch = envOrDefaultBool("JARVIS_ENABLE_SEARCH", cfg.Gemini.EnableSearch)

	cfg.Audio.RecorderCommand = envOrDefault("JARVIS_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("JARVIS_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("JARVIS_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.ChunkSamples = envOrDefaultInt("JARVIS_AUDIO_CHUNK_SAMPLES", cfg.Audio.ChunkSamples)
	cfg.Audio.PlayerCommand = envOrDefault("JARVIS_FFPLAY_COMMAND", cfg.Audio.PlayerCommand)
	cfg.Audio.PlayerVolume = envOrDefaultInt("JARVIS_PLAYER_VOLUME", cfg.Audio.PlayerVolume)

	cfg.Rules.Path = envOrDefault("JARVIS_RULES_FILE", cfg.Rules.Path)
	cfg.Rules.IterationLimit = envOrDefaultInt("JARVIS_RULE_ITERATION_LIMIT", cfg.Rules.IterationLimit)

	cfg.Session.HandshakeTimeout = envOrDefaultMillis("JARVIS_HANDSHAKE_TIMEOUT_MS", cfg.Session.HandshakeTimeout)

	cfg.Logging.Level = envOrDefault("JARVIS_LOG_LEVEL", cfg.Logging.Level)
	cfg.Metrics.Address = envOrDefault("JARVIS_METRICS_ADDR", cfg.Metrics.Address)
}

// Validate checks values that cannot be repaired with a default.
func (c *Config) Validate() error {
	switch c.Gemini.Transport {
	case TransportSDK, TransportWebsocket:
	default:
		return fmt.Errorf("gemini transport must be %q or %q, got %q", TransportSDK, TransportWebsocket, c.Gemini.Transport)
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini model cannot be empty")
	}
	if c.Gemini.Transport == TransportWebsocket && !strings.HasPrefix(c.Gemini.WebsocketURL, "ws") {
		return fmt.Errorf("websocket url must use ws:// or wss://, got %q", c.Gemini.WebsocketURL)
	}
	if c.Audio.InputSampleRate <= 0 {
		c.Audio.InputSampleRate = 16000
	}
	if c.Audio.OutputSampleRate <= 0 {
		c.Audio.OutputSampleRate = 24000
	}
	if c.Audio.ChunkSamples < 256 {
		c.Audio.ChunkSamples = 4096
	}
	if c.Rules.IterationLimit <= 0 {
		c.Rules.IterationLimit = 30
	}
	if c.Session.HandshakeTimeout <= 0 {
		c.Session.HandshakeTimeout = 10 * time.Second
	}
	if c.Session.DiagnosticsFull <= 0 {
		c.Session.DiagnosticsFull = 5 * time.Second
	}
	if c.Session.DiagnosticsQuick <= 0 {
		c.Session.DiagnosticsQuick = 2 * time.Second
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
