// Package config handles loading and validating the carvoice configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nadzzz/carvoice/internal/room"
	"github.com/nadzzz/carvoice/internal/voice"
)

// Config is the root configuration for the carvoice daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Room       RoomConfig       `mapstructure:"room"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Search     SearchConfig     `mapstructure:"search"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	NATS NATSConfig `mapstructure:"nats"`
}

// GRPCConfig configures the gRPC health transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP job intake transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NATSConfig configures the bridge to the media worker.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	JobSubject    string        `mapstructure:"job_subject"` // empty disables job intake over NATS
	StartTimeout  time.Duration `mapstructure:"start_timeout"`
	MaxReconnect  int           `mapstructure:"max_reconnect"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RoomConfig holds the real-time room server credentials.
type RoomConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// AgentConfig identifies this worker for dispatch matching.
type AgentConfig struct {
	Name string `mapstructure:"name"`
}

// SearchConfig holds Perplexity settings for the web_search tool.
type SearchConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TTSConfig holds credentials for direct speech-synthesis providers.
// An empty key routes that provider through the inference gateway.
type TTSConfig struct {
	CartesiaAPIKey   string `mapstructure:"cartesia_api_key"`
	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key"`
}

// TranscriptConfig points at the remote transcript store.
type TranscriptConfig struct {
	BackendURL string        `mapstructure:"backend_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// legacyEnv maps config keys to the unprefixed variables used by existing deployments.
var legacyEnv = map[string]string{
	"room.url":               "LIVEKIT_URL",
	"room.api_key":           "LIVEKIT_API_KEY",
	"room.api_secret":        "LIVEKIT_API_SECRET",
	"agent.name":             "AGENT_NAME",
	"search.api_key":         "PERPLEXITY_API_KEY",
	"tts.cartesia_api_key":   "CARTESIA_API_KEY",
	"tts.elevenlabs_api_key": "ELEVEN_API_KEY",
	"transcript.backend_url": "BACKEND_URL",
	"transports.nats.url":    "NATS_URL",
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./carvoice.yaml, ./configs/carvoice.yaml, /etc/carvoice/carvoice.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.nats.url", "nats://localhost:4222")
	v.SetDefault("transports.nats.subject_prefix", "carvoice.sessions")
	v.SetDefault("transports.nats.job_subject", "carvoice.jobs")
	v.SetDefault("transports.nats.start_timeout", 10*time.Second)
	v.SetDefault("transports.nats.max_reconnect", -1)
	v.SetDefault("transports.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("room.url", "")
	v.SetDefault("room.api_key", "")
	v.SetDefault("room.api_secret", "")
	v.SetDefault("agent.name", "carvoice-agent")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.base_url", "https://api.perplexity.ai")
	v.SetDefault("search.model", "sonar")
	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("tts.cartesia_api_key", "")
	v.SetDefault("tts.elevenlabs_api_key", "")
	v.SetDefault("transcript.backend_url", "http://localhost:8000")
	v.SetDefault("transcript.timeout", 5*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("carvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/carvoice")
	}

	// Environment variables: CARVOICE_ROOM_API_KEY, CARVOICE_SEARCH_TIMEOUT, etc.
	v.SetEnvPrefix("CARVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		envKey := "CARVOICE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, env); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${CARTESIA_API_KEY}")
	cfg.Room.APIKey = resolveEnvRef(cfg.Room.APIKey)
	cfg.Room.APISecret = resolveEnvRef(cfg.Room.APISecret)
	cfg.Search.APIKey = resolveEnvRef(cfg.Search.APIKey)
	cfg.TTS.CartesiaAPIKey = resolveEnvRef(cfg.TTS.CartesiaAPIKey)
	cfg.TTS.ElevenLabsAPIKey = resolveEnvRef(cfg.TTS.ElevenLabsAPIKey)
	cfg.Transcript.BackendURL = strings.TrimRight(cfg.Transcript.BackendURL, "/")

	return &cfg, nil
}

// Validate reports configuration that prevents the daemon from starting.
// Missing search or synthesis credentials are not errors; those features degrade.
func (c *Config) Validate() error {
	if c.Room.URL == "" || c.Room.APIKey == "" || c.Room.APISecret == "" {
		return fmt.Errorf("room url, api key and api secret are required: %w", room.ErrMissingCredentials)
	}
	if c.Transports.NATS.URL == "" {
		return fmt.Errorf("transports.nats.url is required to reach the media worker")
	}
	return nil
}

// RoomCredentials returns the credentials used to mint agent join tokens.
func (c *Config) RoomCredentials() room.Credentials {
	return room.Credentials{
		URL:       c.Room.URL,
		APIKey:    c.Room.APIKey,
		APISecret: c.Room.APISecret,
	}
}

// VoiceCredentials returns the direct synthesis provider credentials.
func (c *Config) VoiceCredentials() voice.Credentials {
	return voice.Credentials{
		Cartesia:   c.TTS.CartesiaAPIKey,
		ElevenLabs: c.TTS.ElevenLabsAPIKey,
	}
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
