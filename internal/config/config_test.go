package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nadzzz/carvoice/internal/room"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HealthPort != 8081 || cfg.Transports.HTTP.Port != 8080 || cfg.Transports.GRPC.Port != 50051 {
		t.Errorf("ports = %d/%d/%d", cfg.Server.HealthPort, cfg.Transports.HTTP.Port, cfg.Transports.GRPC.Port)
	}
	nc := cfg.Transports.NATS
	if nc.SubjectPrefix != "carvoice.sessions" || nc.JobSubject != "carvoice.jobs" || nc.StartTimeout != 10*time.Second {
		t.Errorf("nats = %+v", nc)
	}
	if cfg.Search.Model != "sonar" || cfg.Search.Timeout != 10*time.Second || cfg.Search.BaseURL != "https://api.perplexity.ai" {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Transcript.Timeout != 5*time.Second {
		t.Errorf("transcript timeout = %v", cfg.Transcript.Timeout)
	}
	if cfg.Agent.Name != "carvoice-agent" {
		t.Errorf("agent name = %q", cfg.Agent.Name)
	}
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "wss://rooms.example.com")
	t.Setenv("LIVEKIT_API_KEY", "lk-key")
	t.Setenv("LIVEKIT_API_SECRET", "lk-secret")
	t.Setenv("PERPLEXITY_API_KEY", "pplx")
	t.Setenv("CARTESIA_API_KEY", "cart")
	t.Setenv("ELEVEN_API_KEY", "eleven")
	t.Setenv("BACKEND_URL", "http://store:8000/")
	t.Setenv("AGENT_NAME", "my-agent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	creds := cfg.RoomCredentials()
	if creds.URL != "wss://rooms.example.com" || creds.APIKey != "lk-key" || creds.APISecret != "lk-secret" {
		t.Errorf("room credentials = %+v", creds)
	}
	vc := cfg.VoiceCredentials()
	if vc.Cartesia != "cart" || vc.ElevenLabs != "eleven" {
		t.Errorf("voice credentials = %+v", vc)
	}
	if cfg.Search.APIKey != "pplx" {
		t.Errorf("search key = %q", cfg.Search.APIKey)
	}
	if cfg.Transcript.BackendURL != "http://store:8000" {
		t.Errorf("backend url = %q", cfg.Transcript.BackendURL)
	}
	if cfg.Agent.Name != "my-agent" {
		t.Errorf("agent name = %q", cfg.Agent.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("PERPLEXITY_API_KEY", "legacy")
	t.Setenv("CARVOICE_SEARCH_API_KEY", "prefixed")
	t.Setenv("CARVOICE_SEARCH_TIMEOUT", "3s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.APIKey != "prefixed" {
		t.Errorf("search key = %q, want prefixed", cfg.Search.APIKey)
	}
	if cfg.Search.Timeout != 3*time.Second {
		t.Errorf("search timeout = %v", cfg.Search.Timeout)
	}
}

func TestLoad_FileWithEnvRefs(t *testing.T) {
	t.Setenv("MY_CARTESIA_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "carvoice.yaml")
	content := `
tts:
  cartesia_api_key: "${MY_CARTESIA_KEY}"
transports:
  nats:
    subject_prefix: cv.sessions
    job_subject: ""
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTS.CartesiaAPIKey != "from-env" {
		t.Errorf("cartesia key = %q", cfg.TTS.CartesiaAPIKey)
	}
	if cfg.Transports.NATS.SubjectPrefix != "cv.sessions" || cfg.Transports.NATS.JobSubject != "" {
		t.Errorf("nats = %+v", cfg.Transports.NATS)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Transports.NATS.URL = "nats://localhost:4222"

	err := cfg.Validate()
	if !errors.Is(err, room.ErrMissingCredentials) {
		t.Errorf("Validate() = %v, want ErrMissingCredentials", err)
	}

	cfg.Room = RoomConfig{URL: "wss://x", APIKey: "k", APISecret: "s"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	cfg.Transports.NATS.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without a NATS url")
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("CV_TEST_SECRET", "s3cret")

	tests := []struct {
		in, want string
	}{
		{"${CV_TEST_SECRET}", "s3cret"},
		{"${CV_TEST_UNSET}", "${CV_TEST_UNSET}"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := resolveEnvRef(tt.in); got != tt.want {
			t.Errorf("resolveEnvRef(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
