package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestResolveVoiceCmd(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		arg       string
		wantProv  string
		wantVoice string
	}{
		{
			name:      "direct cartesia",
			env:       map[string]string{"CARTESIA_API_KEY": "ck"},
			arg:       "cartesia/sonic-3:abc",
			wantProv:  "cartesia",
			wantVoice: "abc",
		},
		{
			name:     "missing credential",
			env:      map[string]string{"CARTESIA_API_KEY": "", "CARVOICE_TTS_CARTESIA_API_KEY": ""},
			arg:      "cartesia/sonic-3:abc",
			wantProv: "inference-fallback",
		},
		{
			name:     "unknown provider",
			arg:      "openai/tts-1:alloy",
			wantProv: "inference-fallback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var stdout, stderr bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)
			cmd.SetArgs([]string{"resolve-voice", tt.arg})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute: %v", err)
			}

			var got resolution
			if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
				t.Fatalf("decoding output %q: %v", stdout.String(), err)
			}
			if string(got.Provider) != tt.wantProv || got.VoiceID != tt.wantVoice || got.Raw != tt.arg {
				t.Errorf("resolution = %+v", got)
			}
		})
	}
}

func TestResolveVoiceCmd_RequiresArg(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"resolve-voice"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without a descriptor")
	}
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "carvoice ") {
		t.Errorf("version output = %q", out.String())
	}
}
