package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nadzzz/carvoice/internal/config"
	"github.com/nadzzz/carvoice/internal/voice"
)

type resolution struct {
	Provider voice.Provider `json:"provider"`
	Model    string         `json:"model,omitempty"`
	VoiceID  string         `json:"voice_id,omitempty"`
	Raw      string         `json:"raw"`
}

func newResolveVoiceCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-voice <descriptor>",
		Short: "Show how a voice descriptor will be synthesized",
		Long: `Resolve a voice descriptor against the configured provider credentials.

Descriptors have the form provider/model:voice_id. Descriptors that name
an unknown provider, are malformed, or lack a configured credential are
routed through the inference gateway ("inference-fallback").

Examples:
  carvoice resolve-voice cartesia/sonic-3:a0e99841-438c-4a64-b679-ae501e7d6091
  carvoice resolve-voice elevenlabs:21m00Tcm4TlvDq8ikWAM`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			d := voice.NewResolver(cfg.VoiceCredentials(), logger).Resolve(args[0])

			out, err := json.MarshalIndent(resolution{
				Provider: d.Provider,
				Model:    d.Model,
				VoiceID:  d.VoiceID,
				Raw:      d.Raw,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
