// Carvoice is the in-car voice assistant agent daemon. It accepts room jobs,
// selects the speech backends for each session from the dispatch metadata,
// drives the media worker over NATS and persists conversation turns.
//
// Usage:
//
//	carvoice [flags]
//	carvoice --config /path/to/carvoice.yaml
//	carvoice resolve-voice cartesia/sonic-3:<voice-id>
//
// @title       carvoice API
// @version     1.0
// @description Job intake for the carvoice in-car voice assistant.
// @BasePath    /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:     "carvoice",
		Short:   "In-car voice assistant agent daemon",
		Version: version,
		Long: `carvoice joins real-time audio rooms as a voice assistant.

Each job carries dispatch metadata that selects realtime (speech-to-speech)
or hybrid (LLM + separate synthesis) mode, the voice, the LLM and the
enabled tools. Audio is handled by the media worker, reached over NATS.

Configuration is read from carvoice.yaml (., ./configs, /etc/carvoice),
CARVOICE_* environment variables and the LIVEKIT_*, PERPLEXITY_API_KEY,
CARTESIA_API_KEY, ELEVEN_API_KEY and BACKEND_URL variables.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			run(configFile)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("carvoice %s\n", version))
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/carvoice.local.yaml)")

	root.AddCommand(newResolveVoiceCmd(&configFile))
	return root
}
