// councilctl is the command-line client for the LLM council service:
// every question is answered independently by several models, the models
// rank each other's anonymized answers, and a chairman model synthesizes
// the final response.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/llmcouncil/councilgo/internal/config"
	"github.com/llmcouncil/councilgo/internal/identity"
	"github.com/llmcouncil/councilgo/pkg/client"
)

var (
	flagServer  string
	flagUser    string
	flagVerbose bool

	cfg *config.Config
	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:           "councilctl",
	Short:         "Ask a council of LLMs and browse past conversations",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `councilctl talks to an LLM council service. A question is answered
independently by several models, the models rank each other's anonymized
answers, and a chairman model synthesizes the final response.

The server address comes from --server, COUNCIL_SERVER_URL, or the
default http://localhost:8001. Run "councilstub" for a local server that
needs no provider credentials.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}

		cfg = config.Load()
		if flagServer != "" {
			cfg.ServerURL = flagServer
		}
		api = client.New(cfg.ServerURL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Council server URL (default from COUNCIL_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "Act as this user id instead of the stored one")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
}

// currentUserID resolves the acting user: the --user override when set,
// otherwise the id persisted under the data dir, generated on first use.
func currentUserID() (string, error) {
	if flagUser != "" {
		return flagUser, nil
	}
	return identity.NewFileProvider(cfg.DataDir).UserID()
}

func Execute() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
