// seabridge translates messages, documents and SMS text for a school
// messaging product, with a local inference provider and a cloud fallback.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/seabridge/internal/app"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

var (
	envFile  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seabridge",
		Short: "Translation orchestration for school messaging",
		Long: `seabridge translates short messages, long documents and SMS text.

Text goes to a local OpenAI-compatible model first and falls back to a
cloud translator Lambda. Documents in PDF, Word, Markdown, HTML, RTF or plain
text can be handed to a batch translation service and polled until done.

Commands:
  serve      Run the HTTP API and the job poller
  translate  Translate a short text
  document   Translate a long text file chunk by chunk
  sms        Split (and optionally translate) text into SMS segments
  job        Start, inspect and download batch document jobs`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			level := logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			log.InitLogger(log.ParseLevel(level))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newDocumentCmd(),
		newSmsCmd(),
		newJobCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seabridge version %s (%s)\n", version, commit)
		},
	}
}

// buildApp loads configuration and wires the service.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, _, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.Build(ctx, cfg)
}
