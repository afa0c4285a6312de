package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deckhand/internal/api"
	"deckhand/internal/infra"
	"deckhand/internal/polling"
)

var (
	flagAPIURL string
	flagToken  string
	flagDebug  bool
	flagJSON   bool

	cfg    *infra.Config
	logger infra.Logger
	client *api.Client
)

// rootCmd is the base command; all subcommands hang off it via init.
var rootCmd = &cobra.Command{
	Use:   "deckhand",
	Short: "Build AI-generated presentations from the terminal",
	Long: `Deckhand drives the presentation generation pipeline: create a
presentation, run its generation steps, watch progress, edit slides, and
download the finished deck.

Point it at a backend with --api-url or DECKHAND_API_URL. The bundled
deckhand-sim binary serves a local stand-in on port 8721 for development.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the CLI with signal-aware context cancellation.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "presentation API base URL (default $DECKHAND_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (default $DECKHAND_API_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print raw JSON instead of formatted output")
}

func setup(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var err error
	cfg, err = infra.LoadConfig()
	if err != nil {
		return err
	}
	if flagAPIURL != "" {
		cfg.APIBaseURL = strings.TrimRight(flagAPIURL, "/")
	}
	if flagToken != "" {
		cfg.APIToken = flagToken
	}

	logger = infra.NewLogger(cfg.AppEnv)
	if !flagDebug {
		// Command output goes through stdout; keep the logger to warnings so
		// api and polling internals stay quiet unless asked for.
		logger = logger.Level(zerolog.WarnLevel)
	}

	client, err = api.NewClient(api.Options{
		BaseURL:        cfg.APIBaseURL,
		Token:          cfg.APIToken,
		Logger:         &logger,
		RequestTimeout: cfg.HTTPTimeout,
	})
	return err
}

// printJSON serves the --json flag: the wire-shaped value, indented, on
// stdout.
func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Println(string(raw))
	return nil
}

// pollOptions translates config overrides into engine options; zero values
// keep the engine defaults.
func pollOptions() polling.Options {
	return polling.Options{
		ProcessingInterval: cfg.PollProcessingInterval,
		PendingInterval:    cfg.PollPendingInterval,
		SettledInterval:    cfg.PollSettledInterval,
		IdleInterval:       cfg.PollIdleInterval,
	}
}
