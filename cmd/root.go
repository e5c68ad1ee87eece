package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxrelay/internal/config"
	"github.com/teemow/inboxrelay/internal/logging"
)

// rootCmd represents the base command for the inboxrelay application
var rootCmd = &cobra.Command{
	Use:   "inboxrelay",
	Short: "Relays unread email and its attachments to Telegram",
	Long: `inboxrelay watches a Gmail inbox, summarizes each unread message and its
attachments with Gemini, and posts the result to a Telegram chat.

Spreadsheets with data-quality issues get a proposed correction that is only
applied once someone approves it from the chat.

It can run as:
  - The relay (default)
  - An MCP (Model Context Protocol) server exposing the spreadsheet tools`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var configFile string

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxrelay version %s\n" .Version}}`)

	// If no subcommand is provided, run the relay by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./inboxrelay.yaml or ./configs/inboxrelay.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error. Can also use LOG_LEVEL env var.")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json. Can also use LOG_FORMAT env var.")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

// loadConfig reads the configuration with cmd's flags applied on top and
// builds the process logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
