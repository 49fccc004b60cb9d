package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ProSocialFlow/internal/app"
	"ProSocialFlow/internal/config"
	"ProSocialFlow/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "prosocialflow",
	Short: "Generate topic ideas, social posts and an image of the day",
	Long: `ProSocialFlow generates one topic idea per content category, turns the
ideas you lock in into short social media posts, and remembers recent
topics per category so new ideas do not repeat them.

Run "prosocialflow serve" for the HTTP API, or call a single action
directly from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: $PROSOCIALFLOW_CONFIG)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(serveCmd, ideasCmd, postsCmd, imageCmd, historyCmd)
}

func loadConfig() config.Config {
	cfg := config.Load()
	if cfgFile != "" {
		cfg = config.LoadFrom(cfgFile)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg
}

// newApp builds the application; logs go to stderr so stdout stays parseable.
func newApp(ctx context.Context, logTo io.Writer) (*app.Application, error) {
	return buildApp(ctx, loadConfig(), logTo)
}

// newHistoryApp is newApp for commands that read or write topic history. The
// memory backend lives only as long as the process, so those commands say so.
func newHistoryApp(ctx context.Context, logTo io.Writer) (*app.Application, error) {
	cfg := loadConfig()
	if notice := memoryHistoryNotice(cfg); notice != "" {
		fmt.Fprintln(logTo, notice)
	}
	return buildApp(ctx, cfg, logTo)
}

func memoryHistoryNotice(cfg config.Config) string {
	if cfg.History.Backend != config.BackendMemory {
		return ""
	}
	return "warning: history backend is memory; topics are forgotten when this command exits. " +
		"Set HISTORY_BACKEND to postgres or redis to keep them."
}

func buildApp(ctx context.Context, cfg config.Config, logTo io.Writer) (*app.Application, error) {
	logger := logging.NewWithWriter(logTo, cfg.Logging.Level, cfg.Logging.Format)
	return app.New(ctx, cfg, logger, app.Options{})
}

// printResult writes a result as indented JSON and fails the command when it was unsuccessful.
func printResult(w io.Writer, res any, success bool, msg string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("%s", msg)
	}
	return nil
}
