package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/interviewer/internal/client"
	"github.com/pavelanni/interviewer/internal/session"
)

var _ session.Backend = (*client.Client)(nil)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewer",
		Short: "Mock job interview practice powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, practiceCmd(), historyCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addClientFlags registers the flags shared by commands that talk to a
// running server and keep a local state file.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("server", "s", "http://localhost:8080", "Interviewer server URL")
	f.String("state-file", defaultStateFile(), "Local state file")
	f.String("lang", "en", "Output language (en, ru)")
	f.Duration("request-timeout", client.DefaultRequestTimeout, "Timeout for ordinary API requests")
	f.Duration("question-timeout", client.DefaultQuestionTimeout, "Timeout for question generation requests")
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "interviewer-state.json"
	}
	return filepath.Join(dir, "interviewer", "state.json")
}

func newClient(v *viper.Viper) *client.Client {
	return client.New(v.GetString("server"),
		client.WithTimeouts(v.GetDuration("question-timeout"), v.GetDuration("request-timeout")))
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}
