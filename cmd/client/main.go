package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/solvesync/internal/client/config"
	"github.com/openmined/solvesync/internal/utils"
	"github.com/openmined/solvesync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var home, _ = os.UserHomeDir()

const envPrefix = "SOLVESYNC"

var rootCmd = &cobra.Command{
	Use:     "solvesync",
	Short:   "SolveSync offline sync client",
	Version: version.Detailed(),
	RunE:    runDaemon,
}

func init() {
	rootCmd.Flags().SortFlags = false
	addDaemonFlags(rootCmd)
	rootCmd.PersistentFlags().StringP("datadir", "d", config.DefaultDataDir, "data directory holding the outbox")
	rootCmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "url of the solvesync server")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
}

func main() {
	// TODO unique log file per instance so two daemons on one machine do not truncate each other
	logFile := config.DefaultLogFilePath

	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	defer logInterceptor.Close()
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: defaults, config file, .env, SOLVESYNC_* env, flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	// .env is optional and never overrides the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv load", "error", err)
	}

	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	bindFlag(v, "data_dir", cmd.Flag("datadir"))
	bindFlag(v, "server_url", cmd.Flag("server"))
	bindFlag(v, "http_addr", cmd.Flag("http-addr"))
	bindFlag(v, "http_token", cmd.Flag("http-token"))
	bindFlag(v, "settle_delay", cmd.Flag("settle-delay"))
	bindFlag(v, "probe_interval", cmd.Flag("probe-interval"))
	bindFlag(v, "import_chunk_size", cmd.Flag("chunk-size"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &config.Config{
		Path:            configPath,
		DataDir:         v.GetString("data_dir"),
		ServerURL:       v.GetString("server_url"),
		HTTPAddr:        v.GetString("http_addr"),
		HTTPToken:       v.GetString("http_token"),
		SettleDelay:     v.GetDuration("settle_delay"),
		ProbeInterval:   v.GetDuration("probe_interval"),
		ImportChunkSize: v.GetInt("import_chunk_size"),
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultDataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlag binds a flag when the command defines it. An unset flag only
// supplies a default, below the file and env.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag != nil {
		_ = v.BindPFlag(key, flag)
	}
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(version.AppName + " " + version.Version)
}
