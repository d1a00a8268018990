package main

import (
	"fmt"
	"math"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/catalog"
	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/logging"
)

var version = "dev"

var (
	// global flags
	configPath string
	logFile    string
	logLevel   string
	apiURL     string
	playlistID string
	syncOffset float64
	hideHeader bool
	noMPRIS    bool
)

var rootCmd = &cobra.Command{
	Use:   "lyreplay",
	Short: "terminal music player with synchronized lyrics",
	Long: `lyreplay plays songs from a NetEase-compatible music API in the terminal
and shows their lyrics line by line as the song plays.

when run without a subcommand, it starts the interactive player.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyreplay/config.toml)")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&apiURL, "api-url", "", "music api base url")
	flags.StringVarP(&playlistID, "playlist", "p", "", "playlist to open on start")
	flags.Float64VarP(&syncOffset, "sync-offset", "s", 0, "initial lyric sync offset in seconds")
	flags.BoolVarP(&hideHeader, "hide-header", "H", false, "hide search and playlist header")
	flags.BoolVar(&noMPRIS, "no-mpris", false, "do not register as an mpris player")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig layers flags that were set explicitly over file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.BaseURL = apiURL
	}
	if flags.Changed("playlist") {
		cfg.Player.Playlist = playlistID
	}
	if flags.Changed("sync-offset") {
		cfg.Player.SyncOffsetMs = int64(math.Round(syncOffset * 1000))
	}
	if flags.Changed("hide-header") {
		cfg.UI.HideHeader = hideHeader
	}
	if flags.Changed("no-mpris") {
		cfg.MPRIS.Enabled = !noMPRIS
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger logs to stderr for one-shot subcommands.
func cliLogger(cfg *config.Config) *log.Logger {
	return logging.New(os.Stderr, cfg.LogLevel())
}

func newCatalog(cfg *config.Config, logger *log.Logger) (*catalog.Client, error) {
	return catalog.New(catalog.Options{
		BaseURL:           cfg.API.BaseURL,
		FallbackPattern:   cfg.API.FallbackURL,
		Timeout:           cfg.API.Timeout(),
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		CacheSize:         cfg.API.CacheSize,
		CacheTTL:          cfg.API.CacheTTL(),
		Logger:            logging.With(logger, "component", "catalog"),
	})
}
