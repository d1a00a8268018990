package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/artwork"
	"karolbroda.com/lyreplay/internal/audio"
	"karolbroda.com/lyreplay/internal/config"
	"karolbroda.com/lyreplay/internal/logging"
	"karolbroda.com/lyreplay/internal/mediasession"
	"karolbroda.com/lyreplay/internal/player"
	"karolbroda.com/lyreplay/internal/terminal"
	"karolbroda.com/lyreplay/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive player",
	Long:  `starts the terminal player with playlist browsing, search and synchronized lyrics.`,
	RunE:  runPlayer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPlayer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// the tui owns the terminal, so logs only go to a file when asked
	logger := logging.Discard()
	if cfg.Log.File != "" {
		fileLogger, closeLog, err := logging.OpenFile(cfg.Log.File, cfg.LogLevel())
		if err != nil {
			return err
		}
		defer closeLog()
		logger = fileLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	defer terminal.Reset(os.Stdout)

	cat, err := newCatalog(cfg, logger)
	if err != nil {
		return err
	}

	session, closeSession := openSession(cfg, logger)
	defer closeSession()

	ctrl := player.NewController(player.Options{
		Output:       audio.NewSpeaker(audio.Options{Logger: logging.With(logger, "component", "audio")}),
		Resolver:     cat,
		Session:      session,
		Fallback:     cat.FallbackURL,
		Logger:       logging.With(logger, "component", "player"),
		SyncOffsetMs: cfg.Player.SyncOffsetMs,
	})
	defer ctrl.Close()
	ctrl.SetVolume(cfg.Player.Volume)

	var loader ui.ArtworkLoader
	if cfg.UI.ShowArtwork {
		loader = artwork.NewLoader(nil, cfg.API.CacheSize, cfg.API.CacheTTL())
	}

	model := ui.NewModel(ui.Config{
		Player:          ctrl,
		Catalog:         cat,
		Artwork:         loader,
		Logger:          logging.With(logger, "component", "ui"),
		DefaultPlaylist: cfg.Player.Playlist,
		SeekStep:        cfg.Player.SeekStep(),
		VolumeStep:      cfg.Player.VolumeStep,
		HideHeader:      cfg.UI.HideHeader,
		ShowArtwork:     cfg.UI.ShowArtwork,
		TermCaps:        terminal.DetectCapabilities(),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	logger.Info("starting", "version", version, "api", cfg.API.BaseURL, "playlist", cfg.Player.Playlist)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running bubble tea: %w", err)
	}
	return nil
}

// openSession registers on the session bus when enabled. Without a bus the
// player still works; it just can't be controlled from outside.
func openSession(cfg *config.Config, logger *log.Logger) (mediasession.Session, func()) {
	noop := func() {}
	if !cfg.MPRIS.Enabled {
		return mediasession.NewNoop(), noop
	}

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("mpris disabled: no session bus", "err", err)
		return mediasession.NewNoop(), noop
	}

	mpris, err := mediasession.NewMPRIS(bus, cfg.MPRIS.Identity, logging.With(logger, "component", "mpris"))
	if err != nil {
		logger.Warn("mpris disabled", "err", err)
		bus.Close()
		return mediasession.NewNoop(), noop
	}

	logger.Info("registered mpris player", "name", mpris.Name())
	return mpris, func() {
		mpris.Close()
		bus.Close()
	}
}
