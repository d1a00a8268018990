package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/mediasession"
	"karolbroda.com/lyreplay/internal/view"
)

var (
	// flags for remote
	remoteService string
	followRemote  bool
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "control a running lyreplay over mpris",
	Long:  `query and control a running lyreplay instance through the mpris d-bus interface.`,
}

var remoteStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "show the playing track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, func(r *mediasession.Remote) error {
			meta, err := r.NowPlaying()
			if err != nil {
				return err
			}
			status, err := r.Status()
			if err != nil {
				return err
			}

			fmt.Printf("player:   %s\n", r.Service())
			printNowPlaying(meta, status)

			if !followRemote {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Println("\nfollowing changes, ctrl+c to stop")
			err = r.Follow(ctx, func(ev mediasession.RemoteEvent) {
				switch {
				case ev.Metadata != nil:
					fmt.Printf("track:    %s - %s\n", ev.Metadata.Artist, ev.Metadata.Title)
				case ev.Playback != "":
					fmt.Printf("state:    %s\n", ev.Playback)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

var remotePlayPauseCmd = &cobra.Command{
	Use:   "play-pause",
	Short: "toggle playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, (*mediasession.Remote).PlayPause)
	},
}

var remoteNextCmd = &cobra.Command{
	Use:   "next",
	Short: "skip to the next track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, (*mediasession.Remote).Next)
	},
}

var remotePreviousCmd = &cobra.Command{
	Use:   "previous",
	Short: "go back to the previous track",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, (*mediasession.Remote).Previous)
	},
}

var remoteStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stop playback",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, (*mediasession.Remote).Stop)
	},
}

func init() {
	rootCmd.AddCommand(remoteCmd)

	remoteCmd.AddCommand(remoteStatusCmd)
	remoteCmd.AddCommand(remotePlayPauseCmd)
	remoteCmd.AddCommand(remoteNextCmd)
	remoteCmd.AddCommand(remotePreviousCmd)
	remoteCmd.AddCommand(remoteStopCmd)

	remoteCmd.PersistentFlags().StringVar(&remoteService, "service", "", "mpris bus name (default: first lyreplay instance)")
	remoteStatusCmd.Flags().BoolVarP(&followRemote, "follow", "f", false, "keep printing track and state changes")
}

// withRemote connects to the session bus, resolves the target player and
// runs fn against it.
func withRemote(cmd *cobra.Command, fn func(*mediasession.Remote) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer bus.Close()

	service := remoteService
	if service == "" {
		players, err := mediasession.FindPlayers(bus, cfg.MPRIS.Identity)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return fmt.Errorf("no running %s instance found on the session bus", cfg.MPRIS.Identity)
		}
		service = players[0]
	}

	r, err := mediasession.NewRemote(bus, service)
	if err != nil {
		return err
	}
	return fn(r)
}

func printNowPlaying(meta mediasession.Metadata, status mediasession.Status) {
	if meta.Title == "" {
		fmt.Println("no track loaded")
		return
	}

	fmt.Printf("title:    %s\n", meta.Title)
	fmt.Printf("artist:   %s\n", meta.Artist)
	if meta.Album != "" {
		fmt.Printf("album:    %s\n", meta.Album)
	}
	if meta.DurationMs > 0 {
		fmt.Printf("position: %s / %s\n", view.FormatTime(status.PositionMs), view.FormatTime(meta.DurationMs))
	}
	fmt.Printf("state:    %s\n", status.Playback)
	fmt.Printf("volume:   %d%%\n", int(status.Volume*100+0.5))
}
