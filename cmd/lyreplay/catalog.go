package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/catalog"
	"karolbroda.com/lyreplay/internal/track"
	"karolbroda.com/lyreplay/internal/view"
)

var (
	// flags for search
	searchType string

	// flags for top and albums
	highQuality  bool
	newestAlbums bool
)

var playlistCmd = &cobra.Command{
	Use:   "playlist [id]",
	Short: "list the tracks of a playlist",
	Long:  `print the tracks of a playlist. without an id, the configured default playlist is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		id := cfg.Player.Playlist
		if len(args) == 1 {
			id = args[0]
		}

		pl, err := cat.Playlist(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d tracks)\n\n", pl.Name, pl.Len())
		printTracks(pl.Tracks)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "search songs, albums or playlists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := catalog.ParseSearchType(searchType)
		if !ok {
			return fmt.Errorf("unknown search type %q (song, album, playlist)", searchType)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		res, err := cat.Search(cmd.Context(), args[0], kind)
		if err != nil {
			return err
		}

		switch kind {
		case catalog.SearchAlbums:
			printAlbums(res.Albums)
		case catalog.SearchPlaylists:
			printPlaylists(res.Playlists)
		default:
			printTracks(res.Tracks)
		}
		return nil
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "list top playlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		fetch := cat.TopPlaylists
		if highQuality {
			fetch = cat.HighQualityPlaylists
		}
		pls, err := fetch(cmd.Context())
		if err != nil {
			return err
		}
		printPlaylists(pls)
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user <uid>",
	Short: "list the playlists of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		pls, err := cat.UserPlaylists(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPlaylists(pls)
		return nil
	},
}

var albumsCmd = &cobra.Command{
	Use:   "albums",
	Short: "list top albums",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		fetch := cat.TopAlbums
		if newestAlbums {
			fetch = cat.NewestAlbums
		}
		albums, err := fetch(cmd.Context())
		if err != nil {
			return err
		}
		printAlbums(albums)
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "list hot playlist categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		cats, err := cat.HotCategories(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Printf("%d\t%s\n", c.ID, c.Name)
		}
		return nil
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <track-id>",
	Short: "print the stream url of a track",
	Long:  `print the stream url the catalog returns for a track, or the fallback url when it has none.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		src, err := cat.TrackURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if src == "" {
			fmt.Fprintln(os.Stderr, "catalog has no url, using fallback")
			src = cat.FallbackURL(args[0])
		}
		fmt.Println(src)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playlistCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(albumsCmd)
	rootCmd.AddCommand(categoriesCmd)

	searchCmd.Flags().StringVarP(&searchType, "type", "t", "song", "what to search for: song, album or playlist")
	topCmd.Flags().BoolVar(&highQuality, "highquality", false, "list high quality playlists instead")
	albumsCmd.Flags().BoolVar(&newestAlbums, "newest", false, "list the newest albums instead")
}

func printTracks(tracks []track.Track) {
	if len(tracks) == 0 {
		fmt.Println("no tracks found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, t := range tracks {
		fmt.Fprintf(w, "%3d\t%s\t%s\t%s\t%s\n", i+1, t.ID, t.Title, t.Subtitle(), view.FormatTime(t.DurationMs))
	}
	w.Flush()
}

func printPlaylists(pls []track.PlaylistSummary) {
	if len(pls) == 0 {
		fmt.Println("no playlists found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, pl := range pls {
		fmt.Fprintf(w, "%s\t%s\t%d tracks\t%s\n", pl.ID, pl.Name, pl.TrackCount, pl.Creator)
	}
	w.Flush()
}

func printAlbums(albums []track.Album) {
	if len(albums) == 0 {
		fmt.Println("no albums found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, a := range albums {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Artist)
	}
	w.Flush()
}
