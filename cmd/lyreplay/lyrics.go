package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/lyrics"
)

var (
	// flags for lyrics
	rawLyrics   bool
	plainLyrics bool
	translation bool
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics <track-id>",
	Short: "print the lyrics of a track",
	Long: `print the time-synced lyrics of a track with normalized timestamps.
use --raw to print the document exactly as the catalog returns it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalog(cfg, cliLogger(cfg))
		if err != nil {
			return err
		}

		doc, err := cat.LyricDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		text := doc.Original
		if translation {
			text = doc.Translation
		}
		if text == "" {
			return fmt.Errorf("no lyrics for track %s", args[0])
		}

		if rawLyrics {
			fmt.Println(text)
			return nil
		}

		parsed := lyrics.Parse(text)
		if parsed.Len() == 0 {
			return fmt.Errorf("track %s has no time-synced lyrics", args[0])
		}
		if plainLyrics {
			fmt.Println(parsed.Text())
			return nil
		}
		fmt.Print(parsed.Format())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.Flags().BoolVar(&rawLyrics, "raw", false, "print the unparsed lyric document")
	lyricsCmd.Flags().BoolVar(&plainLyrics, "plain", false, "print the lyric text without timestamps")
	lyricsCmd.Flags().BoolVar(&translation, "translation", false, "print the translated lyrics instead")
}
