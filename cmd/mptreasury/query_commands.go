package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "albums",
		Short: "List imported albums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, closeFn, err := ctx.openPipeline(false)
			if err != nil {
				return err
			}
			defer closeFn()

			albums, err := p.Store.Albums(cmd.Context())
			if err != nil {
				return err
			}
			if len(albums) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No albums imported yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAlbums(albums))
			return nil
		},
	}
}

func newSongsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "songs <album-id>",
		Short: "List the songs of an imported album",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid album id %q", args[0])
			}

			p, _, closeFn, err := ctx.openPipeline(false)
			if err != nil {
				return err
			}
			defer closeFn()

			album, err := p.Store.Album(cmd.Context(), id)
			if err != nil {
				return err
			}
			songs, err := p.Store.SongsByAlbum(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s - %s\n", album.ArtistName, album.Name)
			fmt.Fprintln(out, renderSongs(songs))
			return nil
		},
	}
}
