package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mptreasury/internal/importer"
	"mptreasury/internal/model"
	"mptreasury/internal/progress"
	"mptreasury/internal/shutdown"
)

// errAlbumsFailed makes the process exit non-zero after the report was printed.
var errAlbumsFailed = errors.New("one or more albums failed to import")

func newImportCommand(ctx *commandContext) *cobra.Command {
	var upload bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import an album folder or an artist folder of albums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", args[0])
			}

			p, log, closeFn, err := ctx.openPipeline(true)
			if err != nil {
				return err
			}
			defer closeFn()

			sh := shutdown.New()
			sh.Listen()
			defer sh.Shutdown()

			var bar *progress.Bar
			hooks := importer.Hooks{
				OnAlbumsFound: func(total int) {
					if !p.Config.Verbose && isTerminal(os.Stdout) {
						bar = progress.New(total)
						log.SetProgressBar(true)
					}
				},
				OnAlbumStarted: func(_ int, raw *model.RawAlbum) {
					if bar != nil {
						bar.Start(raw.ArtistName + " - " + raw.Name)
					}
				},
				OnAlbumFinished: func(_ int, result importer.AlbumResult) {
					if bar != nil {
						bar.Increment(result.Outcome == importer.OutcomeFailed)
					}
				},
			}

			summary, err := p.RunImport(sh.Context(), args[0], upload, hooks)
			if bar != nil {
				bar.Finish()
				log.SetProgressBar(false)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderReport(summary.Report))
			fmt.Fprintln(out, summary.Report.Summary())
			if upload {
				fmt.Fprintf(out, "%d uploaded, %d skipped, %d failed uploads\n",
					summary.Upload.Uploaded, summary.Upload.Skipped, summary.Upload.Failed)
			}

			if summary.Report.Failed() {
				return errAlbumsFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&upload, "upload-to-remote", false, "Upload songs without a remote copy to remote_dir")
	return cmd
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
