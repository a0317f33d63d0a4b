package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inamate/whiteboard/internal/board"
	"github.com/inamate/whiteboard/internal/export"
	"github.com/inamate/whiteboard/internal/printer"
	"github.com/inamate/whiteboard/internal/render"
)

func newExportCmd(g *globals) *cobra.Command {
	var (
		format        string
		output        string
		width, height int
		remote        bool
	)

	cmd := &cobra.Command{
		Use:   "export ROOM",
		Short: "Render a room's saved snapshot to PNG or PDF",
		Long: `Render a room's saved snapshot, fitted to the page.

By default the snapshot is fetched and rendered locally. --remote asks the
relay to render it instead.

Examples:
  boardctl export design-review -o review.png
  boardctl export design-review --format pdf -o review.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := args[0]
			if format != "png" && format != "pdf" {
				return printer.Error(fmt.Sprintf("unknown format %q", format), "", []string{"Use --format png or --format pdf"})
			}
			if output == "" {
				output = roomID + "." + format
			}

			var data []byte
			if remote {
				var err error
				data, err = board.NewHTTPStore(g.server).Export(cmd.Context(), roomID, format)
				if err != nil {
					return printer.Error("remote export failed", err.Error(), nil)
				}
			} else {
				snap, err := loadSnapshot(cmd, g, roomID)
				if err != nil {
					return err
				}
				if format == "png" {
					data, err = export.PNG(render.New(width, height), snap, width, height)
				} else {
					var buf bytes.Buffer
					err = export.PDF(&buf, snap)
					data = buf.Bytes()
				}
				if err != nil {
					return printer.Error("render failed", err.Error(), nil)
				}
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return printer.Error("could not write output", err.Error(), nil)
			}
			printer.Success("wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "png", "Output format: png or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default ROOM.FORMAT)")
	cmd.Flags().IntVar(&width, "width", 0, "PNG width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "PNG height in pixels")
	cmd.Flags().BoolVar(&remote, "remote", false, "Let the relay render")
	return cmd
}
