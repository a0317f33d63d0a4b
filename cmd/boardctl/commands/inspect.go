package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/inamate/whiteboard/internal/board"
	"github.com/inamate/whiteboard/internal/printer"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
)

func newInspectCmd(g *globals) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "inspect ROOM",
		Short: "List the objects in a room's saved snapshot",
		Long: `Print a room's saved snapshot as a table of objects and sticky notes.

--dump prints the decoded snapshot structure instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(cmd, g, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dump {
				fmt.Fprintln(out, litter.Options{HidePrivateFields: false, StripPackageNames: true}.Sdump(snap))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tID\tTYPE\tBOUNDS")
			for i, obj := range snap.Objects {
				b := scene.RawBounds(obj)
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f,%.0f %.0fx%.0f\n", i, obj.Header().ID, obj.Header().Type, b.X, b.Y, b.Width, b.Height)
			}
			for _, n := range snap.StickyNotes {
				fmt.Fprintf(tw, "-\t%s\tsticky\t%.0f,%.0f %.0fx%.0f\n", n.ID, n.X, n.Y, n.Width, n.Height)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "Dump the decoded snapshot")
	return cmd
}

func loadSnapshot(cmd *cobra.Command, g *globals, roomID string) (scene.Snapshot, error) {
	data, err := board.NewHTTPStore(g.server).Load(cmd.Context(), roomID)
	if errors.Is(err, store.ErrNotFound) {
		return scene.Snapshot{}, printer.Error(
			fmt.Sprintf("room %q has no saved snapshot", roomID),
			"Nothing has been saved for this room yet.",
			[]string{"Check the room id", "Run 'boardctl join " + roomID + " --autosave' while peers edit"},
		)
	}
	if err != nil {
		return scene.Snapshot{}, printer.Error("could not load snapshot", err.Error(), []string{"Check --server points at a running relay"})
	}

	snap, err := scene.DecodeSnapshot(data)
	if err != nil {
		return scene.Snapshot{}, printer.Error("snapshot is unreadable", err.Error(), nil)
	}
	return snap, nil
}
