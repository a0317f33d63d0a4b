package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inamate/whiteboard/internal/autosave"
	"github.com/inamate/whiteboard/internal/board"
	"github.com/inamate/whiteboard/internal/printer"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/typeid"
)

func newJoinCmd(g *globals) *cobra.Command {
	var (
		name     string
		save     bool
		presence bool
	)

	cmd := &cobra.Command{
		Use:   "join [ROOM]",
		Short: "Join a room as a headless peer and print its events",
		Long: `Join a room and print every event the relay forwards, until interrupted.

Without ROOM a new room id is generated. The saved snapshot is loaded on every (re)connect. With --autosave the
peer writes the room back to the relay after edits settle, which keeps a
room persisted even when no browser has it open.

Examples:
  boardctl join design-review --name bot
  boardctl join design-review --autosave --presence`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID := typeid.NewRoomID()
			if len(args) > 0 {
				roomID = args[0]
			}
			remote := board.NewHTTPStore(g.server)

			var opts []board.Option
			if save {
				opts = append(opts, board.WithAutosave(remote, autosave.DefaultDelay))
			}
			b := board.New(roomID, opts...)

			out := cmd.OutOrStdout()
			conn := board.NewConn(board.WebSocketURL(g.server, roomID), b,
				board.WithDisplayName(name),
				board.WithSnapshotLoader(remote),
				board.WithObserver(func(msg protocol.Message) {
					if msg.Type == protocol.TypeDraw {
						return
					}
					if !presence && protocol.IsPresence(msg.Type) {
						return
					}
					printer.Event(out, msg)
				}),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printer.Step("joining %s on %s\n", roomID, g.server)
			err := conn.Run(ctx)

			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cerr := b.Close(closeCtx); cerr != nil {
				printer.Warning("final save failed: %v\n", cerr)
			}

			if err != nil && !errors.Is(err, context.Canceled) {
				return printer.Error("connection failed", err.Error(), nil)
			}
			snap := b.Snapshot()
			printer.Success("left %s with %d objects and %d notes\n", roomID, len(snap.Objects), len(snap.StickyNotes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "boardctl", "Display name shown to peers")
	cmd.Flags().BoolVar(&save, "autosave", false, "Save the room snapshot back to the relay")
	cmd.Flags().BoolVar(&presence, "presence", false, "Also print cursor and presence events")
	return cmd
}
