package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type globals struct {
	server  string
	verbose bool
}

// NewRootCmd builds the boardctl command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "boardctl",
		Short: "Inspect, join and export whiteboard rooms",
		Long: `boardctl talks to a whiteboard relay over its REST API and websocket.

It can join a room as a headless peer and print the event stream, inspect
or export a room's saved snapshot, and find relays on the local network.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	server := os.Getenv("WHITEBOARD_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().StringVarP(&g.server, "server", "s", server, "Relay base URL (env WHITEBOARD_SERVER)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newJoinCmd(g),
		newInspectCmd(g),
		newExportCmd(g),
		newDiscoverCmd(),
	)
	return root
}

func Execute(version string) error {
	return NewRootCmd(version).Execute()
}
