package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inamate/whiteboard/internal/discovery"
	"github.com/inamate/whiteboard/internal/printer"
)

func newDiscoverCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find relays advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer.Step("browsing %s for %s\n", discovery.ServiceType, timeout)
			relays, err := discovery.Browse(cmd.Context(), timeout)
			if err != nil {
				return printer.Error("discovery failed", err.Error(), nil)
			}
			if len(relays) == 0 {
				printer.Warning("no relays found\n")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tADDRESS\tINFO")
			for _, r := range relays {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Instance, r.Addr, strings.Join(r.Info, " "))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", discovery.DefaultTimeout, "How long to listen for answers")
	return cmd
}
