package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// relayStatsView mirrors the JSON shape served by the relay's /stats
// admin endpoint (see cmd/relay's statsView).
type relayStatsView struct {
	Domain      string `json:"domain"`
	Connections map[string]struct {
		State           int    `json:"State"`
		MessagesSent    uint64 `json:"MessagesSent"`
		MessagesDropped uint64 `json:"MessagesDropped"`
		QueueDepth      int    `json:"QueueDepth"`
	} `json:"connections"`
	DropCounts map[string]uint64 `json:"drop_counts"`
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Inspect relay fan-out and connection state",
}

var relayStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-connection stats and drop counters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var view relayStatsView
		if err := getJSON("/stats", &view); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "domain: %s\n", view.Domain)
		fmt.Fprintf(out, "connections: %d\n", len(view.Connections))
		for id, c := range view.Connections {
			fmt.Fprintf(out, "  %s: state=%d sent=%d dropped=%d queue_depth=%d\n",
				id, c.State, c.MessagesSent, c.MessagesDropped, c.QueueDepth)
		}
		for reason, count := range view.DropCounts {
			fmt.Fprintf(out, "drops[%s]: %d\n", reason, count)
		}
		return nil
	},
}

var relaySubscriptionsCmd = &cobra.Command{
	Use:   "subscriptions <topic>",
	Short: "Show subscriber count for a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := getText("/debug/subscriptions?topic=" + args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var relayHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the relay's /healthz endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, err := getText("/healthz")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	relayCmd.AddCommand(relayStatsCmd)
	relayCmd.AddCommand(relaySubscriptionsCmd)
	relayCmd.AddCommand(relayHealthCmd)
}
