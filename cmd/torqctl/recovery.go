package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// recoveryRequestView mirrors the JSON shape served by the relay's
// /recovery/pending admin endpoint (tlv.RecoveryRequest's exported fields).
type recoveryRequestView struct {
	Source        uint8  `json:"Source"`
	Domain        uint8  `json:"Domain"`
	Kind          uint8  `json:"Kind"`
	FromSequence  uint64 `json:"FromSequence"`
	ToSequence    uint64 `json:"ToSequence"`
	RequestedAtNs uint64 `json:"RequestedAtNs"`
}

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "Inspect outstanding recovery requests",
}

var recoveryPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List recovery requests the relay has forwarded to a producer and not yet seen resolved",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var pending []recoveryRequestView
		if err := getJSON("/recovery/pending", &pending); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(pending) == 0 {
			fmt.Fprintln(out, "no pending recovery requests")
			return nil
		}
		for _, req := range pending {
			fmt.Fprintf(out, "source=%d domain=%d kind=%d from=%d to=%d\n",
				req.Source, req.Domain, req.Kind, req.FromSequence, req.ToSequence)
		}
		return nil
	},
}

func init() {
	recoveryCmd.AddCommand(recoveryPendingCmd)
}
