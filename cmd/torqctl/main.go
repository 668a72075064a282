// Command torqctl is an operator CLI that introspects a running relay
// process over its admin HTTP surface (spec.md §6.5, §1.4).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var adminAddr string

var rootCmd = &cobra.Command{
	Use:   "torqctl",
	Short: "Inspect and manage a running relay process",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "http://127.0.0.1:7081", "relay admin HTTP address")
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(recoveryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
