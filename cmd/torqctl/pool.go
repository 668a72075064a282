package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/torqfin/messaging-core/transport"
)

var (
	connPool *transport.Pool
	poolOnce sync.Once
)

func poolInit(_ *cobra.Command, _ []string) error {
	poolOnce.Do(func() {
		connPool = transport.NewPool(4, 16, time.Minute, transport.Options{})
	})
	return nil
}

func poolStats(cmd *cobra.Command, _ []string) error {
	if connPool == nil {
		return fmt.Errorf("connection pool not initialised")
	}
	stats := connPool.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "idle connections: %d\n", stats.Idle)
	fmt.Fprintf(cmd.OutOrStdout(), "in-use connections: %d\n", stats.InUse)
	fmt.Fprintf(cmd.OutOrStdout(), "capacity: %d\n", stats.Capacity)
	for endpoint, n := range stats.PerEndpoint {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", endpoint, n)
	}
	return nil
}

func poolDial(cmd *cobra.Command, args []string) error {
	if connPool == nil {
		return fmt.Errorf("connection pool not initialised")
	}
	if len(args) != 2 {
		return fmt.Errorf("dial requires <kind> <addr>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := connPool.Acquire(ctx, transport.Kind(args[0]), args[1])
	if err != nil {
		return err
	}
	connPool.Release(conn)
	fmt.Fprintln(cmd.OutOrStdout(), "dial ok")
	return nil
}

func poolClose(cmd *cobra.Command, _ []string) error {
	if connPool != nil {
		_ = connPool.Close()
		connPool = nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "pool closed")
	return nil
}

var poolCmd = &cobra.Command{
	Use:               "pool",
	Short:             "Manage a local transport connection pool",
	PersistentPreRunE: poolInit,
}

func init() {
	poolCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show pool statistics",
		RunE:  poolStats,
	})
	poolCmd.AddCommand(&cobra.Command{
		Use:   "dial <kind> <addr>",
		Short: "Dial an address using the pool",
		Args:  cobra.ExactArgs(2),
		RunE:  poolDial,
	})
	poolCmd.AddCommand(&cobra.Command{
		Use:   "close",
		Short: "Close the pool",
		RunE:  poolClose,
	})
}
