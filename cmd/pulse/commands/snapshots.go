package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	Long: `Lists all stored snapshots, newest first, from the configured
backends (database first, local disk fallback).

Example:
  go run ./cmd/pulse snapshots`,
	RunE: runSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.service.List(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No snapshots stored")
		return nil
	}

	fmt.Printf("%-22s %-16s %s\n", "ID", "LABEL", "TIMESTAMP")
	for _, info := range infos {
		ts := ""
		if info.Timestamp > 0 {
			ts = time.UnixMilli(info.Timestamp).UTC().Format(time.RFC3339)
		}
		fmt.Printf("%-22s %-16s %s\n", info.ID, info.Label, ts)
	}
	return nil
}
