package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay stored snapshots into the history table",
	Long: `Reads every snapshot from local disk and records its group
aggregates in the database history table. Requires DATABASE_URL.

Example:
  go run ./cmd/pulse backfill`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Backfill ===")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.warehouse == nil {
		return fmt.Errorf("backfill requires DATABASE_URL to be set")
	}

	infos, err := st.local.List(ctx)
	if err != nil {
		return fmt.Errorf("list local snapshots: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No local snapshots to backfill")
		return nil
	}

	// Oldest first so the newest snapshot ends up marked current
	recorded := 0
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]

		snap, err := st.local.Read(ctx, info.ID)
		if err != nil {
			st.logger.WithError(err).WithField("id", info.ID).Warn("Skipping unreadable snapshot")
			continue
		}

		if err := st.warehouse.Record(ctx, info.ID, snap); err != nil {
			return fmt.Errorf("record snapshot %s: %w", info.ID, err)
		}
		recorded++
	}

	fmt.Printf("\nBackfilled %d of %d snapshots\n", recorded, len(infos))
	return nil
}
