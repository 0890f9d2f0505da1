package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and exit",
	Long: `Fetches all export views from the provider, aggregates them into a
snapshot, and persists the snapshot plus the full CSV export.

Example:
  go run ./cmd/pulse fetch`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Fetch ===")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	start := time.Now()
	snap, err := st.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	fmt.Printf("\nRefresh complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  groups:       %d\n", len(snap.Data))
	fmt.Printf("  last updated: %s\n", snap.ComputedAt().Format(time.RFC3339))
	return nil
}
