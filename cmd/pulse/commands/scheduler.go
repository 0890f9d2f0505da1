package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfeed/pulse/internal/scheduler"
	"github.com/quantfeed/pulse/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled refresh loop",
	Long: `Runs the cron scheduler that refreshes the snapshot on the
configured schedule (CRON_SCHEDULE, default weekdays 21:30 UTC).

Example:
  go run ./cmd/pulse scheduler
  go run ./cmd/pulse scheduler --now`,
	RunE: runScheduler,
}

var (
	runImmediately bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().BoolVar(&runImmediately, "now", false, "run the refresh job once at startup")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Scheduler ===")

	ctx := context.Background()

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	log := st.logger

	sched := scheduler.New(log)
	job := jobs.NewRefreshJob(st.service, st.cfg.Cron.Schedule, log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	if runImmediately {
		if err := sched.RunJob(job.Name()); err != nil {
			return fmt.Errorf("run refresh job: %w", err)
		}
	}

	fmt.Printf("\nScheduler running (schedule: %s)\n", st.cfg.Cron.Schedule)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	return nil
}
