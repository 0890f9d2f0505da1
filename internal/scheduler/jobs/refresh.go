package jobs

import (
	"context"
	"fmt"

	"github.com/quantfeed/pulse/internal/market"
	"github.com/quantfeed/pulse/pkg/logger"
)

// RefreshJob runs the scheduled fetch-aggregate-persist cycle
type RefreshJob struct {
	service  *market.Service
	schedule string
	logger   *logger.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(service *market.Service, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		service:  service,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "market_refresh"
}

// Schedule returns the cron schedule expression
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run fetches the latest export views, aggregates them and persists
// the resulting snapshot
func (j *RefreshJob) Run(ctx context.Context) error {
	snap, err := j.service.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("market refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"groups":       len(snap.Data),
		"last_updated": snap.LastUpdated,
	}).Info("Scheduled refresh completed")

	return nil
}
