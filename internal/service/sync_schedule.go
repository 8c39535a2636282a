package service

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// NewSyncScheduler registers RunAll on the cron schedule. The caller starts and stops the
// returned scheduler. An empty schedule yields nil.
func NewSyncScheduler(ctx context.Context, svc SyncService, schedule string, logger zerolog.Logger) (*cron.Cron, error) {
	if schedule == "" || svc == nil {
		return nil, nil
	}

	log := logger.With().Str("component", "sync_scheduler").Logger()
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		log.Info().Msg("running scheduled directory sync")
		svc.RunAll(ctx)
	}); err != nil {
		return nil, err
	}

	log.Info().Str("schedule", schedule).Msg("directory sync scheduled")
	return scheduler, nil
}
