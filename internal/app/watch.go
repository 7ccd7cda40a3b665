package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Watch runs Sync immediately and then every interval until ctx is done.
// The config is re-read on every run. A failed run is logged and the next
// one still happens; runs never overlap.
func (s Service) Watch(ctx context.Context, req WatchRequest) error {
	if req.Interval <= 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("watch interval must be positive, got %s", req.Interval))
	}
	if _, err := s.LoadConfig(ctx, req.ConfigPath); err != nil {
		return err
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create scheduler").
			WithCause(err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(req.Interval),
		gocron.NewTask(func() { s.scheduledSync(ctx, req) }),
		gocron.WithName("sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to schedule sync").
			WithCause(err)
	}
	log.Ctx(ctx).Info().Dur("interval", req.Interval).Str("config", req.ConfigPath).Msg("watching")
	scheduler.Start()

	<-ctx.Done()
	log.Ctx(ctx).Info().Msg("stopping watch")
	if err := scheduler.Shutdown(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to stop scheduler").
			WithCause(err)
	}
	return nil
}

func (s Service) scheduledSync(ctx context.Context, req WatchRequest) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	result, err := s.Sync(ctx, SyncRequest{ConfigPath: req.ConfigPath})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Dur("took", time.Since(started)).Msg("scheduled sync failed")
	} else {
		log.Ctx(ctx).Debug().Dur("took", time.Since(started)).Msg("scheduled sync done")
	}
	if req.AfterRun != nil {
		req.AfterRun(result, err)
	}
}
