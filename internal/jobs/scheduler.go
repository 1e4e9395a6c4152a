package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"imagehub/internal/config"
	"imagehub/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// Scheduler puts periodic maintenance tasks on the worker queue.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	specs config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(enqueuer Enqueuer, specs config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: enqueuer,
		specs: specs,
		log:   log,
	}
}

// Start registers the jobs and runs the cron loop. An empty spec disables
// that job.
func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	jobs := []struct {
		spec string
		kind queue.Kind
	}{
		{s.specs.BackfillSpec, queue.KindBackfill},
		{s.specs.CleanupSpec, queue.KindCleanup},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		kind := job.kind
		if _, err := s.cron.AddFunc(job.spec, func() { s.enqueue(kind) }); err != nil {
			return fmt.Errorf("schedule %s job %q: %w", kind, job.spec, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueue(kind queue.Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := s.queue.Enqueue(ctx, queue.Task{Kind: kind})
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("enqueue scheduled task failed")
		return
	}
	s.log.Debug().Str("kind", string(kind)).Str("message_id", id).Msg("scheduled task queued")
}
