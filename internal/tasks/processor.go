package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"imagehub/internal/models"
	"imagehub/internal/queue"
	"imagehub/internal/service"
)

// backfillBatch bounds how many images one backfill task queues.
const backfillBatch = 200

type Previews interface {
	RegeneratePreviews(ctx context.Context, id string) (models.Image, error)
	MissingPreviews(ctx context.Context, limit int) ([]models.Image, error)
}

type Purger interface {
	PurgeExpired(ctx context.Context) (int64, int64, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// Processor executes queued tasks on the worker.
type Processor struct {
	previews Previews
	purger   Purger
	enqueuer Enqueuer
	logger   zerolog.Logger
}

func NewProcessor(previews Previews, purger Purger, enqueuer Enqueuer, logger zerolog.Logger) *Processor {
	return &Processor{
		previews: previews,
		purger:   purger,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Kind {
	case queue.KindPreview:
		return p.handlePreview(ctx, task)
	case queue.KindBackfill:
		return p.handleBackfill(ctx)
	case queue.KindCleanup:
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("kind", string(task.Kind)).Msg("unknown task kind")
		return nil
	}
}

// handlePreview reports only transient failures; a vanished image or an
// undecodable original will not get better on retry.
func (p *Processor) handlePreview(ctx context.Context, task queue.Task) error {
	image, err := p.previews.RegeneratePreviews(ctx, task.ImageID)
	switch {
	case errors.Is(err, service.ErrNotFound):
		p.logger.Info().Str("image_id", task.ImageID).Msg("image gone, skipping previews")
		return nil
	case service.IsValidation(err):
		p.logger.Warn().Err(err).Str("image_id", task.ImageID).Msg("previews cannot be rendered")
		return nil
	case err != nil:
		return fmt.Errorf("regenerate previews for %s: %w", task.ImageID, err)
	}
	p.logger.Info().Str("image_id", image.ID).Msg("previews regenerated")
	return nil
}

func (p *Processor) handleBackfill(ctx context.Context) error {
	images, err := p.previews.MissingPreviews(ctx, backfillBatch)
	if err != nil {
		return fmt.Errorf("list images missing previews: %w", err)
	}
	queued := 0
	for _, image := range images {
		if _, err := p.enqueuer.Enqueue(ctx, queue.Task{Kind: queue.KindPreview, ImageID: image.ID}); err != nil {
			return fmt.Errorf("enqueue preview for %s: %w", image.ID, err)
		}
		queued++
	}
	p.logger.Info().Int("queued", queued).Msg("preview backfill queued")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	sessions, tokens, err := p.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired credentials: %w", err)
	}
	p.logger.Info().Int64("sessions", sessions).Int64("reset_tokens", tokens).Msg("expired credentials purged")
	return nil
}
