package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// FileImportPurger removes stale file imports and their files.
type FileImportPurger interface {
	PurgeFileImports(ctx context.Context, before time.Time, limit int) (int, error)
}

type PurgeConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// PurgeWorker deletes file imports older than the retention window and
// processed outbox events past the same window.
type PurgeWorker struct {
	imports FileImportPurger
	outbox  repository.OutboxRepository
	config  PurgeConfig
	logger  zerolog.Logger
	now     func() time.Time
}

func NewPurgeWorker(imports FileImportPurger, outbox repository.OutboxRepository, config PurgeConfig, logger zerolog.Logger) *PurgeWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &PurgeWorker{
		imports: imports,
		outbox:  outbox,
		config:  config,
		logger:  logger.With().Str("worker", "purge").Logger(),
		now:     time.Now,
	}
}

func (w *PurgeWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info().Dur("retention", w.config.Retention).Msg("starting purge worker")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				// Log error but continue
				w.logger.Error().Err(err).Msg("purge failed")
			}
		}
	}
}

// RunOnce purges everything older than the retention window. Leftover files
// are logged and do not fail the run.
func (w *PurgeWorker) RunOnce(ctx context.Context) error {
	cutoff := w.now().Add(-w.config.Retention)

	total := 0
	for {
		n, err := w.imports.PurgeFileImports(ctx, cutoff, w.config.BatchSize)
		total += n
		if err != nil {
			if !errors.IsFileCleanup(err) {
				return fmt.Errorf("failed to purge file imports: %w", err)
			}
			w.logger.Warn().Err(err).Msg("purged file imports left files behind")
		}
		if n < w.config.BatchSize {
			break
		}
	}

	if w.outbox != nil {
		rows, err := w.outbox.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to cleanup outbox events: %w", err)
		}
		if rows > 0 {
			w.logger.Info().Int64("rows", rows).Time("before", cutoff).Msg("cleaned up processed outbox events")
		}
	}

	w.logger.Debug().Int("file_imports", total).Time("before", cutoff).Msg("purge done")
	return nil
}
