package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/secureexam/portal-backend/internal/model"
	"github.com/secureexam/portal-backend/internal/repository"
)

const (
	AuditBatchSize    = 50
	AuditBatchTimeout = 2 * time.Second
	AuditQueueSize    = 1024
)

// AuditWriter persists audit entries asynchronously. Record never blocks the
// request path: when the queue is full the entry is dropped and counted in a
// warning instead.
type AuditWriter struct {
	repo  *repository.AuditRepository
	queue chan model.AuditEntry
	log   zerolog.Logger
}

func NewAuditWriter(repo *repository.AuditRepository, log zerolog.Logger) *AuditWriter {
	return &AuditWriter{
		repo:  repo,
		queue: make(chan model.AuditEntry, AuditQueueSize),
		log:   log.With().Str("component", "audit_worker").Logger(),
	}
}

// Record enqueues an entry for persistence.
func (w *AuditWriter) Record(entry model.AuditEntry) {
	select {
	case w.queue <- entry:
	default:
		w.log.Warn().Str("action", string(entry.Action)).Msg("audit queue full, entry dropped")
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AuditWriter) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWriter started")

	batch := make([]model.AuditEntry, 0, AuditBatchSize)
	ticker := time.NewTicker(AuditBatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.drain(&batch)
			w.flushSafe(context.Background(), batch)
			return

		case entry := <-w.queue:
			batch = append(batch, entry)
			if len(batch) >= AuditBatchSize {
				w.flushSafe(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushSafe(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// drain empties whatever is still queued at shutdown into the batch.
func (w *AuditWriter) drain(batch *[]model.AuditEntry) {
	for {
		select {
		case entry := <-w.queue:
			*batch = append(*batch, entry)
		default:
			return
		}
	}
}

func (w *AuditWriter) flushSafe(ctx context.Context, batch []model.AuditEntry) {
	if len(batch) == 0 {
		return
	}
	if err := w.repo.InsertBatch(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("entries", len(batch)).Msg("audit batch insert failed")
	}
}
