package processing

import (
	"context"
	"time"

	"logscrub/internal/logger"
	"logscrub/internal/redact"
	"logscrub/pkg/errors"
	"logscrub/pkg/metrics"
	"logscrub/pkg/models"
	"logscrub/pkg/tracing"
)

// Processor turns an envelope into a durable, redacted record. It is
// safe under redelivery: the store write is an idempotent upsert, and
// the processed marker only short-circuits envelopes that already have
// a durable record.
type Processor struct {
	store        Store
	marker       MarkerRepository
	delayPerChar time.Duration
	markerTTL    time.Duration
	logger       logger.Logger
	now          func() time.Time
}

func NewProcessor(store Store, marker MarkerRepository, delayPerChar time.Duration, markerTTL time.Duration, log logger.Logger) *Processor {
	return &Processor{
		store:        store,
		marker:       marker,
		delayPerChar: delayPerChar,
		markerTTL:    markerTTL,
		logger:       log,
		now:          time.Now,
	}
}

// Process handles one envelope delivery. Errors wrapping validation
// failures are permanent; everything else is retryable.
func (p *Processor) Process(ctx context.Context, env models.Envelope) error {
	ctx, span := tracing.GetTracer("worker-service").Start(ctx, "processing.process")
	defer span.End()

	start := p.now()

	if err := env.Validate(); err != nil {
		metrics.WorkerMessagesTotal.WithLabelValues("invalid").Inc()
		return errors.ErrValidation.WithCause(err).WithDetail("message", err.Error())
	}

	seen, err := p.marker.Seen(ctx, env.TenantID, env.LogID)
	if err != nil {
		// Marker loss is harmless: the store upsert below converges
		// on the same record either way.
		metrics.FallbackUsageTotal.WithLabelValues("processing", "reprocess_on_marker_error", "seen_failed").Inc()
		p.logger.WarnwCtx(ctx, "Marker lookup failed, reprocessing",
			"error", err,
		)
	} else if seen {
		metrics.DuplicateDeliveriesTotal.Inc()
		metrics.WorkerMessagesTotal.WithLabelValues("duplicate").Inc()
		p.logger.DebugwCtx(ctx, "Duplicate delivery short-circuited")
		return nil
	}

	if err := p.simulateWork(ctx, env.OriginalText); err != nil {
		return err
	}

	modified, count := redact.Redact(env.OriginalText)

	record := models.ProcessedRecord{
		Source:         env.Source,
		OriginalText:   env.OriginalText,
		ModifiedData:   modified,
		RedactionCount: count,
		ReceivedAt:     env.ReceivedAt,
		ProcessedAt:    p.now().UTC(),
	}

	if err := p.store.Upsert(ctx, env.TenantID, env.LogID, record); err != nil {
		metrics.WorkerMessagesTotal.WithLabelValues("error").Inc()
		metrics.ObserveProcessingDuration(time.Since(start), "error")
		return errors.Wrap(err, errors.ErrServiceUnavailable.WithMessage("failed to persist processed record"))
	}

	if count > 0 {
		metrics.RedactedEntitiesTotal.Add(float64(count))
	}

	// Best effort: a lost marker only costs one redundant reprocess.
	if err := p.marker.Mark(ctx, env.TenantID, env.LogID, p.markerTTL); err != nil {
		metrics.FallbackUsageTotal.WithLabelValues("processing", "skip_marker", "mark_failed").Inc()
		p.logger.WarnwCtx(ctx, "Failed to write processed marker",
			"error", err,
		)
	}

	metrics.WorkerMessagesTotal.WithLabelValues("processed").Inc()
	metrics.ObserveProcessingDuration(time.Since(start), "processed")

	p.logger.InfowCtx(ctx, "Envelope processed",
		"redaction_count", count,
		"source", env.Source,
	)

	return nil
}

// simulateWork models per-character processing cost while staying
// responsive to cancellation and the ack deadline.
func (p *Processor) simulateWork(ctx context.Context, text string) error {
	if p.delayPerChar <= 0 {
		return nil
	}

	delay := time.Duration(len(text)) * p.delayPerChar
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
