package deadletter

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"logscrub/internal/broker"
	"logscrub/internal/constants"
	"logscrub/internal/logger"
	"logscrub/pkg/metrics"
)

type Service interface {
	Archive(ctx context.Context, d broker.Delivery) error
	List(ctx context.Context, filter ListFilter) ([]DeadLetter, error)
	Get(ctx context.Context, id string) (*DeadLetter, error)
}

type service struct {
	repo   Repository
	logger logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, log logger.Logger) Service {
	return &service{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
}

// Archive persists a dead-lettered delivery for inspection. The
// payload is stored untouched; tenant and log ids are extracted only
// when the payload happens to parse as an envelope.
func (s *service) Archive(ctx context.Context, d broker.Delivery) error {
	dl := &DeadLetter{
		ID:           uuid.New().String(),
		SourceTopic:  d.Headers[constants.HeaderDLQSourceTopic],
		Reason:       d.Headers[constants.HeaderDLQReason],
		Error:        d.Headers[constants.HeaderDLQError],
		Payload:      d.Value,
		DeadLettered: parseDeadLetteredAt(d),
		ArchivedAt:   s.now().UTC(),
	}

	if attempts, err := strconv.Atoi(d.Headers[constants.HeaderDLQAttempts]); err == nil {
		dl.Attempts = attempts
	}
	if dl.SourceTopic == "" {
		dl.SourceTopic = d.Topic
	}
	if dl.Reason == "" {
		dl.Reason = "unknown"
	}

	dl.TenantID, dl.LogID = extractIdentity(d.Value)

	if err := s.repo.Insert(ctx, dl); err != nil {
		metrics.DeadLettersArchivedTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.DeadLettersArchivedTotal.WithLabelValues("archived").Inc()
	s.logger.InfowCtx(ctx, "Dead letter archived",
		"id", dl.ID,
		"tenant_id", dl.TenantID,
		"log_id", dl.LogID,
		"source_topic", dl.SourceTopic,
		"reason", dl.Reason,
	)

	return nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]DeadLetter, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Get(ctx context.Context, id string) (*DeadLetter, error) {
	return s.repo.Get(ctx, id)
}

func parseDeadLetteredAt(d broker.Delivery) time.Time {
	if raw := d.Headers[constants.HeaderDLQDeadLettered]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	if !d.Time.IsZero() {
		return d.Time.UTC()
	}
	return time.Now().UTC()
}

// extractIdentity pulls tenant and log ids out of payloads that parse
// as envelopes. Malformed payloads simply archive without identity.
func extractIdentity(payload []byte) (string, string) {
	var partial struct {
		TenantID string `json:"tenant_id"`
		LogID    string `json:"log_id"`
	}
	if err := json.Unmarshal(payload, &partial); err != nil {
		return "", ""
	}
	return partial.TenantID, partial.LogID
}
