package ingest

import (
	"context"
	"strings"
	"time"

	"logscrub/internal/broker"
	"logscrub/internal/constants"
	"logscrub/internal/logger"
	"logscrub/pkg/errors"
	"logscrub/pkg/metrics"
	"logscrub/pkg/models"
)

// Service normalizes both upload channels into canonical envelopes and
// hands them to the broker. Clients get a 202 once the envelope is
// accepted by the broker, not once it is processed.
type Service interface {
	IngestJSON(ctx context.Context, req IngestRequest) (*IngestResponse, error)
	IngestText(ctx context.Context, tenantID string, text string) (*IngestResponse, error)
}

type service struct {
	producer broker.Producer
	topic    string
	logger   logger.Logger
	now      func() time.Time
}

func NewService(producer broker.Producer, topic string, log logger.Logger) Service {
	return &service{
		producer: producer,
		topic:    topic,
		logger:   log,
		now:      time.Now,
	}
}

func (s *service) IngestJSON(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	env := models.Envelope{
		TenantID:     strings.ToLower(strings.TrimSpace(req.TenantID)),
		LogID:        strings.TrimSpace(req.LogID),
		OriginalText: req.Text,
		Source:       models.SourceJSONUpload,
	}
	return s.ingest(ctx, env)
}

func (s *service) IngestText(ctx context.Context, tenantID string, text string) (*IngestResponse, error) {
	env := models.Envelope{
		TenantID:     strings.ToLower(strings.TrimSpace(tenantID)),
		OriginalText: text,
		Source:       models.SourceTextUpload,
	}
	return s.ingest(ctx, env)
}

func (s *service) ingest(ctx context.Context, env models.Envelope) (*IngestResponse, error) {
	if env.LogID == "" {
		env.LogID = models.NewLogID()
	}
	env.ReceivedAt = s.now().UTC()

	if err := env.Validate(); err != nil {
		metrics.IngestRequestsTotal.WithLabelValues(string(env.Source), "rejected").Inc()
		return nil, errors.ErrUnprocessable.WithCause(err).WithDetail("message", err.Error())
	}

	start := s.now()
	err := s.producer.Publish(ctx, s.topic, env)
	metrics.ObservePublishDuration(time.Since(start), publishStatus(err))

	if err != nil {
		metrics.IngestRequestsTotal.WithLabelValues(string(env.Source), "error").Inc()
		s.logger.ErrorwCtx(ctx, "Failed to publish envelope",
			"error", err,
			"tenant_id", env.TenantID,
			"log_id", env.LogID,
			"topic", s.topic,
		)
		return nil, errors.ErrInternal.WithCause(err).WithMessage("failed to queue log for processing")
	}

	metrics.IngestRequestsTotal.WithLabelValues(string(env.Source), "accepted").Inc()
	s.logger.InfowCtx(ctx, "Envelope accepted",
		"tenant_id", env.TenantID,
		"log_id", env.LogID,
		"source", env.Source,
		"topic", s.topic,
	)

	return &IngestResponse{
		Status:  constants.StatusAccepted,
		LogID:   env.LogID,
		Message: "log queued for processing",
	}, nil
}

func publishStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
