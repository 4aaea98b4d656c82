package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/logger"
	apperrors "logscrub/pkg/errors"
	"logscrub/pkg/models"
)

type fakeProducer struct {
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	topic string
	env   models.Envelope
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, env models.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{topic: topic, env: env})
	return nil
}

func (p *fakeProducer) PublishRaw(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error {
	return p.err
}

func (p *fakeProducer) Close() error { return nil }

func newTestService(producer *fakeProducer) *service {
	return &service{
		producer: producer,
		topic:    "raw_logs",
		logger:   logger.NopLogger(),
		now:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestIngestJSONPublishesCanonicalEnvelope(t *testing.T) {
	producer := &fakeProducer{}
	svc := newTestService(producer)

	resp, err := svc.IngestJSON(context.Background(), IngestRequest{
		TenantID: "Acme-Corp",
		Text:     "call 555-1234",
	})

	require.NoError(t, err)
	require.Len(t, producer.published, 1)

	env := producer.published[0].env
	assert.Equal(t, "acme-corp", env.TenantID)
	assert.Equal(t, "call 555-1234", env.OriginalText)
	assert.Equal(t, models.SourceJSONUpload, env.Source)
	assert.True(t, strings.HasPrefix(env.LogID, "log_"))
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), env.ReceivedAt)
	assert.Equal(t, "raw_logs", producer.published[0].topic)

	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, env.LogID, resp.LogID)
}

func TestIngestJSONKeepsClientLogID(t *testing.T) {
	producer := &fakeProducer{}
	svc := newTestService(producer)

	resp, err := svc.IngestJSON(context.Background(), IngestRequest{
		TenantID: "acme",
		LogID:    "log_client_chosen_id",
		Text:     "nothing sensitive",
	})

	require.NoError(t, err)
	assert.Equal(t, "log_client_chosen_id", resp.LogID)
	assert.Equal(t, "log_client_chosen_id", producer.published[0].env.LogID)
}

func TestIngestJSONRejectsInvalidTenant(t *testing.T) {
	producer := &fakeProducer{}
	svc := newTestService(producer)

	_, err := svc.IngestJSON(context.Background(), IngestRequest{
		TenantID: "bad tenant!",
		Text:     "some text",
	})

	require.Error(t, err)
	assert.Equal(t, 422, apperrors.ToHTTPStatus(err))
	assert.Empty(t, producer.published)
}

func TestIngestJSONRejectsEmptyText(t *testing.T) {
	producer := &fakeProducer{}
	svc := newTestService(producer)

	_, err := svc.IngestJSON(context.Background(), IngestRequest{
		TenantID: "acme",
		Text:     "   ",
	})

	require.Error(t, err)
	assert.Equal(t, 422, apperrors.ToHTTPStatus(err))
	assert.Empty(t, producer.published)
}

func TestIngestTextGeneratesLogID(t *testing.T) {
	producer := &fakeProducer{}
	svc := newTestService(producer)

	resp, err := svc.IngestText(context.Background(), "ACME", "ssn 123-45-6789")

	require.NoError(t, err)
	require.Len(t, producer.published, 1)

	env := producer.published[0].env
	assert.Equal(t, "acme", env.TenantID)
	assert.Equal(t, models.SourceTextUpload, env.Source)
	assert.True(t, strings.HasPrefix(env.LogID, "log_"))
	assert.Equal(t, env.LogID, resp.LogID)
}

func TestIngestPublishFailureIsInternal(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	svc := newTestService(producer)

	_, err := svc.IngestJSON(context.Background(), IngestRequest{
		TenantID: "acme",
		Text:     "some text",
	})

	require.Error(t, err)
	assert.Equal(t, 500, apperrors.ToHTTPStatus(err))
}
