package deadletter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/broker"
	"logscrub/internal/constants"
	"logscrub/internal/logger"
	apperrors "logscrub/pkg/errors"
)

type memoryRepository struct {
	letters []DeadLetter
	err     error
}

func (r *memoryRepository) Insert(ctx context.Context, dl *DeadLetter) error {
	if r.err != nil {
		return r.err
	}
	r.letters = append(r.letters, *dl)
	return nil
}

func (r *memoryRepository) List(ctx context.Context, filter ListFilter) ([]DeadLetter, error) {
	return r.letters, r.err
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*DeadLetter, error) {
	for _, dl := range r.letters {
		if dl.ID == id {
			return &dl, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func newTestService(repo *memoryRepository) Service {
	svc := NewService(repo, logger.NopLogger()).(*service)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestArchiveEnvelopePayload(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo)

	payload := `{"tenant_id":"acme","log_id":"log_1","original_text":"x","source":"json_upload"}`
	d := broker.Delivery{
		Topic: "raw_logs_dlq",
		Key:   "acme",
		Value: []byte(payload),
		Headers: map[string]string{
			constants.HeaderDLQReason:       constants.DLQReasonAttemptsExhausted,
			constants.HeaderDLQSourceTopic:  "raw_logs",
			constants.HeaderDLQAttempts:     "5",
			constants.HeaderDLQError:        "store unavailable",
			constants.HeaderDLQDeadLettered: "2025-06-01T11:59:00Z",
		},
	}

	require.NoError(t, svc.Archive(context.Background(), d))
	require.Len(t, repo.letters, 1)

	dl := repo.letters[0]
	assert.NotEmpty(t, dl.ID)
	assert.Equal(t, "acme", dl.TenantID)
	assert.Equal(t, "log_1", dl.LogID)
	assert.Equal(t, "raw_logs", dl.SourceTopic)
	assert.Equal(t, constants.DLQReasonAttemptsExhausted, dl.Reason)
	assert.Equal(t, "store unavailable", dl.Error)
	assert.Equal(t, 5, dl.Attempts)
	assert.Equal(t, payload, string(dl.Payload))
	assert.Equal(t, time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC), dl.DeadLettered)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), dl.ArchivedAt)
}

func TestArchiveMalformedPayloadKeepsBytes(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo)

	d := broker.Delivery{
		Topic: "raw_logs_dlq",
		Value: []byte("not json at all"),
		Headers: map[string]string{
			constants.HeaderDLQReason: constants.DLQReasonMalformedPayload,
		},
	}

	require.NoError(t, svc.Archive(context.Background(), d))
	require.Len(t, repo.letters, 1)

	dl := repo.letters[0]
	assert.Empty(t, dl.TenantID)
	assert.Empty(t, dl.LogID)
	assert.Equal(t, "not json at all", string(dl.Payload))
	assert.Equal(t, "raw_logs_dlq", dl.SourceTopic)
}

func TestArchiveMissingHeadersUsesDefaults(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo)

	d := broker.Delivery{
		Topic:   "raw_logs_dlq",
		Value:   []byte(`{}`),
		Headers: map[string]string{},
		Time:    time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}

	require.NoError(t, svc.Archive(context.Background(), d))
	require.Len(t, repo.letters, 1)

	dl := repo.letters[0]
	assert.Equal(t, "unknown", dl.Reason)
	assert.Equal(t, "raw_logs_dlq", dl.SourceTopic)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), dl.DeadLettered)
}

func TestArchiveRepositoryFailurePropagates(t *testing.T) {
	repo := &memoryRepository{err: assert.AnError}
	svc := newTestService(repo)

	err := svc.Archive(context.Background(), broker.Delivery{Value: []byte(`{}`)})
	require.Error(t, err)
}
