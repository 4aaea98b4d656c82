package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/logger"
	apperrors "logscrub/pkg/errors"
	"logscrub/pkg/models"
)

type memoryStore struct {
	records    map[string]map[string]models.ProcessedRecord
	upserts    int
	failUpsert error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]map[string]models.ProcessedRecord)}
}

func (s *memoryStore) Upsert(ctx context.Context, tenantID, logID string, record models.ProcessedRecord) error {
	if s.failUpsert != nil {
		return s.failUpsert
	}
	s.upserts++
	if s.records[tenantID] == nil {
		s.records[tenantID] = make(map[string]models.ProcessedRecord)
	}
	s.records[tenantID][logID] = record
	return nil
}

func (s *memoryStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	record, ok := s.records[tenantID][logID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &record, nil
}

type memoryMarker struct {
	seen     map[string]bool
	failSeen error
	failMark error
}

func newMemoryMarker() *memoryMarker {
	return &memoryMarker{seen: make(map[string]bool)}
}

func (m *memoryMarker) Seen(ctx context.Context, tenantID, logID string) (bool, error) {
	if m.failSeen != nil {
		return false, m.failSeen
	}
	return m.seen[tenantID+":"+logID], nil
}

func (m *memoryMarker) Mark(ctx context.Context, tenantID, logID string, ttl time.Duration) error {
	if m.failMark != nil {
		return m.failMark
	}
	m.seen[tenantID+":"+logID] = true
	return nil
}

func newTestProcessor(store Store, marker MarkerRepository) *Processor {
	p := NewProcessor(store, marker, 0, time.Hour, logger.NopLogger())
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func envelope(tenantID, logID, text string) models.Envelope {
	return models.Envelope{
		TenantID:     tenantID,
		LogID:        logID,
		OriginalText: text,
		Source:       models.SourceJSONUpload,
		ReceivedAt:   time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
	}
}

func TestProcessStoresRedactedRecord(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	p := newTestProcessor(store, marker)

	env := envelope("acme", "log_1", "email bob@example.com, ssn 123-45-6789")
	require.NoError(t, p.Process(context.Background(), env))

	record, err := store.Get(context.Background(), "acme", "log_1")
	require.NoError(t, err)
	assert.Equal(t, "email [REDACTED], ssn [REDACTED]", record.ModifiedData)
	assert.Equal(t, 2, record.RedactionCount)
	assert.Equal(t, env.OriginalText, record.OriginalText)
	assert.Equal(t, env.ReceivedAt, record.ReceivedAt)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), record.ProcessedAt)
	assert.True(t, marker.seen["acme:log_1"])
}

func TestProcessRedeliveryConvergesOnIdenticalRecord(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	marker.failSeen = errors.New("redis down")
	p := newTestProcessor(store, marker)

	env := envelope("acme", "log_1", "call me at 555-1234")

	require.NoError(t, p.Process(context.Background(), env))
	first, err := store.Get(context.Background(), "acme", "log_1")
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), env))
	second, err := store.Get(context.Background(), "acme", "log_1")
	require.NoError(t, err)

	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, *first, *second)
}

func TestProcessDuplicateShortCircuits(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	p := newTestProcessor(store, marker)

	env := envelope("acme", "log_1", "call me at 555-1234")

	require.NoError(t, p.Process(context.Background(), env))
	require.NoError(t, p.Process(context.Background(), env))

	assert.Equal(t, 1, store.upserts)
}

func TestProcessInvalidEnvelopeIsPermanent(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	p := newTestProcessor(store, marker)

	err := p.Process(context.Background(), envelope("", "log_1", "some text"))

	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
	assert.Equal(t, 0, store.upserts)
}

func TestProcessStoreFailureIsRetryable(t *testing.T) {
	store := newMemoryStore()
	store.failUpsert = errors.New("mongo unavailable")
	marker := newMemoryMarker()
	p := newTestProcessor(store, marker)

	err := p.Process(context.Background(), envelope("acme", "log_1", "some text"))

	require.Error(t, err)
	assert.False(t, apperrors.IsPermanent(err))
	assert.False(t, marker.seen["acme:log_1"])
}

func TestProcessMarkerWriteFailureStillSucceeds(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	marker.failMark = errors.New("redis down")
	p := newTestProcessor(store, marker)

	require.NoError(t, p.Process(context.Background(), envelope("acme", "log_1", "some text")))
	assert.Equal(t, 1, store.upserts)
}

func TestProcessTenantIsolation(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	p := newTestProcessor(store, marker)

	require.NoError(t, p.Process(context.Background(), envelope("acme", "log_1", "acme data")))
	require.NoError(t, p.Process(context.Background(), envelope("globex", "log_1", "globex data")))

	acme, err := store.Get(context.Background(), "acme", "log_1")
	require.NoError(t, err)
	globex, err := store.Get(context.Background(), "globex", "log_1")
	require.NoError(t, err)

	assert.Equal(t, "acme data", acme.OriginalText)
	assert.Equal(t, "globex data", globex.OriginalText)
}

func TestProcessHonorsCancellationDuringDelay(t *testing.T) {
	store := newMemoryStore()
	marker := newMemoryMarker()
	p := NewProcessor(store, marker, time.Second, time.Hour, logger.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Process(ctx, envelope("acme", "log_1", "a long enough payload"))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, store.upserts)
}
