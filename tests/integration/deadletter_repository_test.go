package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/deadletter"
	apperrors "logscrub/pkg/errors"
)

func createTestDeadLetter(tenantID, reason string) *deadletter.DeadLetter {
	return &deadletter.DeadLetter{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		LogID:        "log_1",
		SourceTopic:  "raw_logs",
		Reason:       reason,
		Error:        "store unavailable",
		Attempts:     5,
		Payload:      []byte(`{"tenant_id":"` + tenantID + `"}`),
		DeadLettered: time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
		ArchivedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDeadLetterRepository_InsertAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := deadletter.NewRepository(infra.PostgresDB)

	dl := createTestDeadLetter("acme", "max_attempts_exceeded")
	require.NoError(t, repo.Insert(ctx, dl))

	got, err := repo.Get(ctx, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, dl.TenantID, got.TenantID)
	assert.Equal(t, dl.Reason, got.Reason)
	assert.Equal(t, dl.Attempts, got.Attempts)
	assert.Equal(t, string(dl.Payload), string(got.Payload))
}

func TestDeadLetterRepository_GetMissing(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := deadletter.NewRepository(infra.PostgresDB)

	_, err := repo.Get(context.Background(), uuid.New().String())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeadLetterRepository_ListFilters(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := deadletter.NewRepository(infra.PostgresDB)

	require.NoError(t, repo.Insert(ctx, createTestDeadLetter("acme", "max_attempts_exceeded")))
	require.NoError(t, repo.Insert(ctx, createTestDeadLetter("acme", "malformed_payload")))
	require.NoError(t, repo.Insert(ctx, createTestDeadLetter("globex", "max_attempts_exceeded")))

	all, err := repo.List(ctx, deadletter.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	acme, err := repo.List(ctx, deadletter.ListFilter{TenantID: "acme"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	malformed, err := repo.List(ctx, deadletter.ListFilter{Reason: "malformed_payload"})
	require.NoError(t, err)
	assert.Len(t, malformed, 1)
	assert.Equal(t, "acme", malformed[0].TenantID)

	limited, err := repo.List(ctx, deadletter.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
