package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"logscrub/internal/processing"
	apperrors "logscrub/pkg/errors"
)

func TestMongoStore_UpsertAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	store := processing.NewStore(infra.MongoDB)

	record := createTestRecord("ssn 123-45-6789", "ssn [REDACTED]", 1)
	require.NoError(t, store.Upsert(ctx, "acme", "log_1", record))

	got, err := store.Get(ctx, "acme", "log_1")
	require.NoError(t, err)
	assert.Equal(t, record.ModifiedData, got.ModifiedData)
	assert.Equal(t, record.RedactionCount, got.RedactionCount)
	assert.Equal(t, record.OriginalText, got.OriginalText)
}

func TestMongoStore_UpsertIsIdempotent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	store := processing.NewStore(infra.MongoDB)

	record := createTestRecord("call 555-1234", "call [REDACTED]", 1)
	require.NoError(t, store.Upsert(ctx, "acme", "log_1", record))
	require.NoError(t, store.Upsert(ctx, "acme", "log_1", record))

	count, err := infra.MongoDB.Collection("tenants.acme.processed_logs").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMongoStore_TenantIsolation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)

	ctx := context.Background()
	store := processing.NewStore(infra.MongoDB)

	require.NoError(t, store.Upsert(ctx, "acme", "log_1", createTestRecord("acme data", "acme data", 0)))
	require.NoError(t, store.Upsert(ctx, "globex", "log_1", createTestRecord("globex data", "globex data", 0)))

	acme, err := store.Get(ctx, "acme", "log_1")
	require.NoError(t, err)
	globex, err := store.Get(ctx, "globex", "log_1")
	require.NoError(t, err)

	assert.Equal(t, "acme data", acme.OriginalText)
	assert.Equal(t, "globex data", globex.OriginalText)

	_, err = store.Get(ctx, "acme", "log_missing")
	assert.True(t, apperrors.IsNotFound(err))
}
