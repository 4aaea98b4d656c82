package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"logscrub/internal/processing"
)

func TestProcessor_EndToEnd(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, true)

	ctx := context.Background()
	store := processing.NewStore(infra.MongoDB)
	marker := processing.NewMarkerRepository(infra.RedisClient)
	processor := processing.NewProcessor(store, marker, 0, time.Hour, createTestLogger())

	env := createTestEnvelope("acme", "log_e2e", "reach me at bob@example.com or 555-0100")
	require.NoError(t, processor.Process(ctx, env))

	record, err := store.Get(ctx, "acme", "log_e2e")
	require.NoError(t, err)
	assert.Equal(t, "reach me at [REDACTED] or [REDACTED]", record.ModifiedData)
	assert.Equal(t, 2, record.RedactionCount)

	seen, err := marker.Seen(ctx, "acme", "log_e2e")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProcessor_RedeliveryLeavesOneDocument(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, true)

	ctx := context.Background()
	store := processing.NewStore(infra.MongoDB)
	marker := processing.NewMarkerRepository(infra.RedisClient)
	processor := processing.NewProcessor(store, marker, 0, time.Hour, createTestLogger())

	env := createTestEnvelope("acme", "log_dup", "ssn 123-45-6789")
	require.NoError(t, processor.Process(ctx, env))
	require.NoError(t, processor.Process(ctx, env))
	require.NoError(t, processor.Process(ctx, env))

	count, err := infra.MongoDB.Collection("tenants.acme.processed_logs").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
