package processing

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logscrub/internal/constants"
	apperrors "logscrub/pkg/errors"
	"logscrub/pkg/metrics"
	"logscrub/pkg/models"
)

// Store persists processed records keyed by (tenant_id, log_id).
// Upsert must be idempotent under redelivery: writing the same record
// twice leaves exactly one document behind.
type Store interface {
	Upsert(ctx context.Context, tenantID, logID string, record models.ProcessedRecord) error
	Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error)
}

type MongoStore struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) Store {
	return &MongoStore{db: db}
}

// collectionFor maps a tenant to its own collection. Tenant isolation
// is structural: no query ever spans two tenants' collections.
func (s *MongoStore) collectionFor(tenantID string) *mongo.Collection {
	name := constants.TenantCollectionPrefix + tenantID + constants.TenantCollectionSuffix
	return s.db.Collection(name)
}

func (s *MongoStore) Upsert(ctx context.Context, tenantID, logID string, record models.ProcessedRecord) error {
	start := time.Now()

	filter := bson.M{"_id": logID}
	doc := bson.M{
		"_id":             logID,
		"source":          record.Source,
		"original_text":   record.OriginalText,
		"modified_data":   record.ModifiedData,
		"redaction_count": record.RedactionCount,
		"received_at":     record.ReceivedAt,
		"processed_at":    record.ProcessedAt,
	}

	_, err := s.collectionFor(tenantID).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	metrics.ObserveDatabaseQuery("worker-service", "mongodb", "upsert_processed_log", time.Since(start), err)

	if err != nil {
		return fmt.Errorf("failed to upsert processed log %s for tenant %s: %w", logID, tenantID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	start := time.Now()

	var record models.ProcessedRecord
	err := s.collectionFor(tenantID).FindOne(ctx, bson.M{"_id": logID}).Decode(&record)
	metrics.ObserveDatabaseQuery("worker-service", "mongodb", "get_processed_log", time.Since(start), err)

	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound.WithDetail("log_id", logID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get processed log %s for tenant %s: %w", logID, tenantID, err)
	}

	return &record, nil
}
