package integration

import (
	"time"

	"logscrub/internal/logger"
	"logscrub/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestEnvelope(tenantID, logID, text string) models.Envelope {
	return models.Envelope{
		TenantID:     tenantID,
		LogID:        logID,
		OriginalText: text,
		Source:       models.SourceJSONUpload,
		ReceivedAt:   time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
	}
}

func createTestRecord(text, modified string, count int) models.ProcessedRecord {
	return models.ProcessedRecord{
		Source:         models.SourceJSONUpload,
		OriginalText:   text,
		ModifiedData:   modified,
		RedactionCount: count,
		ReceivedAt:     time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC),
		ProcessedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}
