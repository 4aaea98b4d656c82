package models

import "time"

// ProcessedRecord is the persisted artifact, keyed by (tenant_id, log_id)
// in the tenant store. All fields except ProcessedAt are derived
// deterministically from the envelope, which is what makes redelivered
// envelopes converge on identical stored bytes.
type ProcessedRecord struct {
	Source         SourceType `json:"source" bson:"source"`
	OriginalText   string     `json:"original_text" bson:"original_text"`
	ModifiedData   string     `json:"modified_data" bson:"modified_data"`
	RedactionCount int        `json:"redaction_count" bson:"redaction_count"`
	ReceivedAt     time.Time  `json:"received_at" bson:"received_at"`
	ProcessedAt    time.Time  `json:"processed_at" bson:"processed_at"`
}
