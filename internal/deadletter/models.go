package deadletter

import "time"

// DeadLetter is an archived copy of a message the pipeline gave up on.
// Payload holds the original message bytes untouched; TenantID and
// LogID are best-effort extractions and may be empty when the payload
// never parsed.
type DeadLetter struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id,omitempty"`
	LogID        string    `json:"log_id,omitempty"`
	SourceTopic  string    `json:"source_topic"`
	Reason       string    `json:"reason"`
	Error        string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
	Payload      []byte    `json:"payload"`
	DeadLettered time.Time `json:"dead_lettered_at"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// ListFilter narrows the archive listing. Zero values mean no filter.
type ListFilter struct {
	TenantID    string
	SourceTopic string
	Reason      string
	Limit       int
	Offset      int
}
