package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SourceType records which ingestion channel produced an envelope.
type SourceType string

const (
	SourceJSONUpload SourceType = "json_upload"
	SourceTextUpload SourceType = "text_upload"
)

const (
	MaxTenantIDLength = 128
	MaxLogIDLength    = 128
	MaxTextBytes      = 1 << 20 // 1 MiB

	// MaxEnvelopeWireBytes bounds the JSON encoding of a valid envelope.
	// encoding/json escapes some characters to six bytes (`<` becomes
	// `<`), so original_text alone can reach 6x MaxTextBytes on the
	// wire; the remaining fields fit in the slack.
	MaxEnvelopeWireBytes = 6*MaxTextBytes + 8<<10
)

// Envelope is the canonical message shape exchanged between the gateway,
// the broker and the worker. The gateway normalizes both ingestion
// channels into this one format; nothing downstream branches on the
// original payload shape.
type Envelope struct {
	TenantID     string     `json:"tenant_id"`
	LogID        string     `json:"log_id"`
	OriginalText string     `json:"original_text"`
	Source       SourceType `json:"source"`
	ReceivedAt   time.Time  `json:"received_at"`
}

// Validate checks the structural invariants of an envelope. Both the
// gateway (before publishing) and the worker (on receipt) call this; a
// failure at the worker is a permanent error, not a retryable one.
func (e Envelope) Validate() error {
	if err := ValidateTenantID(e.TenantID); err != nil {
		return err
	}
	if e.LogID == "" {
		return fmt.Errorf("log_id must not be empty")
	}
	if len(e.LogID) > MaxLogIDLength {
		return fmt.Errorf("log_id exceeds %d characters", MaxLogIDLength)
	}
	if strings.TrimSpace(e.OriginalText) == "" {
		return fmt.Errorf("original_text must not be empty")
	}
	if len(e.OriginalText) > MaxTextBytes {
		return fmt.Errorf("original_text exceeds %d bytes", MaxTextBytes)
	}
	if !utf8.ValidString(e.OriginalText) {
		return fmt.Errorf("original_text must be valid UTF-8")
	}
	switch e.Source {
	case SourceJSONUpload, SourceTextUpload:
	default:
		return fmt.Errorf("unknown source type: %q", e.Source)
	}
	if e.ReceivedAt.IsZero() {
		return fmt.Errorf("received_at must be set")
	}
	return nil
}

// ValidateTenantID enforces the tenant identifier charset. Tenant ids
// are lowercased at the gateway boundary, so uppercase is rejected here.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id must not be empty")
	}
	if len(tenantID) > MaxTenantIDLength {
		return fmt.Errorf("tenant_id exceeds %d characters", MaxTenantIDLength)
	}
	for _, c := range tenantID {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' && c != '-' {
			return fmt.Errorf("tenant_id must contain only lowercase alphanumeric characters, underscores, or hyphens")
		}
	}
	return nil
}

// NewLogID returns a gateway-generated log identifier with 128 bits of
// randomness, e.g. "log_1f8b4c9d2e3a4b5c6d7e8f9a0b1c2d3e".
func NewLogID() string {
	u := uuid.New()
	return "log_" + strings.ReplaceAll(u.String(), "-", "")
}
