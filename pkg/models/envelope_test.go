package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() Envelope {
	return Envelope{
		TenantID:     "acme-corp_01",
		LogID:        "log_0123456789abcdef0123456789abcdef",
		OriginalText: "some log line",
		Source:       SourceJSONUpload,
		ReceivedAt:   time.Now().UTC(),
	}
}

func TestEnvelopeValidate(t *testing.T) {
	require.NoError(t, validEnvelope().Validate())
}

func TestEnvelopeValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"empty tenant", func(e *Envelope) { e.TenantID = "" }},
		{"uppercase tenant", func(e *Envelope) { e.TenantID = "Acme" }},
		{"tenant with spaces", func(e *Envelope) { e.TenantID = "acme corp" }},
		{"tenant too long", func(e *Envelope) { e.TenantID = strings.Repeat("a", MaxTenantIDLength+1) }},
		{"empty log id", func(e *Envelope) { e.LogID = "" }},
		{"log id too long", func(e *Envelope) { e.LogID = strings.Repeat("x", MaxLogIDLength+1) }},
		{"blank text", func(e *Envelope) { e.OriginalText = "   " }},
		{"oversize text", func(e *Envelope) { e.OriginalText = strings.Repeat("a", MaxTextBytes+1) }},
		{"invalid utf8", func(e *Envelope) { e.OriginalText = "abc\xff" }},
		{"unknown source", func(e *Envelope) { e.Source = "ftp_upload" }},
		{"zero received_at", func(e *Envelope) { e.ReceivedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnvelope()
			tt.mutate(&env)
			assert.Error(t, env.Validate())
		})
	}
}

func TestNewLogIDShape(t *testing.T) {
	id := NewLogID()
	assert.True(t, strings.HasPrefix(id, "log_"))
	assert.Len(t, id, 4+32)
	assert.NotEqual(t, id, NewLogID())
}
