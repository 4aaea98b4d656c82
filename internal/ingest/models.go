package ingest

// IngestRequest is the JSON upload body. log_id is optional; the
// gateway generates one when the client does not supply it.
type IngestRequest struct {
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id,omitempty"`
	Text     string `json:"text"`
}

type IngestResponse struct {
	Status  string `json:"status"`
	LogID   string `json:"log_id"`
	Message string `json:"message"`
}
