package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logscrub/internal/logger"
)

func newTestRouter(producer *fakeProducer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	svc := newTestService(producer)
	handler := NewHandler(svc, logger.NopLogger())
	handler.RegisterRoutes(router)

	return router
}

func TestIngestLogJSONAccepted(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	body := `{"tenant_id":"acme","text":"email bob@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.True(t, strings.HasPrefix(resp.LogID, "log_"))
	assert.Len(t, producer.published, 1)
}

func TestIngestLogMalformedJSONIsBadRequest(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"tenant_id": "acme",`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, producer.published)
}

func TestIngestLogInvalidFieldsAreUnprocessable(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	body := `{"tenant_id":"","text":"some text"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, producer.published)
}

func TestIngestLogTextAccepted(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("ssn is 123-45-6789"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Tenant-ID", "acme")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "ssn is 123-45-6789", producer.published[0].env.OriginalText)
}

func TestIngestLogTextWithoutTenantHeader(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("some text"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, producer.published)
}

func TestIngestLogUnsupportedContentType(t *testing.T) {
	producer := &fakeProducer{}
	router := newTestRouter(producer)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("<log/>"))
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, producer.published)
}
