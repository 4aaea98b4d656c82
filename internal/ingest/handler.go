package ingest

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"logscrub/internal/logger"
	"logscrub/pkg/errors"
	"logscrub/pkg/models"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/ingest", h.IngestLog)
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// IngestLog accepts both upload channels on one route. JSON bodies
// carry tenant_id and text inline; plain-text bodies identify the
// tenant through the X-Tenant-ID header. Malformed payloads get a 400,
// payloads that parse but violate the data contract get a 422.
func (h *Handler) IngestLog(c *gin.Context) {
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		h.ingestJSON(c)
	case strings.HasPrefix(contentType, "text/plain"):
		h.ingestText(c)
	default:
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("unsupported content type: expected application/json or text/plain"),
		))
	}
}

func (h *Handler) ingestJSON(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithCause(err).WithMessage("malformed JSON body"),
		))
		return
	}

	resp, err := h.Service.IngestJSON(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) ingestText(c *gin.Context) {
	tenantID := c.GetHeader("X-Tenant-ID")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("X-Tenant-ID header is required for text uploads"),
		))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, models.MaxTextBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithCause(err).WithMessage("failed to read request body"),
		))
		return
	}

	resp, err := h.Service.IngestText(c.Request.Context(), tenantID, string(body))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}
