package deadletter

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"logscrub/internal/constants"
	"logscrub/internal/logger"
	"logscrub/pkg/errors"
)

// Handler exposes the archive read-only. Replay and deletion are
// operator actions outside this service.
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
	v1 := router.Group("/api/v1")
	{
		letters := v1.Group("/deadletters")
		{
			letters.GET("", h.ListDeadLetters)
			letters.GET("/:id", h.GetDeadLetter)
		}
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) ListDeadLetters(c *gin.Context) {
	filter := ListFilter{
		TenantID:    c.Query("tenant_id"),
		SourceTopic: c.Query("source_topic"),
		Reason:      c.Query("reason"),
		Limit:       parseLimit(c.Query("limit")),
		Offset:      parseOffset(c.Query("offset")),
	}

	letters, err := h.Service.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, letters)
}

func (h *Handler) GetDeadLetter(c *gin.Context) {
	id := c.Param("id")

	dl, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dl)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultListLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxListLimit {
		return constants.DefaultListLimit
	}
	return parsed
}

func parseOffset(offsetStr string) int {
	if offsetStr == "" {
		return 0
	}
	parsed, err := strconv.Atoi(offsetStr)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
