package processing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"logscrub/internal/broker"
	"logscrub/internal/constants"
	"logscrub/internal/logger"
	"logscrub/pkg/errors"
	"logscrub/pkg/logging"
	"logscrub/pkg/metrics"
	"logscrub/pkg/models"
)

// Handler exposes push delivery: the broker POSTs envelopes here
// instead of the worker pulling them. A 2xx acknowledges the delivery,
// a 5xx asks for redelivery. Payloads that can never succeed are
// routed to the DLQ and acknowledged so the push loop stops retrying
// them.
type Handler struct {
	Processor   *Processor
	DLQProducer broker.Producer
	DLQTopic    string
	Logger      logger.Logger
}

func NewHandler(processor *Processor, dlqProducer broker.Producer, dlqTopic string, log logger.Logger) *Handler {
	return &Handler{
		Processor:   processor,
		DLQProducer: dlqProducer,
		DLQTopic:    dlqTopic,
		Logger:      log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/push", h.HandlePush)
}

func (h *Handler) HandlePush(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, models.MaxEnvelopeWireBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithCause(err).WithMessage("failed to read request body"),
		))
		return
	}

	// No valid envelope encodes past the wire bound, so an over-limit
	// body is dead-lettered outright instead of surfacing as a parse
	// error on truncated JSON.
	if len(body) > models.MaxEnvelopeWireBytes {
		h.Logger.ErrorwCtx(ctx, "Push payload exceeds wire bound, routing to DLQ",
			"body_bytes", len(body),
		)
		h.deadLetter(c, body, "", constants.DLQReasonMalformedPayload,
			fmt.Sprintf("body exceeds %d bytes", models.MaxEnvelopeWireBytes))
		return
	}

	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.Logger.ErrorwCtx(ctx, "Malformed push payload, routing to DLQ",
			"error", err,
		)
		h.deadLetter(c, body, "", constants.DLQReasonMalformedPayload, err.Error())
		return
	}

	ctx = logging.WithTenantID(ctx, env.TenantID)
	ctx = logging.WithLogID(ctx, env.LogID)

	if err := h.Processor.Process(ctx, env); err != nil {
		if errors.IsPermanent(err) {
			h.Logger.ErrorwCtx(ctx, "Permanent processing failure, routing to DLQ",
				"error", err,
			)
			h.deadLetter(c, body, env.TenantID, constants.DLQReasonPermanentFailure, err.Error())
			return
		}

		h.Logger.ErrorwCtx(ctx, "Processing failed, requesting redelivery",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "log_id": env.LogID})
}

// deadLetter forwards the raw push payload to the DLQ topic and
// acknowledges the delivery. When the DLQ write fails the delivery is
// not acknowledged, so the pusher tries again.
func (h *Handler) deadLetter(c *gin.Context, body []byte, key, reason, cause string) {
	ctx := c.Request.Context()

	if h.DLQProducer == nil || h.DLQTopic == "" {
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(
			errors.ErrInternal.WithMessage("no dead-letter topic configured"),
		))
		return
	}

	headers := map[string]string{
		constants.HeaderDLQReason:       reason,
		constants.HeaderDLQSourceTopic:  "push",
		constants.HeaderDLQError:        cause,
		constants.HeaderDLQDeadLettered: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.DLQProducer.PublishRaw(ctx, h.DLQTopic, key, body, headers); err != nil {
		h.Logger.ErrorwCtx(ctx, "Failed to publish push payload to DLQ",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(
			errors.ErrInternal.WithCause(err).WithMessage("failed to dead-letter payload"),
		))
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues("worker-service", "push", reason).Inc()
	c.JSON(http.StatusOK, gin.H{"status": "dead_lettered", "reason": reason})
}
