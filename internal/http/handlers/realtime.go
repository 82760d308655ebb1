package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/platform/apierr"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
	"github.com/yungbote/retroboard-backend/internal/realtime"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type RealtimeHandler struct {
	log          *logger.Logger
	hub          *realtime.Hub
	retroService services.RetroService
	heartbeat    time.Duration
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, retroService services.RetroService, heartbeat time.Duration) *RealtimeHandler {
	return &RealtimeHandler{
		log:          log.With("handler", "RealtimeHandler"),
		hub:          hub,
		retroService: retroService,
		heartbeat:    heartbeat,
	}
}

// GET /api/retros/:id/stream?topics=card_added,step_changed
// The stream lives as long as the request. Unknown retros are rejected
// before any subscription is made.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	topics, err := realtime.ParseTopics(c.Query("topics"))
	if err != nil {
		ae := apierr.BadRequest("invalid_topics", err)
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	if _, err := h.retroService.GetRetro(c.Request.Context(), retroID); err != nil {
		response.RespondDomainError(c, "stream_failed", err)
		return
	}

	sub := h.hub.Subscribe(c.Request.Context(), retroID, topics...)
	h.log.Debug("SSE stream opened", "retro_id", retroID, "subscription_id", sub.ID, "topics", topics)
	h.hub.ServeSSE(c.Writer, c.Request, sub, h.heartbeat)
	h.log.Debug("SSE stream closed", "retro_id", retroID, "subscription_id", sub.ID, "missed", sub.Missed())
}
