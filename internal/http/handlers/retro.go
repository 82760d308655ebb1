package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/http/response"
	"github.com/yungbote/retroboard-backend/internal/services"
)

type RetroHandler struct {
	retroService services.RetroService
}

func NewRetroHandler(retroService services.RetroService) *RetroHandler {
	return &RetroHandler{retroService: retroService}
}

// GET /api/retros
func (h *RetroHandler) ListRetros(c *gin.Context) {
	retros, err := h.retroService.ListRetros(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, "list_retros_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"retros": retros})
}

// POST /api/retros
// body: { "name": "Sprint 1" }
func (h *RetroHandler) CreateRetro(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !bindJSON(c, &req) {
		return
	}
	retro, err := h.retroService.CreateRetro(c.Request.Context(), caller, req.Name)
	if err != nil {
		response.RespondDomainError(c, "create_retro_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"retro": retro})
}

// GET /api/retros/:id
func (h *RetroHandler) GetRetro(c *gin.Context) {
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	retro, err := h.retroService.GetRetro(c.Request.Context(), retroID)
	if err != nil {
		response.RespondDomainError(c, "get_retro_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"retro": retro})
}

// POST /api/retros/:id/enter
func (h *RetroHandler) EnterRetro(c *gin.Context) {
	h.participation(c, h.retroService.EnterRetro, "enter_retro_failed")
}

// POST /api/retros/:id/leave
func (h *RetroHandler) LeaveRetro(c *gin.Context) {
	h.participation(c, h.retroService.LeaveRetro, "leave_retro_failed")
}

func (h *RetroHandler) participation(c *gin.Context, fn func(ctx context.Context, retroID, userID uuid.UUID) (*domain.Retro, error), code string) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	retro, err := fn(c.Request.Context(), retroID, caller)
	if err != nil {
		response.RespondDomainError(c, code, err)
		return
	}
	response.RespondOK(c, gin.H{"retro": retro})
}

// POST /api/retros/:id/cards
// body: { "lane_id": "...", "text": "...", "parent_card_id": "..." }
func (h *RetroHandler) AddCard(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	var req struct {
		LaneID       uuid.UUID  `json:"lane_id"`
		Text         string     `json:"text"`
		ParentCardID *uuid.UUID `json:"parent_card_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.retroService.AddCard(c.Request.Context(), services.AddCardInput{
		RetroID:      retroID,
		LaneID:       req.LaneID,
		AuthorID:     caller,
		Text:         req.Text,
		ParentCardID: req.ParentCardID,
	})
	if err != nil {
		response.RespondDomainError(c, "add_card_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"card": card})
}

// PATCH /api/retros/:id/cards/:cardId
// body: { "text": "..." }
func (h *RetroHandler) EditCard(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "cardId", "invalid_card_id")
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.retroService.EditCard(c.Request.Context(), retroID, cardID, caller, req.Text)
	if err != nil {
		response.RespondDomainError(c, "edit_card_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"card": card})
}

// POST /api/retros/:id/cards/:cardId/vote
// body: { "vote": true }
func (h *RetroHandler) VoteCard(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	cardID, ok := pathUUID(c, "cardId", "invalid_card_id")
	if !ok {
		return
	}
	var req struct {
		Vote *bool `json:"vote" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	card, err := h.retroService.VoteCard(c.Request.Context(), retroID, cardID, caller, *req.Vote)
	if err != nil {
		response.RespondDomainError(c, "vote_card_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"card": card})
}

// PUT /api/retros/:id/step
// body: { "step": "Voting" }
func (h *RetroHandler) UpdateStep(c *gin.Context) {
	retroID, ok := pathUUID(c, "id", "invalid_retro_id")
	if !ok {
		return
	}
	var req struct {
		Step string `json:"step"`
	}
	if !bindJSON(c, &req) {
		return
	}
	step, err := domain.ParseStep(req.Step)
	if err != nil {
		response.RespondDomainError(c, "invalid_step", err)
		return
	}
	retro, err := h.retroService.UpdateStep(c.Request.Context(), retroID, step)
	if err != nil {
		response.RespondDomainError(c, "update_step_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"retro": retro})
}
