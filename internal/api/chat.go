package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"concierge-gateway/internal/chat"
	"concierge-gateway/internal/session"
	"concierge-gateway/pkg/models"
)

type ChatHandler struct {
	Engine *chat.Engine
}

func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{Engine: engine}
}

type openRequest struct {
	SessionID string              `json:"session_id"`
	Page      *models.PageContext `json:"page"`
}

type messageRequest struct {
	SessionID string              `json:"session_id"`
	Text      string              `json:"text"`
	Page      *models.PageContext `json:"page"`
}

type formRequest struct {
	SessionID string                  `json:"session_id"`
	FormID    string                  `json:"form_id"`
	Values    models.TriageFormValues `json:"values"`
	Page      *models.PageContext     `json:"page"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// Open runs the bootstrap exchange. An empty session_id creates a session; the
// widget stores the returned id.
func (h *ChatHandler) Open(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
		return
	}

	result, err := h.Engine.Open(c.Request.Context(), req.SessionID, req.Page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'text' é obrigatório"})
		return
	}

	result, err := h.Engine.SendText(c.Request.Context(), req.SessionID, req.Text, req.Page)
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) SubmitForm(c *gin.Context) {
	var req formRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
		return
	}

	result, err := h.Engine.SubmitForm(c.Request.Context(), req.SessionID, req.FormID, req.Values, req.Page)
	if err != nil {
		h.renderEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reset wipes the conversation and returns the replacement session id. The
// confirmation prompt lives in the widget.
func (h *ChatHandler) Reset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'session_id' é obrigatório"})
		return
	}

	newID, err := h.Engine.Reset(c.Request.Context(), req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": newID})
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'session_id' é obrigatório"})
		return
	}

	history, activeForm, err := h.Engine.History(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sessão não encontrada"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if history == nil {
		history = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": history, "ui": activeForm})
}

func (h *ChatHandler) renderEngineError(c *gin.Context, err error) {
	var missing *chat.ErrMissingFields
	switch {
	case errors.Is(err, chat.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Aguarde a resposta anterior"})
	case errors.Is(err, chat.ErrNoActiveForm):
		c.JSON(http.StatusConflict, gin.H{"error": "Nenhum formulário ativo"})
	case errors.As(err, &missing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Preencha os campos obrigatórios", "fields": missing.Fields})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
