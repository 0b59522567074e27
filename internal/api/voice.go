package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"concierge-gateway/internal/voice"
)

type VoiceHandler struct {
	Adapter *voice.Adapter
}

func NewVoiceHandler(adapter *voice.Adapter) *VoiceHandler {
	return &VoiceHandler{Adapter: adapter}
}

// Transcribe accepts one recorded utterance (multipart field "audio") plus the
// current composer text and returns the composer with the transcript appended.
func (h *VoiceHandler) Transcribe(c *gin.Context) {
	composer := c.PostForm("composer")

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'audio' é obrigatório"})
		return
	}
	defer file.Close()

	text, err := h.Adapter.Listen(c.Request.Context(), composer, file, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrUnavailable):
			c.JSON(http.StatusNotImplemented, gin.H{"error": "Seu navegador não suporta reconhecimento de voz."})
		case errors.Is(err, voice.ErrListening):
			c.JSON(http.StatusConflict, gin.H{"error": "Já estou ouvindo"})
		default:
			log.Printf("Transcription error: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Não consegui transcrever o áudio"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}
