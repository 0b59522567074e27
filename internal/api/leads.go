package api

import (
	"encoding/json"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"concierge-gateway/internal/automation"
	"concierge-gateway/internal/database"
	"concierge-gateway/internal/models"
)

var nonDigits = regexp.MustCompile(`\D`)

type LeadHandler struct {
	Client *automation.Client
	DB     *gorm.DB
}

func NewLeadHandler(client *automation.Client, db *gorm.DB) *LeadHandler {
	return &LeadHandler{Client: client, DB: db}
}

// SubmitLead validates and relays a lead-form submission to the automation
// webhook. Validation failures never reach upstream; upstream failures come
// back as 502 with details; a 2xx upstream body is relayed verbatim.
func (h *LeadHandler) SubmitLead(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON inválido"})
		return
	}

	nome := ""
	if v, ok := body["nome"].(string); ok {
		nome = strings.TrimSpace(v)
	}
	telefone := ""
	if v, ok := body["telefone_whatsapp"].(string); ok {
		telefone = nonDigits.ReplaceAllString(v, "")
	}

	if nome == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'nome' é obrigatório"})
		return
	}
	// telefone_whatsapp esperado: DDD + número (10 ou 11 dígitos), sem 55
	if len(telefone) != 10 && len(telefone) != 11 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campo 'telefone_whatsapp' inválido (use DDD + número, somente dígitos)"})
		return
	}

	body["nome"] = nome
	body["telefone_whatsapp"] = telefone

	lead := &models.Lead{Nome: nome, TelefoneWhatsapp: telefone}
	if raw, err := json.Marshal(body); err == nil {
		lead.Payload = string(raw)
	}

	relay, err := h.Client.ForwardLead(c.Request.Context(), body)
	if err != nil {
		log.Printf("Lead webhook network error: %v", err)
		lead.Status = "failed"
		database.SaveLead(h.DB, lead)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Erro de rede ao contatar automação", "details": err.Error()})
		return
	}

	if relay.StatusCode < 200 || relay.StatusCode >= 300 {
		lead.Status = "failed"
		database.SaveLead(h.DB, lead)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Falha ao enviar para automação",
			"status":  relay.StatusCode,
			"details": string(relay.Body),
		})
		return
	}

	lead.Status = "forwarded"
	database.SaveLead(h.DB, lead)

	contentType := relay.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	respBody := relay.Body
	if len(respBody) == 0 {
		respBody = []byte("ok")
	}
	c.Data(http.StatusOK, contentType, respBody)
}
