package http

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
	"github.com/godswillmedia-source/stylesync-pwa/internal/service"
)

// WebhookHandler is the ingestion boundary for scheduling-platform SMS.
type WebhookHandler struct {
	ingest   *service.Ingestor
	pipeline *service.Pipeline
	messages *repository.MessageRepo
	creds    *repository.CredentialRepo
}

func NewWebhookHandler(ing *service.Ingestor, p *service.Pipeline, messages *repository.MessageRepo, creds *repository.CredentialRepo) *WebhookHandler {
	return &WebhookHandler{ingest: ing, pipeline: p, messages: messages, creds: creds}
}

func (h *WebhookHandler) owner(c *gin.Context) (string, bool) {
	email := c.Query("user")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user parameter"})
		return "", false
	}
	rec, err := h.creds.ByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not registered", "details": "sign up first"})
			return "", false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return "", false
	}
	return rec.OwnerID, true
}

// POST /api/sms-webhook?user=email
func (h *WebhookHandler) Receive(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	text, sender, err := LocateText(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "no message found",
			"hint":  `send JSON with a "message" field`,
		})
		return
	}

	id, dup, err := h.ingest.Ingest(c.Request.Context(), owner, text, sender)
	if err != nil {
		// store failure is the one loud fault
		log.Printf("[webhook] store failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message", "details": err.Error()})
		return
	}
	if dup {
		c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true, "message_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message_id": id,
		"status":     "queued_for_processing",
	})
}

// GET /api/sms-webhook?user=email — health/stat probe
func (h *WebhookHandler) Status(c *gin.Context) {
	email := c.Query("user")
	if email == "" {
		c.JSON(http.StatusOK, gin.H{
			"status": "active",
			"usage":  "POST SMS data with ?user=email parameter",
		})
		return
	}
	rec, err := h.creds.ByEmail(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "active", "user": email, "registered": false})
		return
	}
	total, pending, err := h.messages.Stats(c.Request.Context(), rec.OwnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "active",
		"user":   email,
		"stats": gin.H{
			"total_messages":     total,
			"pending_processing": pending,
		},
	})
}

// POST /api/sms-webhook/batch?user=email — synchronous backfill of
// historical messages (iOS shortcut exports). Each message runs the
// full pipeline inline; dedup keeps re-runs harmless.
func (h *WebhookHandler) ReceiveBatch(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var in struct {
		Messages []string `json:"messages"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || len(in.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "no messages provided",
			"hint":  `send { "messages": ["msg1", "msg2", ...] }`,
		})
		return
	}

	results := gin.H{}
	var stored, dups, failed int
	for _, raw := range in.Messages {
		id, dup, err := h.ingest.Ingest(c.Request.Context(), owner, raw, defaultSender)
		if err != nil {
			failed++
			continue
		}
		if dup {
			dups++
			continue
		}
		if err := h.pipeline.Process(c.Request.Context(), id); err != nil {
			log.Printf("[webhook] batch process %s: %v", id, err)
		}
		stored++
	}
	results["total"] = len(in.Messages)
	results["stored"] = stored
	results["already_seen"] = dups
	results["failed"] = failed
	c.JSON(http.StatusOK, gin.H{"success": true, "details": results})
}
