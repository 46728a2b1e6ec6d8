package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
	"github.com/godswillmedia-source/stylesync-pwa/internal/service"
)

type BookingHandler struct {
	pipeline *service.Pipeline
	bookings *repository.BookingRepo
}

func NewBookingHandler(p *service.Pipeline, bookings *repository.BookingRepo) *BookingHandler {
	return &BookingHandler{pipeline: p, bookings: bookings}
}

// GET /api/bookings
func (h *BookingHandler) List(c *gin.Context) {
	out, err := h.bookings.ListByOwner(c.Request.Context(), ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

// POST /api/bookings — manual quick-book
func (h *BookingHandler) Create(c *gin.Context) {
	var in struct {
		ClientName string `json:"client_name" binding:"required"`
		Service    string `json:"service" binding:"required"`
		DateTime   string `json:"date_time" binding:"required"` // RFC3339
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at, err := time.Parse(time.RFC3339, in.DateTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_time must be RFC3339"})
		return
	}
	b, err := h.pipeline.QuickBook(c.Request.Context(), ownerID(c), in.ClientName, in.Service, at)
	if err != nil {
		if errors.Is(err, service.ErrPastAppointment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "booking": b})
}

// POST /api/bookings/:id/approve
func (h *BookingHandler) Approve(c *gin.Context) {
	var in struct {
		CustomerName    string `json:"customer_name"`
		Service         string `json:"service"`
		AppointmentTime string `json:"appointment_time"` // RFC3339, optional
	}
	// an empty body is a plain approval with no edits
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	edits := service.ApproveEdits{CustomerName: in.CustomerName, Service: in.Service}
	if in.AppointmentTime != "" {
		at, err := time.Parse(time.RFC3339, in.AppointmentTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "appointment_time must be RFC3339"})
			return
		}
		edits.AppointmentTime = &at
	}

	b, err := h.pipeline.Approve(c.Request.Context(), c.Param("id"), edits)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.Is(err, service.ErrPastAppointment):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": b})
}

// POST /api/bookings/:id/reject
func (h *BookingHandler) Reject(c *gin.Context) {
	b, err := h.pipeline.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": b})
}

// DELETE /api/bookings/:id
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.pipeline.DeleteBooking(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type ClientHandler struct {
	clients *repository.ClientRepo
}

func NewClientHandler(clients *repository.ClientRepo) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// GET /api/clients
func (h *ClientHandler) List(c *gin.Context) {
	out, err := h.clients.ListByOwner(c.Request.Context(), ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": out})
}

type MessageHandler struct {
	messages *repository.MessageRepo
}

func NewMessageHandler(messages *repository.MessageRepo) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// GET /api/messages?limit=50
func (h *MessageHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	owner := ownerID(c)

	out, err := h.messages.List(c.Request.Context(), owner, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, pending, err := h.messages.Stats(c.Request.Context(), owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": out,
		"stats": gin.H{
			"total":     total,
			"pending":   pending,
			"processed": total - pending,
		},
	})
}
