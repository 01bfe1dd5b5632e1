package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"magazyn/internal/api/middleware"
	"magazyn/internal/models"
)

type MessageHandler struct {
	db *gorm.DB
}

func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{db: db}
}

type SendMessageRequest struct {
	Content        string `json:"content"`
	Attachment     string `json:"attachment"`
	AttachmentType string `json:"attachment_type"`
}

// Send posts a chat message from the authenticated user. Either text
// content or an attachment must be present.
func (h *MessageHandler) Send(c echo.Context) error {
	user := middleware.GetUser(c)

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nieprawidłowe dane"})
	}
	if strings.TrimSpace(req.Content) == "" && req.Attachment == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Wiadomość nie może być pusta"})
	}

	message := models.Message{
		SenderID:       user.UserID,
		SenderName:     user.Name,
		Content:        req.Content,
		Attachment:     req.Attachment,
		AttachmentType: req.AttachmentType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.db.Create(&message).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	return c.JSON(http.StatusCreated, message)
}

// List returns up to limit messages ending before the given timestamp,
// oldest first (the query walks newest-first, the page is reversed for
// display).
func (h *MessageHandler) List(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	query := h.db.Model(&models.Message{})
	if before := c.QueryParam("before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			query = query.Where("created_at < ?", t)
		}
	}

	var messages []models.Message
	if err := query.Order("created_at desc").Limit(limit).Find(&messages).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Błąd serwera"})
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return c.JSON(http.StatusOK, messages)
}
