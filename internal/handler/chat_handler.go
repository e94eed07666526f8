package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"livechat-app/internal/models"
	"livechat-app/internal/services"
)

// ChatHandler serves the unauthenticated widget-facing API. Everything
// here is scoped by shop + customer pseudo-identity.
type ChatHandler struct {
	chat    *services.ChatService
	widgets *services.WidgetService
	uploads *services.UploadService
}

func NewChatHandler(chat *services.ChatService, widgets *services.WidgetService, uploads *services.UploadService) *ChatHandler {
	return &ChatHandler{chat: chat, widgets: widgets, uploads: uploads}
}

func (h *ChatHandler) GetWidgetConfig(c *gin.Context) {
	shop := c.Query("shop")
	if shop == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop is required"})
		return
	}

	cfg, err := h.widgets.ResolveConfig(c.Request.Context(), shop)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load widget config"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type customerMessageRequest struct {
	Shop           string `json:"shop" binding:"required"`
	CustomerID     string `json:"customerId" binding:"required"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content" binding:"required"`
	Type           string `json:"type"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
}

// SendMessage is the HTTP fallback path for widgets without a realtime
// connection.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req customerMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	msgType := models.MessageType(req.Type)
	if msgType != models.MessageFile {
		msgType = models.MessageText
	}

	msg := &models.ChatMessage{
		Shop:       req.Shop,
		CustomerID: req.CustomerID,
		Type:       msgType,
		Content:    req.Content,
		FileName:   req.FileName,
		FileSize:   req.FileSize,
		Timestamp:  time.Now(),
	}

	conv, err := h.chat.SaveCustomerMessage(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationId": conv.ID.Hex(),
		"message":        msg,
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	shop := c.Query("shop")
	customerID := c.Query("customerId")
	if shop == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop and customerId are required"})
		return
	}

	messages, err := h.chat.GetTranscript(c.Request.Context(), shop, customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) Upload(c *gin.Context) {
	shop := c.PostForm("shop")
	customerID := c.PostForm("customerId")
	if shop == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop and customerId are required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	fileURL, err := h.uploads.Upload(
		c.Request.Context(), file, header.Size,
		header.Header.Get("Content-Type"),
		header.Filename,
		shop, customerID,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUploadsDisabled),
			errors.Is(err, services.ErrFileTooLarge),
			errors.Is(err, services.ErrFileType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"fileUrl": fileURL})
}
