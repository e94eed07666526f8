package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"livechat-app/internal/models"
	"livechat-app/internal/services"
	"livechat-app/internal/utils"
)

type DashboardHandler struct {
	chat    *services.ChatService
	widgets *services.WidgetService
	auth    *services.AuthService
}

func NewDashboardHandler(chat *services.ChatService, widgets *services.WidgetService, auth *services.AuthService) *DashboardHandler {
	return &DashboardHandler{chat: chat, widgets: widgets, auth: auth}
}

func (h *DashboardHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ParseErrors(err)})
		return
	}

	token, agent, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "agent": agent})
}

func (h *DashboardHandler) ListConversations(c *gin.Context) {
	shop := c.GetString("shop")
	includeArchived := c.Query("all") == "1"

	conversations, err := h.chat.ListConversations(c.Request.Context(), shop, includeArchived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *DashboardHandler) GetConversationMessages(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	messages, err := h.chat.GetMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch messages"})
		return
	}

	// Opening the thread marks it read on the dashboard side. The unread
	// counter is advisory, so a failure does not block the transcript.
	if err := h.chat.MarkConversationRead(c.Request.Context(), id); err != nil {
		log.Printf("[CHAT] Failed to mark conversation %s read: %v", id.Hex(), err)
	}

	c.JSON(http.StatusOK, messages)
}

type replyRequest struct {
	Content  string `json:"content" binding:"required"`
	Type     string `json:"type"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

func (h *DashboardHandler) Reply(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	msgType := models.MessageType(req.Type)
	if msgType != models.MessageFile {
		msgType = models.MessageText
	}

	msg := &models.ChatMessage{
		Type:      msgType,
		Content:   req.Content,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		Timestamp: time.Now(),
	}

	conv, err := h.chat.SaveAgentReply(c.Request.Context(), id, c.GetString("agent_id"), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID.Hex(), "message": msg})
}

func (h *DashboardHandler) UpdateConversation(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var patch services.ConversationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.chat.UpdateConversation(c.Request.Context(), id, patch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type createAgentRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
}

func (h *DashboardHandler) CreateAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	agent := &models.Agent{
		Shop:  c.GetString("shop"),
		Name:  req.Name,
		Email: req.Email,
		Role:  models.AgentRole(req.Role),
		Phone: req.Phone,
	}
	if err := h.auth.CreateAgent(c.Request.Context(), agent, req.Password); err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, agent)
}

func (h *DashboardHandler) ListAgents(c *gin.Context) {
	agents, err := h.auth.ListAgents(c.Request.Context(), c.GetString("shop"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch agents"})
		return
	}
	c.JSON(http.StatusOK, agents)
}

type deviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *DashboardHandler) UpdateDeviceToken(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	if err := h.auth.RegisterDeviceToken(c.Request.Context(), c.GetString("agent_id"), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save device token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *DashboardHandler) SaveWidgetSettings(c *gin.Context) {
	var settings models.WidgetSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	settings.Shop = c.GetString("shop")
	if err := utils.ValidateStruct(settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ParseErrors(err)})
		return
	}

	if err := h.widgets.SaveSettings(c.Request.Context(), &settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}
