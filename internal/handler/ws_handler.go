package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"livechat-app/internal/realtime"
)

type WSHandler struct {
	hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// WidgetSocket attaches a customer's widget to its room.
func (h *WSHandler) WidgetSocket(c *gin.Context) {
	shop := c.Query("shop")
	customerID := c.Query("customerId")
	if shop == "" || customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop and customerId are required"})
		return
	}

	if err := h.hub.ServeClient(c.Writer, c.Request, realtime.RoleCustomer, customerID, shop, customerID); err != nil {
		log.Printf("[WS] Widget upgrade failed: %v", err)
	}
}

// DashboardSocket attaches an authenticated agent to a customer thread,
// mainly for live typing indicators.
func (h *WSHandler) DashboardSocket(c *gin.Context) {
	customerID := c.Query("customerId")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customerId is required"})
		return
	}

	shop := c.GetString("shop")
	agentID := c.GetString("agent_id")
	if err := h.hub.ServeClient(c.Writer, c.Request, realtime.RoleAgent, agentID, shop, customerID); err != nil {
		log.Printf("[WS] Dashboard upgrade failed: %v", err)
	}
}
