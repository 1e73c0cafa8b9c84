package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// 项目事件动作
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionDeleted       = "deleted"
	ActionStageAdvanced = "stage_advanced"
	ActionCostComputed  = "cost_computed"
	ActionCostApproved  = "cost_approved"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// ProjectUpdate is the payload of a project_update event.
type ProjectUpdate struct {
	ProjectID string `json:"project_id"`
	Code      string `json:"code"`
	Action    string `json:"action"`
	Stage     string `json:"stage,omitempty"`
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.Named("sse"),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("Client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("Client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to all connected clients. Slow clients drop
// events instead of blocking the publisher.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("Client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

// PublishProjectUpdate 项目级别更新（创建、阶段推进、核价）
func (h *Hub) PublishProjectUpdate(u ProjectUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("Failed to encode project update", zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: "project_update", Data: string(data)})
	h.logger.Debug("Published project_update",
		zap.String("project_id", u.ProjectID),
		zap.String("action", u.Action))
}
