package sse

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"go.uber.org/zap"
)

// Event types pushed to the board.
const (
	EventProcessUpdate = "process_update"
	EventTankUpdate    = "tank_update"
	EventTankCreated   = "tank_created"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Publisher delivers board events to every connected client.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	Events chan Event
}

// Hub manages the SSE connections of this instance.
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
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered", zap.String("client_id", client.ID), zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Broadcast sends an event to all connected clients. Slow clients miss the event.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event", zap.String("client_id", client.ID), zap.String("event", event.EventType))
		}
	}
}

// Publish broadcasts locally.
func (h *Hub) Publish(ctx context.Context, event Event) {
	h.Broadcast(event)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type processPayload struct {
	TankID    string        `json:"tankId"`
	ProcessID string        `json:"processId"`
	SerialNo  string        `json:"serialNo"`
	Status    entity.Status `json:"status"`
	Progress  int           `json:"progress"`
	Action    string        `json:"action"`
}

type tankPayload struct {
	TankID       string        `json:"tankId"`
	Status       entity.Status `json:"status,omitempty"`
	ProcessCount int           `json:"processCount,omitempty"`
	Action       string        `json:"action"`
}

// ProcessUpdate describes a change to one process card.
func ProcessUpdate(p *entity.Process, action string) Event {
	return newEvent(EventProcessUpdate, processPayload{
		TankID:    p.TankID,
		ProcessID: p.ID,
		SerialNo:  p.SerialNo,
		Status:    p.Status,
		Progress:  p.Progress,
		Action:    action,
	})
}

// TankUpdate describes a tank-level change such as completion or final QC.
func TankUpdate(tankID string, status entity.Status, action string) Event {
	return newEvent(EventTankUpdate, tankPayload{TankID: tankID, Status: status, Action: action})
}

// TankCreated announces a new tank or a newly appended BOM batch.
func TankCreated(tank *entity.Tank, processCount int, action string) Event {
	return newEvent(EventTankCreated, tankPayload{
		TankID:       tank.ID,
		Status:       tank.Status,
		ProcessCount: processCount,
		Action:       action,
	})
}

func newEvent(eventType string, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{EventType: eventType, Data: string(data)}
}
