package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/renderer"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "surface_events"

type Hub struct {
	// Connected browsers per workbench (several tabs may watch one workbench).
	clients  map[uuid.UUID][]*Client
	surfaces map[uuid.UUID]*Surface

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, optional.
	rdb        *redis.Client
	instanceID string

	// Browser renderer events are published here.
	events message.Publisher

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, events message.Publisher, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		surfaces:   make(map[uuid.UUID]*Surface),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		events:     events,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.WorkbenchID] = append(h.clients[client.WorkbenchID], client)
			surface := h.surfaces[client.WorkbenchID]
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"workbench_id": client.WorkbenchID})

			if surface != nil {
				for _, data := range surface.replay() {
					client.trySend(data)
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.WorkbenchID]
			for i, c := range clients {
				if c == client {
					h.clients[client.WorkbenchID] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.clients[client.WorkbenchID]) == 0 {
				delete(h.clients, client.WorkbenchID)
			}
			h.mu.Unlock()
			h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"workbench_id": client.WorkbenchID})
		}
	}
}

func (h *Hub) Close() {
	close(h.done)
}

// Surface returns the surface of a workbench, creating it on first use.
func (h *Hub) Surface(workbenchID uuid.UUID) *Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.surfaces[workbenchID]; ok {
		return s
	}
	s := &Surface{id: workbenchID, hub: h}
	h.surfaces[workbenchID] = s
	return s
}

func (h *Hub) RemoveSurface(workbenchID uuid.UUID) {
	h.mu.Lock()
	delete(h.surfaces, workbenchID)
	h.mu.Unlock()
}

// ClientCount reports how many browsers are connected to a workbench.
func (h *Hub) ClientCount(workbenchID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workbenchID])
}

// Send delivers data to every browser of a workbench, here and on other
// instances.
func (h *Hub) Send(workbenchID uuid.UUID, data []byte) {
	h.deliverLocal(workbenchID, data)

	if h.rdb != nil {
		payload, err := h.clusterPayload(workbenchID, data)
		if err != nil {
			h.logger.Warn("Hub", "Failed to encode cluster message", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) deliverLocal(workbenchID uuid.UUID, data []byte) {
	// Sends never block, and holding the read lock keeps unregister from
	// closing a channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[workbenchID] {
		if !client.trySend(data) {
			h.logger.Warn("Hub", "Client send buffer full, dropping message", map[string]interface{}{"workbench_id": workbenchID})
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.receiveCluster([]byte(msg.Payload))
	}
}

// clusterMessage is what instances exchange over Redis.
type clusterMessage struct {
	Target  string          `json:"target"`
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

func (h *Hub) clusterPayload(workbenchID uuid.UUID, data []byte) ([]byte, error) {
	return json.Marshal(clusterMessage{
		Target:  workbenchID.String(),
		Origin:  h.instanceID,
		Message: json.RawMessage(data),
	})
}

// receiveCluster delivers a message published by another instance. Messages
// this instance published were already delivered locally.
func (h *Hub) receiveCluster(raw []byte) {
	var payload clusterMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if payload.Origin == h.instanceID {
		return
	}
	id, err := uuid.Parse(payload.Target)
	if err != nil {
		return
	}
	h.deliverLocal(id, payload.Message)
}

// handleInbound processes one message read from a browser.
func (h *Hub) handleInbound(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("Hub", "Malformed client message", map[string]interface{}{"workbench_id": c.WorkbenchID, "error": err.Error()})
		return
	}

	switch msg.Type {
	case TypeHello:
		var hello struct {
			Platform string `json:"platform"`
		}
		if err := json.Unmarshal(msg.Data, &hello); err == nil && hello.Platform != "" {
			h.Surface(c.WorkbenchID).setPlatform(hello.Platform)
		}

	case TypeRendererEvent:
		var ev renderer.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			h.logger.Warn("Hub", "Malformed renderer event", map[string]interface{}{"workbench_id": c.WorkbenchID, "error": err.Error()})
			return
		}
		out, err := renderer.EncodeEvent(ev)
		if err != nil {
			return
		}
		if err := h.events.Publish(TopicFor(c.WorkbenchID), out); err != nil {
			h.logger.Error("Hub", "Failed to publish renderer event", map[string]interface{}{"workbench_id": c.WorkbenchID, "error": err})
		}

	default:
		h.logger.Debug("Hub", "Ignoring client message", map[string]interface{}{"type": msg.Type})
	}
}
