package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventCheckIn is sent to dashboards whenever an attendee is checked in.
	EventCheckIn = "check_in"
	// EventViewers reports how many dashboards are watching a form.
	EventViewers = "viewers"
)

// CheckInEvent is the payload of EventCheckIn.
type CheckInEvent struct {
	RegistrationID uuid.UUID         `json:"registration_id"`
	FormID         uuid.UUID         `json:"form_id"`
	CheckedInAt    time.Time         `json:"checked_in_at"`
	Answers        map[string]string `json:"answers"`
}

// Publisher publishes form events to other instances.
type Publisher interface {
	PublishFormEvent(ctx context.Context, formID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to form channels and invokes handler for incoming events.
type Subscriber interface {
	SubscribeForm(formID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains form_id -> set of dashboard connections and broadcasts check-in
// events to them. With Redis configured, events go through pub/sub so every
// instance delivers them exactly once.
type Hub struct {
	forms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		forms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to a form room. Starts the Redis subscription for the
// form if this is its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.forms[c.FormID] == nil {
		h.forms[c.FormID] = make(map[string]*Client)
		if h.sub != nil {
			formID := c.FormID
			cancel, err := h.sub.SubscribeForm(formID, func(event string, payload []byte) {
				h.Broadcast(formID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe form channel failed", zap.Error(err), zap.String("form_id", formID.String()))
			} else {
				h.subs[formID] = cancel
			}
		}
	}
	h.forms[c.FormID][c.ID] = c
	count := len(h.forms[c.FormID])
	h.mu.Unlock()

	h.Broadcast(c.FormID, EventViewers, map[string]int{"count": count})
	h.logger.Debug("dashboard joined", zap.String("client_id", c.ID), zap.String("form_id", c.FormID.String()))
}

// Unregister removes a client from its form room and closes its send channel.
// Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	count := 0
	if m, ok := h.forms[c.FormID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		count = len(m)
		if count == 0 {
			delete(h.forms, c.FormID)
			if cancel, ok := h.subs[c.FormID]; ok {
				cancel()
				delete(h.subs, c.FormID)
			}
		}
	}
	h.mu.Unlock()

	if count > 0 {
		h.Broadcast(c.FormID, EventViewers, map[string]int{"count": count})
	}
	h.logger.Debug("dashboard left", zap.String("client_id", c.ID), zap.String("form_id", c.FormID.String()))
}

// Broadcast sends a message to all local clients watching formID.
func (h *Hub) Broadcast(formID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.forms[formID] {
		select {
		case c.send <- msg:
		default:
			// slow dashboard; drop rather than block check-ins
		}
	}
}

// PublishCheckIn fans a check-in out to every dashboard watching the form.
func (h *Hub) PublishCheckIn(ctx context.Context, ev CheckInEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.pub != nil {
		return h.pub.PublishFormEvent(ctx, ev.FormID, EventCheckIn, data)
	}
	h.Broadcast(ev.FormID, EventCheckIn, json.RawMessage(data))
	return nil
}

// Viewers returns the number of connected dashboards for a form.
func (h *Hub) Viewers(formID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.forms[formID])
}
