package ws

import (
	"encoding/json"
	"sync"

	"github.com/feyza/backend/internal/domain/trust"
)

// Hub routes trust notifications to the clients watching each user channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: map[string]map[*Client]struct{}{}}
}

// Subscribe reports false once the client holds its channel quota.
func (h *Hub) Subscribe(channel string, client *Client) bool {
	if !client.addChannel(channel) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[channel]
	if !ok {
		subs = map[*Client]struct{}{}
		h.subscribers[channel] = subs
	}
	subs[client] = struct{}{}
	return true
}

func (h *Hub) UnsubscribeAll(client *Client) {
	channels := client.takeChannels()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range channels {
		subs, ok := h.subscribers[channel]
		if !ok {
			continue
		}
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Publish delivers payload to every current subscriber of channel and returns
// how many accepted it.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.subscribers[channel]))
	for c := range h.subscribers[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.send(payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) PublishTrustEvent(ev trust.Event) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"event": "trust_event",
		"data":  ev,
	})
	if err != nil {
		return 0, err
	}
	return h.Publish(UserTrustChannel(ev.UserID), payload), nil
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}
