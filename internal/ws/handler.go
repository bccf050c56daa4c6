package ws

import (
	"encoding/json"
	"strings"

	"github.com/feyza/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"golang.org/x/net/websocket"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

type subscribeMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
	UserID  string `json:"userId"`
}

// viewer is the authenticated caller; only admins may watch other users.
type viewer struct {
	userID string
	admin  bool
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	who := viewer{userID: c.GetString("user_id"), admin: c.GetString("user_role") == auth.RoleAdmin}
	websocket.Handler(func(conn *websocket.Conn) {
		client := NewClient(conn)
		go h.writer(client)
		h.reader(client, who)
	}).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) reader(client *Client, who viewer) {
	defer func() {
		h.hub.UnsubscribeAll(client)
		client.close()
	}()

	for {
		var raw string
		if err := websocket.Message.Receive(client.conn, &raw); err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSpace(msg.Action)) != "subscribe" {
			continue
		}
		topic := subscriptionTopic(msg, who)
		if topic == "" {
			continue
		}
		if !h.hub.Subscribe(topic, client) {
			_ = websocket.Message.Send(client.conn, `{"event":"error","data":"too_many_channels"}`)
		}
	}
}

func (h *Handler) writer(client *Client) {
	for payload := range client.out {
		if err := websocket.Message.Send(client.conn, string(payload)); err != nil {
			return
		}
	}
}

func subscriptionTopic(msg subscribeMessage, who viewer) string {
	channel := strings.ToLower(strings.TrimSpace(msg.Channel))
	if channel != "user:trust" {
		return ""
	}
	userID := strings.TrimSpace(msg.UserID)
	if userID == "" {
		userID = who.userID
	}
	if userID == "" || (userID != who.userID && !who.admin) {
		return ""
	}
	return UserTrustChannel(userID)
}
