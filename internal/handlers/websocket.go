package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"casino-core/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes coordinator events to connected accounts. Its
// hub satisfies services.Broadcaster, so the coordinator publishes
// through it without knowing about connections.
type WebSocketHandler struct {
	coordinator *services.Coordinator
	hub         *WebSocketHub
}

type WebSocketHub struct {
	clients    map[int64]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	AccountID int64
	Conn      *websocket.Conn
}

type Message struct {
	Type      string      `json:"type"`
	AccountID int64       `json:"account_id,omitempty"`
	Data      interface{} `json:"data"`
}

func NewWebSocketHandler(coordinator *services.Coordinator) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[int64]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		coordinator: coordinator,
		hub:         hub,
	}
}

// Hub exposes the broadcaster for coordinator wiring.
func (h *WebSocketHandler) Hub() *WebSocketHub { return h.hub }

// SetCoordinator closes the wiring loop: the hub is handed to the
// coordinator at construction and the coordinator is handed back here
// before the router starts serving.
func (h *WebSocketHandler) SetCoordinator(coordinator *services.Coordinator) {
	h.coordinator = coordinator
}

// Publish implements services.Broadcaster. An accountID of 0 fans out to
// every connected client.
func (hub *WebSocketHub) Publish(accountID int64, event string, payload any) {
	msg := &Message{
		Type:      event,
		AccountID: accountID,
		Data:      payload,
	}
	select {
	case hub.broadcast <- msg:
	default:
		// A full buffer drops the event rather than blocking gameplay.
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	accountID := c.GetInt64("account_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		AccountID: accountID,
		Conn:      conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendBalance(c, client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		h.sendPong(client)
	}
}

func (h *WebSocketHandler) sendBalance(c *gin.Context, client *Client) {
	ctx := c.Request.Context()

	mode, err := h.coordinator.ActiveMode(ctx, client.AccountID)
	if err != nil {
		log.Warnf("Failed to resolve mode for WS: %v", err)
		return
	}
	view, err := h.coordinator.Balance(ctx, client.AccountID, mode)
	if err != nil {
		log.Warnf("Failed to get balance for WS: %v", err)
		return
	}

	client.Conn.WriteJSON(Message{
		Type: "BALANCE_UPDATE",
		Data: view,
	})
}

func (h *WebSocketHandler) sendPong(client *Client) {
	client.Conn.WriteJSON(Message{
		Type: "PONG",
		Data: gin.H{
			"timestamp": time.Now().Unix(),
		},
	})
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.AccountID] = client.Conn
			log.Debugf("Client registered: %d", client.AccountID)

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.AccountID]; ok {
				delete(hub.clients, client.AccountID)
				log.Debugf("Client unregistered: %d", client.AccountID)
			}

		case message := <-hub.broadcast:
			hub.send(message)
		}
	}
}

func (hub *WebSocketHub) send(message *Message) {
	if message.AccountID != 0 {
		if conn, ok := hub.clients[message.AccountID]; ok {
			conn.WriteJSON(message)
		}
		return
	}
	for _, conn := range hub.clients {
		conn.WriteJSON(message)
	}
}
