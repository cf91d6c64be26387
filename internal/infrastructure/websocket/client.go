package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

// Subscriptions tracks the deliberations a client is subscribed to.
type Subscriptions struct {
	deliberations map[string]bool
	mu            sync.RWMutex
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{deliberations: make(map[string]bool)}
}

// Client represents a single WebSocket connection subscribed to one or
// more deliberations' live feeds.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan *WSEvent

	id     string
	userID string
	subs   *Subscriptions
}

func NewClient(id, userID string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan *WSEvent, sendBufferSize),
		id:     id,
		userID: userID,
		subs:   NewSubscriptions(),
	}
}

// readPump pumps subscribe/unsubscribe commands from the connection to
// the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendResponse(NewErrorResponse("error", "invalid command format"))
			continue
		}
		c.handleCommand(&cmd)
	}
}

// writePump pumps events from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleCommand(cmd *WSCommand) {
	switch cmd.Action {
	case CmdSubscribe:
		if cmd.DeliberationID == "" {
			c.sendResponse(NewErrorResponse(CmdSubscribe, "deliberation_id required"))
			return
		}
		c.hub.Subscribe(c, cmd.DeliberationID)
		c.sendResponse(NewSuccessResponse(CmdSubscribe, "subscribed to deliberation: "+cmd.DeliberationID))
	case CmdUnsubscribe:
		if cmd.DeliberationID == "" {
			c.sendResponse(NewErrorResponse(CmdUnsubscribe, "deliberation_id required"))
			return
		}
		c.hub.Unsubscribe(c, cmd.DeliberationID)
		c.sendResponse(NewSuccessResponse(CmdUnsubscribe, "unsubscribed from deliberation: "+cmd.DeliberationID))
	default:
		c.sendResponse(NewErrorResponse("error", "unknown command: "+cmd.Action))
	}
}

func (c *Client) sendResponse(resp *WSResponse) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(resp)
}
