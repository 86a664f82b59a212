package push

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atelier-imprim/prodflow/notify"
	"github.com/atelier-imprim/prodflow/workflow"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	//same origin policy is handled upstream
	CheckOrigin: func(r *http.Request) bool { return true },
}

var clientSeq int64

//Client is one connected browser session
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool
	ring     *notify.Ring
}

//clientMessage is an inbound control frame
type clientMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Granted bool   `json:"granted,omitempty"`
}

//listensAny reports if the client subscribed any of the channels
func (c *Client) listensAny(channels map[string]bool) bool {
	for ch := range channels {
		if c.channels[ch] {
			return true
		}
	}
	return false
}

//ServeWS upgrades the request and registers the client on the channels
//of its role (admin listens to every role channel)
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	role := workflow.Role(r.URL.Query().Get("role"))
	if !role.Valid() {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log("upgrade", "err", err.Error())
		return
	}

	channels := make(map[string]bool)
	if role == workflow.RoleAdmin {
		for _, rl := range []workflow.Role{workflow.RoleSales, workflow.RoleDesign, workflow.RoleWorkshop} {
			channels[rl.Channel()] = true
		}
	} else {
		channels[role.Channel()] = true
	}

	c := &Client{
		id:       fmt.Sprintf("%s#%d", conn.RemoteAddr(), atomic.AddInt64(&clientSeq, 1)),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		channels: channels,
		ring:     notify.NewRing(hub.recent),
	}
	hub.register <- c

	go c.writePump()
	go c.readPump()
}

//readPump consumes control frames until the connection drops, which
//releases every registration of the client
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		switch m.Type {
		case "dismiss":
			c.ring.Dismiss(m.ID)
		case "desktop_permission":
			c.hub.policy.Report(c.id, m.Granted)
		case "list":
			c.sendRecent()
		}
	}
}

//sendRecent pushes the live recent list back to the client
func (c *Client) sendRecent() {
	data, err := json.Marshal(envelope{
		Event:   "recent",
		Payload: c.ring.List(c.hub.clock.Now()),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
