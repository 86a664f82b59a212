/*
Package push is the WebSocket transport: clients register on role
channels and receive role scoped broadcasts. It keeps the per client
recent notification list and applies the desktop permission policy at
delivery time.
*/
package push

import (
	"encoding/json"

	log "github.com/go-kit/kit/log"

	"github.com/atelier-imprim/prodflow/notify"
	"github.com/atelier-imprim/prodflow/workflow"
)

//envelope is the wire frame of every pushed message
type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type message struct {
	channels map[string]bool
	event    string
	payload  interface{}
}

//Hub owns the connected client set and fans broadcasts out to it
type Hub struct {
	logger log.Logger
	policy *notify.PermissionPolicy
	clock  workflow.Clock
	recent int

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}

	clients map[*Client]bool
}

//NewHub creates a hub; recent is the per client list size, logger may be nil
func NewHub(policy *notify.PermissionPolicy, clock workflow.Clock, recent int, logger log.Logger) *Hub {
	if clock == nil {
		clock = workflow.SystemClock{}
	}
	if recent < 1 {
		recent = notify.DefaultRecent
	}
	return &Hub{
		logger:     logger,
		policy:     policy,
		clock:      clock,
		recent:     recent,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

//Run drives the hub until Close
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log("client", c.id, "registered", len(h.clients))
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}
		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

//Close stops the run loop and disconnects everyone
func (h *Hub) Close() {
	close(h.done)
}

//Broadcast implements notify.Broadcaster. It never blocks the caller:
//when the hub queue is full the message is dropped and logged, in app
//delivery stays best effort.
func (h *Hub) Broadcast(channels []string, eventName string, payload interface{}) {
	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}
	select {
	case h.broadcast <- message{channels: set, event: eventName, payload: payload}:
	case <-h.done:
	default:
		h.log("broadcast", eventName, "dropped", "hub queue full")
	}
}

func (h *Hub) deliver(m message) {
	for c := range h.clients {
		if !c.listensAny(m.channels) {
			continue
		}
		payload := m.payload
		if n, ok := m.payload.(notify.Notification); ok {
			payload = h.personalize(c, n)
		}
		data, err := json.Marshal(envelope{Event: m.event, Payload: payload})
		if err != nil {
			h.log("deliver", m.event, "err", err.Error())
			continue
		}
		select {
		case c.send <- data:
		default:
			//slow client, drop the frame rather than block delivery
			h.log("client", c.id, "dropped", m.event)
		}
	}
}

//personalize applies the desktop permission policy and records the entry
//in the client recent list
func (h *Hub) personalize(c *Client, n notify.Notification) notify.Notification {
	if n.Desktop && !h.policy.Granted(c.id) {
		n.Desktop = false
		if h.policy.NeedGuidance(c.id, h.clock.Now()) {
			n.Guidance = true
		}
	}
	c.ring.Add(n)
	return n
}

//drop unsubscribes the client everywhere and closes its queue
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	h.policy.Forget(c.id)
	close(c.send)
	h.log("client", c.id, "unregistered", len(h.clients))
}

func (h *Hub) log(keyvals ...interface{}) {
	if h.logger != nil {
		h.logger.Log(keyvals...)
	}
}
