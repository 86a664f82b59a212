package event

import (
	"fmt"
	"sync"

	log "github.com/go-kit/kit/log"
)

//Event names published on the bus
const (
	EtapeChanged    = "orderEtapeChanged"
	StatusChanged   = "orderStatusChanged"
	OrderCreated    = "orderCreated"
	OrderUpdated    = "orderUpdated"
	OrderDeleted    = "orderDeleted"
	StatsChanged    = "statsChanged"
	ReminderOverdue = "reminderOverdue"
)

//Handler consumes a published payload
type Handler func(payload interface{})

//Bus is an in process publish/subscribe.
//Delivery is synchronous within Publish; a panicking handler is recovered
//and logged, it never reaches the publisher or later handlers.
//No cross process durability: a gone subscriber just misses events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
	logger log.Logger
}

//NewBus creates the bus, logger may be nil
func NewBus(logger log.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[int]Handler),
		logger: logger,
	}
}

//Subscription is the handle of one registration, Close is idempotent
type Subscription struct {
	bus   *Bus
	event string
	id    int
	once  sync.Once
}

//Close removes the registration
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if hs, ok := s.bus.subs[s.event]; ok {
			delete(hs, s.id)
			if len(hs) == 0 {
				delete(s.bus.subs, s.event)
			}
		}
	})
}

//Subscribe registers handler for event and returns its handle
func (b *Bus) Subscribe(event string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	if b.subs[event] == nil {
		b.subs[event] = make(map[int]Handler)
	}
	b.subs[event][b.nextID] = handler
	return &Subscription{bus: b, event: event, id: b.nextID}
}

//Publish fans payload out to every subscriber of event, synchronously
func (b *Bus) Publish(event string, payload interface{}) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.subs[event]))
	for _, h := range b.subs[event] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.deliver(event, h, payload)
	}
}

func (b *Bus) deliver(event string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.log("event", event, "subscriber_panic", fmt.Sprintf("%v", r))
		}
	}()
	h(payload)
}

func (b *Bus) log(keyvals ...interface{}) {
	if b.logger != nil {
		b.logger.Log(keyvals...)
	}
}
