package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/go-kit/kit/log"

	"github.com/atelier-imprim/prodflow/event"
	"github.com/atelier-imprim/prodflow/workflow"
)

//DefaultDuration is the display duration of an entry
const DefaultDuration = 30 * time.Minute

//Broadcaster is the transport the dispatcher forwards to.
//Delivery is best effort, a down channel must not fail the caller.
type Broadcaster interface {
	Broadcast(channels []string, eventName string, payload interface{})
}

var allChannels = []string{
	workflow.RoleDesign.Channel(),
	workflow.RoleWorkshop.Channel(),
	workflow.RoleSales.Channel(),
}

//Dispatcher subscribes to the bus, turns domain events into role scoped
//notifications and forwards them to the transport
type Dispatcher struct {
	bus      *event.Bus
	out      Broadcaster
	clock    workflow.Clock
	logger   log.Logger
	duration time.Duration

	seq int64

	mu          sync.Mutex
	desktopSeen map[string]time.Time

	subs []*event.Subscription
}

//NewDispatcher wires the dispatcher to the bus. duration <= 0 falls back
//to DefaultDuration, logger may be nil.
func NewDispatcher(bus *event.Bus, out Broadcaster, clock workflow.Clock, duration time.Duration, logger log.Logger) *Dispatcher {
	if clock == nil {
		clock = workflow.SystemClock{}
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	d := &Dispatcher{
		bus:         bus,
		out:         out,
		clock:       clock,
		logger:      logger,
		duration:    duration,
		desktopSeen: make(map[string]time.Time),
	}
	d.subs = []*event.Subscription{
		bus.Subscribe(event.EtapeChanged, d.onEtapeChanged),
		bus.Subscribe(event.StatusChanged, d.onStatusChanged),
		bus.Subscribe(event.ReminderOverdue, d.onReminderOverdue),
		bus.Subscribe(event.OrderCreated, d.forward(event.OrderCreated)),
		bus.Subscribe(event.OrderUpdated, d.forward(event.OrderUpdated)),
		bus.Subscribe(event.OrderDeleted, d.forward(event.OrderDeleted)),
		bus.Subscribe(event.StatsChanged, d.forward(event.StatsChanged)),
	}
	return d
}

//Close releases every bus registration
func (d *Dispatcher) Close() {
	for _, s := range d.subs {
		s.Close()
	}
}

//onEtapeChanged alerts the role that picks the line up next
func (d *Dispatcher) onEtapeChanged(payload interface{}) {
	c, ok := payload.(event.LineChange)
	if !ok {
		d.log("event", event.EtapeChanged, "err", "unexpected payload")
		return
	}
	switch workflow.Stage(c.ToEtape) {
	case workflow.StageConception:
		d.send(d.build(TypeEtapeConception, SeverityInfo, c,
			"New conception work",
			fmt.Sprintf("%s (%s) entered conception", c.ProductName, c.OrderNumber)),
			workflow.RoleDesign.Channel())
	case workflow.StagePrinting:
		d.send(d.build(TypeImpressionReady, SeveritySuccess, c,
			"Ready to print",
			fmt.Sprintf("%s (%s) is ready for impression", c.ProductName, c.OrderNumber)),
			workflow.RoleWorkshop.Channel())
	}
	//forward the raw change for cache refresh too
	d.out.Broadcast(allChannels, event.EtapeChanged, c)
}

//onStatusChanged alerts sales when work completes
func (d *Dispatcher) onStatusChanged(payload interface{}) {
	c, ok := payload.(event.LineChange)
	if !ok {
		d.log("event", event.StatusChanged, "err", "unexpected payload")
		return
	}
	if workflow.Status(c.ToStatus) == workflow.StatusDone {
		d.send(d.build(TypeOrderCompleted, SeveritySuccess, c,
			"Order line completed",
			fmt.Sprintf("%s (%s) is done", c.ProductName, c.OrderNumber)),
			workflow.RoleSales.Channel())
	}
	d.out.Broadcast(allChannels, event.StatusChanged, c)
}

//onReminderOverdue re-alerts every role while a line stays overdue
func (d *Dispatcher) onReminderOverdue(payload interface{}) {
	o, ok := payload.(event.Overdue)
	if !ok {
		d.log("event", event.ReminderOverdue, "err", "unexpected payload")
		return
	}
	n := Notification{
		ID:          d.nextID(),
		Type:        TypeReminderOverdue,
		Title:       "Still overdue",
		Message:     fmt.Sprintf("%s (%s) has been overdue by %d minutes", o.Line.ProductName, o.Line.OrderNumber, o.OverdueMinutes),
		Severity:    SeverityOverdue,
		Channels:    allChannels,
		OrderID:     o.Line.OrderID,
		OrderNumber: o.Line.OrderNumber,
		Tag:         o.Line.OrderNumber,
		Sound:       Sound(SeverityOverdue),
		CreatedAt:   d.clock.Now(),
		Duration:    d.duration,
	}
	d.send(n, allChannels...)
}

//forward relays a data event verbatim to every role channel
func (d *Dispatcher) forward(name string) event.Handler {
	return func(payload interface{}) {
		d.out.Broadcast(allChannels, name, payload)
	}
}

func (d *Dispatcher) build(typ string, sev Severity, c event.LineChange, title, message string) Notification {
	return Notification{
		ID:          d.nextID(),
		Type:        typ,
		Title:       title,
		Message:     message,
		Severity:    sev,
		OrderID:     c.OrderID,
		OrderNumber: c.OrderNumber,
		Tag:         c.OrderNumber,
		Sound:       Sound(sev),
		CreatedAt:   d.clock.Now(),
		Duration:    d.duration,
	}
}

func (d *Dispatcher) send(n Notification, channels ...string) {
	n.Channels = channels
	n.Desktop = d.allowDesktop(n.Tag, n.CreatedAt)
	d.out.Broadcast(channels, "notification", n)
}

//allowDesktop admits one OS level popup per tag within the visibility
//window, so repeated alerts for the same line never stack
func (d *Dispatcher) allowDesktop(tag string, now time.Time) bool {
	if tag == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	//lazy prune
	for t, seen := range d.desktopSeen {
		if now.Sub(seen) >= d.duration {
			delete(d.desktopSeen, t)
		}
	}
	if seen, ok := d.desktopSeen[tag]; ok && now.Sub(seen) < d.duration {
		return false
	}
	d.desktopSeen[tag] = now
	return true
}

func (d *Dispatcher) nextID() string {
	return fmt.Sprintf("n-%d", atomic.AddInt64(&d.seq, 1))
}

func (d *Dispatcher) log(keyvals ...interface{}) {
	if d.logger != nil {
		d.logger.Log(keyvals...)
	}
}
