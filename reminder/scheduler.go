/*
Package reminder keeps one recurring timer per overdue order line and
re-publishes overdue alerts while the line stays late.

Each tick refetches the current line before re-evaluating, so reminders
never fire on stale data, and a timer whose line was resolved or deleted
removes itself. The tracked set is owned exclusively by the Scheduler.
*/
package reminder

import (
	"context"
	"sync"
	"time"

	log "github.com/go-kit/kit/log"

	"github.com/atelier-imprim/prodflow/event"
	"github.com/atelier-imprim/prodflow/workflow"
)

//DefaultInterval is the per line reminder tick
const DefaultInterval = 30 * time.Second

//DefaultSweep is the full active set observation interval
const DefaultSweep = time.Minute

const fetchTimeout = 10 * time.Second

//entry is one tracked overdue line: timer handle plus the deadline and
//estimate snapshot used to detect staleness
type entry struct {
	id       string
	deadline *time.Time
	estimate *int
	stop     chan struct{}
	once     sync.Once
}

func (e *entry) close() {
	e.once.Do(func() { close(e.stop) })
}

//sameSnapshot compares the tracked snapshot with a fresh line
func (e *entry) sameSnapshot(o workflow.OrderLine) bool {
	switch {
	case (e.deadline == nil) != (o.Deadline == nil):
		return false
	case e.deadline != nil && !e.deadline.Equal(*o.Deadline):
		return false
	case (e.estimate == nil) != (o.EstimatedWorkMins == nil):
		return false
	case e.estimate != nil && *e.estimate != *o.EstimatedWorkMins:
		return false
	}
	return true
}

//Scheduler tracks overdue lines: untracked -> overdue-tracked -> untracked
type Scheduler struct {
	rep      workflow.Repository
	bus      *event.Bus
	clock    workflow.Clock
	logger   log.Logger
	interval time.Duration
	sweep    time.Duration

	mu      sync.Mutex
	tracked map[string]*entry
	closed  bool

	sub *event.Subscription
}

//New creates a Scheduler. Zero interval/sweep fall back to defaults,
//logger may be nil.
func New(rep workflow.Repository, bus *event.Bus, clock workflow.Clock, interval, sweep time.Duration, logger log.Logger) *Scheduler {
	if clock == nil {
		clock = workflow.SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if sweep <= 0 {
		sweep = DefaultSweep
	}
	s := &Scheduler{
		rep:      rep,
		bus:      bus,
		clock:    clock,
		logger:   logger,
		interval: interval,
		sweep:    sweep,
		tracked:  make(map[string]*entry),
	}
	//a deleted line loses its timer immediately, not on the next sweep
	s.sub = bus.Subscribe(event.OrderDeleted, func(payload interface{}) {
		if snap, ok := payload.(event.LineSnapshot); ok {
			s.untrack(snap.Line.ID)
		}
	})
	return s
}

//Run observes the active set on the sweep interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.sweep)
	defer t.Stop()
	s.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Observe(ctx)
		}
	}
}

//Observe diffs the current active line set against the tracked set:
//newly overdue lines get a timer, lines no longer overdue or no longer
//present lose theirs, changed snapshots are refreshed
func (s *Scheduler) Observe(ctx context.Context) {
	lines, err := s.rep.ListActiveOrderLines(ctx)
	if err != nil {
		s.log("observe", "list", "err", err.Error())
		return
	}
	now := s.clock.Now()

	present := make(map[string]bool, len(lines))
	for _, o := range lines {
		present[o.ID] = true
		overdue := workflow.ClassifyLine(o, now) == workflow.UrgencyOverdue

		s.mu.Lock()
		e, had := s.tracked[o.ID]
		s.mu.Unlock()

		switch {
		case overdue && !had:
			s.track(o)
		case overdue && had && !e.sameSnapshot(o):
			//deadline or estimate moved, restart with the fresh snapshot
			s.untrack(o.ID)
			s.track(o)
		case !overdue && had:
			s.untrack(o.ID)
		}
	}

	//drop timers of lines that disappeared from the source data
	s.mu.Lock()
	var gone []string
	for id := range s.tracked {
		if !present[id] {
			gone = append(gone, id)
		}
	}
	s.mu.Unlock()
	for _, id := range gone {
		s.untrack(id)
	}
}

//TrackedCount returns the number of live reminder timers
func (s *Scheduler) TrackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

//Close cancels every timer and the bus registration
func (s *Scheduler) Close() {
	s.sub.Close()
	s.mu.Lock()
	s.closed = true
	entries := make([]*entry, 0, len(s.tracked))
	for _, e := range s.tracked {
		entries = append(entries, e)
	}
	s.tracked = make(map[string]*entry)
	s.mu.Unlock()
	for _, e := range entries {
		e.close()
	}
}

func (s *Scheduler) track(o workflow.OrderLine) {
	e := &entry{
		id:       o.ID,
		deadline: o.Deadline,
		estimate: o.EstimatedWorkMins,
		stop:     make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, had := s.tracked[o.ID]; had {
		s.mu.Unlock()
		return
	}
	s.tracked[o.ID] = e
	s.mu.Unlock()
	s.log("track", o.ID)
	go s.loop(e)
}

func (s *Scheduler) untrack(id string) {
	s.mu.Lock()
	e, ok := s.tracked[id]
	if ok {
		delete(s.tracked, id)
	}
	s.mu.Unlock()
	if ok {
		e.close()
		s.log("untrack", id)
	}
}

//loop is the recurring timer of one tracked line
func (s *Scheduler) loop(e *entry) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			if !s.fire(e) {
				s.untrack(e.id)
				return
			}
		}
	}
}

//fire re-evaluates one line against a fresh snapshot and publishes the
//reminder when it is still overdue. Returns false when the timer should
//self cancel.
func (s *Scheduler) fire(e *entry) bool {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	line, err := s.rep.GetOrderLine(ctx, e.id)
	if err != nil {
		if err == workflow.ErrNotFound {
			return false
		}
		//transient fetch failure, keep the timer and retry next tick
		s.log("fire", e.id, "err", err.Error())
		return true
	}
	now := s.clock.Now()
	if line.Status.Terminal() || workflow.ClassifyLine(line, now) != workflow.UrgencyOverdue {
		return false
	}
	s.bus.Publish(event.ReminderOverdue, event.Overdue{
		Line:           line,
		OverdueMinutes: int(workflow.OverdueBy(line, now) / time.Minute),
		Timestamp:      now,
	})
	return true
}

func (s *Scheduler) log(keyvals ...interface{}) {
	if s.logger != nil {
		s.logger.Log(keyvals...)
	}
}
