/*
Package dispatcher directs order line flow: it validates requested
transitions, commits them through the workflow repository and fans the
resulting domain events out on the bus.
*/
package dispatcher

import (
	"context"
	"fmt"

	log "github.com/go-kit/kit/log"

	"github.com/atelier-imprim/prodflow/event"
	"github.com/atelier-imprim/prodflow/workflow"
)

//Engine handles validation and mutation requests sequentially per line.
//Commits are never best effort; event delivery after a commit is.
type Engine struct {
	rep    workflow.Repository
	bus    *event.Bus
	clock  workflow.Clock
	logger log.Logger
}

//NewEngine returns a new Engine, logger may be nil
func NewEngine(rep workflow.Repository, bus *event.Bus, clock workflow.Clock, logger log.Logger) *Engine {
	if clock == nil {
		clock = workflow.SystemClock{}
	}
	return &Engine{rep: rep, bus: bus, clock: clock, logger: logger}
}

//RequestTransition runs the full sequence: fetch fresh state, validate,
//commit, publish. Validation always observes the most recently committed
//state. A stale commit is refetched and revalidated once; a second stale
//hit surfaces to the caller.
//A Rejection is returned as a value, never as an error.
func (e *Engine) RequestTransition(ctx context.Context, id string, req workflow.TransitionRequest, actor workflow.Role) (workflow.OrderLine, *workflow.Rejection, error) {
	cur, err := e.rep.GetOrderLine(ctx, id)
	if err != nil {
		return workflow.OrderLine{}, nil, err
	}

	for attempt := 0; ; attempt++ {
		if rej := workflow.Validate(cur, req, actor); rej != nil {
			return cur, rej, nil
		}

		stage := cur.Stage
		if req.Stage != nil {
			stage = *req.Stage
		}
		status := cur.Status
		if req.Status != nil {
			status = *req.Status
		}
		var note string
		if req.Status != nil && *req.Status == workflow.StatusTechnicalProblem {
			note = req.Issue
		}

		committed, err := e.rep.CommitTransition(ctx, id, cur.Version, stage, status, note)
		if err == workflow.ErrStaleWrite && attempt == 0 {
			e.log("transition", id, "retry", "stale write")
			cur, err = e.rep.GetOrderLine(ctx, id)
			if err != nil {
				return workflow.OrderLine{}, nil, err
			}
			continue
		}
		if err == workflow.ErrStaleWrite {
			//second stale hit surfaces to the actor
			return workflow.OrderLine{}, nil, err
		}
		if err != nil {
			return workflow.OrderLine{}, nil, fmt.Errorf("commit %s: %w", id, err)
		}

		e.publishChanges(cur, committed)
		return committed, nil, nil
	}
}

//publishChanges emits the domain events of one committed transition,
//causally ordered per line by the synchronous publish
func (e *Engine) publishChanges(before, after workflow.OrderLine) {
	now := e.clock.Now()
	if before.Stage != after.Stage {
		e.bus.Publish(event.EtapeChanged, event.LineChange{
			OrderID:        after.OrderID,
			OrderProductID: after.ID,
			ProductID:      after.ProductID,
			OrderNumber:    after.OrderNumber,
			ProductName:    after.ProductName,
			Client:         after.Client,
			FromEtape:      string(before.Stage),
			ToEtape:        string(after.Stage),
			Message:        fmt.Sprintf("%s: stage %s", after.OrderNumber, after.Stage),
			Timestamp:      now,
		})
	}
	if before.Status != after.Status {
		e.bus.Publish(event.StatusChanged, event.LineChange{
			OrderID:        after.OrderID,
			OrderProductID: after.ID,
			ProductID:      after.ProductID,
			OrderNumber:    after.OrderNumber,
			ProductName:    after.ProductName,
			Client:         after.Client,
			FromStatus:     string(before.Status),
			ToStatus:       string(after.Status),
			Message:        fmt.Sprintf("%s: status %s", after.OrderNumber, after.Status),
			Timestamp:      now,
		})
	}
	e.bus.Publish(event.StatsChanged, event.Stats{Timestamp: now})
}

//CreateLine persists a new line and announces it
func (e *Engine) CreateLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	if o.Status == "" {
		o.Status = workflow.StatusInProgress
	}
	if o.Express == "" {
		o.Express = workflow.ExpressNo
	}
	created, err := e.rep.CreateOrderLine(ctx, o)
	if err != nil {
		return workflow.OrderLine{}, err
	}
	now := e.clock.Now()
	e.bus.Publish(event.OrderCreated, event.LineSnapshot{Line: created, Timestamp: now})
	e.bus.Publish(event.StatsChanged, event.Stats{Timestamp: now})
	return created, nil
}

//UpdateLine persists non workflow fields (deadline, estimate, agents,
//finishing, express) and announces the fresh snapshot
func (e *Engine) UpdateLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	updated, err := e.rep.UpdateOrderLine(ctx, o)
	if err != nil {
		return workflow.OrderLine{}, err
	}
	now := e.clock.Now()
	e.bus.Publish(event.OrderUpdated, event.LineSnapshot{Line: updated, Timestamp: now})
	e.bus.Publish(event.StatsChanged, event.Stats{Timestamp: now})
	return updated, nil
}

//DeleteLine removes a line; the deleted event lets the reminder
//scheduler drop any timer immediately
func (e *Engine) DeleteLine(ctx context.Context, id string) error {
	line, err := e.rep.GetOrderLine(ctx, id)
	if err != nil {
		return err
	}
	if err := e.rep.DeleteOrderLine(ctx, id); err != nil {
		return err
	}
	now := e.clock.Now()
	e.bus.Publish(event.OrderDeleted, event.LineSnapshot{Line: line, Timestamp: now})
	e.bus.Publish(event.StatsChanged, event.Stats{Timestamp: now})
	return nil
}

func (e *Engine) log(keyvals ...interface{}) {
	if e.logger != nil {
		e.logger.Log(keyvals...)
	}
}
