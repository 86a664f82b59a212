package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atelier-imprim/prodflow/event"
	"github.com/atelier-imprim/prodflow/workflow"
)

//stubRepo is an in memory Repository with a controllable stale hit count
type stubRepo struct {
	mu        sync.Mutex
	lines     map[string]workflow.OrderLine
	staleHits int
}

func newStubRepo(lines ...workflow.OrderLine) *stubRepo {
	r := &stubRepo{lines: make(map[string]workflow.OrderLine)}
	for _, o := range lines {
		r.lines[o.ID] = o
	}
	return r
}

func (r *stubRepo) GetOrderLine(ctx context.Context, id string) (workflow.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.lines[id]
	if !ok {
		return workflow.OrderLine{}, workflow.ErrNotFound
	}
	return o, nil
}

func (r *stubRepo) ListActiveOrderLines(ctx context.Context) ([]workflow.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []workflow.OrderLine{}
	for _, o := range r.lines {
		if !o.Status.Terminal() {
			res = append(res, o)
		}
	}
	return res, nil
}

func (r *stubRepo) CommitTransition(ctx context.Context, id string, version int, stage workflow.Stage, status workflow.Status, note string) (workflow.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.lines[id]
	if !ok {
		return workflow.OrderLine{}, workflow.ErrNotFound
	}
	if r.staleHits > 0 {
		r.staleHits--
		//another writer slipped in
		o.Version++
		r.lines[id] = o
		return workflow.OrderLine{}, workflow.ErrStaleWrite
	}
	if o.Version != version {
		return workflow.OrderLine{}, workflow.ErrStaleWrite
	}
	o.Stage = stage
	o.Status = status
	o.Version++
	if note != "" {
		if o.Note != "" {
			o.Note += "\n"
		}
		o.Note += note
	}
	r.lines[id] = o
	return o, nil
}

func (r *stubRepo) CreateOrderLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[o.ID] = o
	return o, nil
}

func (r *stubRepo) UpdateOrderLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[o.ID] = o
	return o, nil
}

func (r *stubRepo) DeleteOrderLine(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[id]; !ok {
		return workflow.ErrNotFound
	}
	delete(r.lines, id)
	return nil
}

func (r *stubRepo) CountActive(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines), nil
}

func (r *stubRepo) Close() {}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func baseLine() workflow.OrderLine {
	return workflow.OrderLine{
		ID:          "l1",
		OrderID:     "o1",
		OrderNumber: "CMD-100",
		ProductID:   "p1",
		ProductName: "Flyers A5",
		Client:      "Dupont",
		Status:      workflow.StatusInProgress,
		Stage:       workflow.StageGraphicWork,
		Designer:    "marie",
		PrintAgent:  "jean",
		Express:     workflow.ExpressNo,
	}
}

func TestTransitionCommitsAndPublishes(t *testing.T) {
	rep := newStubRepo(baseLine())
	bus := event.NewBus(nil)
	e := NewEngine(rep, bus, fixedClock{t: time.Now()}, nil)

	var sequence []string
	bus.Subscribe(event.EtapeChanged, func(p interface{}) {
		sequence = append(sequence, event.EtapeChanged)
		c := p.(event.LineChange)
		if c.FromEtape != "graphic_work" || c.ToEtape != "printing" {
			t.Errorf("Unexpected etape payload %+v", c)
		}
		if c.OrderNumber != "CMD-100" || c.Client != "Dupont" {
			t.Errorf("Payload missing line data %+v", c)
		}
	})
	bus.Subscribe(event.StatsChanged, func(interface{}) {
		sequence = append(sequence, event.StatsChanged)
	})

	target := workflow.StagePrinting
	line, rej, err := e.RequestTransition(context.Background(), "l1", workflow.TransitionRequest{Stage: &target}, workflow.RoleSales)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if rej != nil {
		t.Fatalf("Unexpected rejection %s", rej)
	}
	if line.Stage != workflow.StagePrinting {
		t.Errorf("Expected printing got %s", line.Stage)
	}
	if len(sequence) != 2 || sequence[0] != event.EtapeChanged || sequence[1] != event.StatsChanged {
		t.Errorf("Unexpected event sequence %v", sequence)
	}
}

func TestRejectionDoesNotMutate(t *testing.T) {
	rep := newStubRepo(baseLine())
	bus := event.NewBus(nil)
	e := NewEngine(rep, bus, nil, nil)
	published := false
	bus.Subscribe(event.StatsChanged, func(interface{}) { published = true })

	target := workflow.StagePrinting
	_, rej, err := e.RequestTransition(context.Background(), "l1", workflow.TransitionRequest{Stage: &target}, workflow.RoleWorkshop)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if rej == nil || rej.Reason != workflow.ReasonRoleForbidden {
		t.Fatalf("Expected role_forbidden got %v", rej)
	}
	got, _ := rep.GetOrderLine(context.Background(), "l1")
	if got.Stage != workflow.StageGraphicWork || got.Version != 0 {
		t.Errorf("Rejection mutated the line: %+v", got)
	}
	if published {
		t.Error("Rejection must not publish events")
	}
}

func TestStaleWriteRetriesOnce(t *testing.T) {
	rep := newStubRepo(baseLine())
	rep.staleHits = 1
	bus := event.NewBus(nil)
	e := NewEngine(rep, bus, nil, nil)

	target := workflow.StagePrinting
	line, rej, err := e.RequestTransition(context.Background(), "l1", workflow.TransitionRequest{Stage: &target}, workflow.RoleSales)
	if err != nil || rej != nil {
		t.Fatalf("Expected retry to succeed, err=%v rej=%v", err, rej)
	}
	if line.Stage != workflow.StagePrinting {
		t.Errorf("Expected printing got %s", line.Stage)
	}

	//a second stale hit in a row surfaces to the caller
	rep2 := newStubRepo(baseLine())
	rep2.staleHits = 2
	e2 := NewEngine(rep2, bus, nil, nil)
	_, _, err = e2.RequestTransition(context.Background(), "l1", workflow.TransitionRequest{Stage: &target}, workflow.RoleSales)
	if err != workflow.ErrStaleWrite {
		t.Errorf("Expected ErrStaleWrite got %v", err)
	}
}

func TestStatusDonePublishesStatusChanged(t *testing.T) {
	line := baseLine()
	line.Stage = stageForDone()
	rep := newStubRepo(line)
	bus := event.NewBus(nil)
	e := NewEngine(rep, bus, nil, nil)

	var got *event.LineChange
	bus.Subscribe(event.StatusChanged, func(p interface{}) {
		c := p.(event.LineChange)
		got = &c
	})

	done := workflow.StatusDone
	_, rej, err := e.RequestTransition(context.Background(), "l1", workflow.TransitionRequest{Status: &done}, workflow.RoleSales)
	if err != nil || rej != nil {
		t.Fatalf("Unexpected err=%v rej=%v", err, rej)
	}
	if got == nil || got.ToStatus != "done" || got.FromStatus != "in_progress" {
		t.Errorf("Unexpected status payload %+v", got)
	}
}

//stageForDone returns a stage that passes the done gate of baseLine
func stageForDone() workflow.Stage {
	//baseLine has no workshop, any stage passes
	return workflow.StageFinishing
}

func TestTechnicalProblemAppendsNote(t *testing.T) {
	line := baseLine()
	line.Note = "first issue"
	rep := newStubRepo(line)
	e := NewEngine(rep, event.NewBus(nil), nil, nil)

	tp := workflow.StatusTechnicalProblem
	committed, rej, err := e.RequestTransition(context.Background(), "l1",
		workflow.TransitionRequest{Status: &tp, Issue: "plate scratched"}, workflow.RoleWorkshop)
	if err != nil || rej != nil {
		t.Fatalf("Unexpected err=%v rej=%v", err, rej)
	}
	if committed.Note != "first issue\nplate scratched" {
		t.Errorf("Expected appended note got %q", committed.Note)
	}
}

func TestDeleteLinePublishes(t *testing.T) {
	rep := newStubRepo(baseLine())
	bus := event.NewBus(nil)
	e := NewEngine(rep, bus, nil, nil)

	deleted := false
	bus.Subscribe(event.OrderDeleted, func(p interface{}) {
		snap := p.(event.LineSnapshot)
		if snap.Line.ID != "l1" {
			t.Errorf("Unexpected snapshot %+v", snap)
		}
		deleted = true
	})
	if err := e.DeleteLine(context.Background(), "l1"); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if !deleted {
		t.Error("Expected orderDeleted event")
	}
	if _, err := rep.GetOrderLine(context.Background(), "l1"); err != workflow.ErrNotFound {
		t.Errorf("Expected line gone got %v", err)
	}
}
