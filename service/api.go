/*
Package service is the local HTTP surface of the flow engine: transition
requests, line listing and the websocket entry point.
*/
package service

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/atelier-imprim/prodflow/dispatcher"
	"github.com/atelier-imprim/prodflow/push"
	"github.com/atelier-imprim/prodflow/reminder"
	"github.com/atelier-imprim/prodflow/workflow"
)

//Config to create mux
type Config struct {
	Engine    *dispatcher.Engine
	Rep       workflow.Repository
	Scheduler *reminder.Scheduler
	Hub       *push.Hub
	Clock     workflow.Clock
}

type api struct {
	mux    *chi.Mux
	config *Config
}

func (a *api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

//New creates http.Handler
func New(config *Config) http.Handler {
	if config.Clock == nil {
		config.Clock = workflow.SystemClock{}
	}
	return &api{
		config: config,
		mux:    createRouter(config),
	}
}

//createRouter creates chi.Mux
func createRouter(config *Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Route("/order", func(r chi.Router) {
			r.Post("/", config.CreateLine)
			r.Route("/{orderID}", func(r chi.Router) {
				r.With(config.OrderCtx).Get("/", config.GetLine)
				r.Put("/", config.UpdateLine)
				r.Delete("/", config.DeleteLine)
				r.Post("/transition", config.Transition)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", config.ListLines)
		})

		r.Route("/info", func(r chi.Router) {
			r.Get("/total", config.GetTotal)
		})
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		push.ServeWS(config.Hub, w, r)
	})
	return r
}

type ctxKey string

const lineKey ctxKey = "orderLine"

//OrderCtx middleware is used to load an OrderLine from the repository.
//In case it is missing we stop here and return 404.
func (c *Config) OrderCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			render.Render(w, r, ErrNotFound)
			return
		}
		line, err := c.Rep.GetOrderLine(r.Context(), orderID)
		if err == workflow.ErrNotFound {
			render.Render(w, r, ErrNotFound)
			return
		}
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		ctx := context.WithValue(r.Context(), lineKey, &line)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

//Transition runs a transition request through the engine
func (c *Config) Transition(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		render.Render(w, r, ErrNotFound)
		return
	}

	var req TransitionPayload
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	role := workflow.Role(req.Role)
	if !role.Valid() {
		render.Render(w, r, ErrInvalidRequest(errUnknownRole(req.Role)))
		return
	}

	line, rej, err := c.Engine.RequestTransition(r.Context(), orderID, req.Request(), role)
	if err == workflow.ErrNotFound {
		render.Render(w, r, ErrNotFound)
		return
	}
	if err == workflow.ErrStaleWrite {
		render.Render(w, r, ErrConflict(err))
		return
	}
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if rej != nil {
		render.Render(w, r, ErrRejected(rej))
		return
	}

	if err := render.Render(w, r, NewLineResponse(line, c.Clock.Now())); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

// GetLine returns the specific line. It just fetches it right off the
// context loaded by OrderCtx.
func (c *Config) GetLine(w http.ResponseWriter, r *http.Request) {
	line := r.Context().Value(lineKey).(*workflow.OrderLine)
	if err := render.Render(w, r, NewLineResponse(*line, c.Clock.Now())); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

//ListLines returns active lines in display order, express first
func (c *Config) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := c.Rep.ListActiveOrderLines(r.Context())
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	now := c.Clock.Now()
	sort.SliceStable(lines, func(i, j int) bool {
		return workflow.CompareDisplay(lines[i], lines[j], now) < 0
	})
	res := make(lineList, 0, len(lines))
	for _, o := range lines {
		res = append(res, LineResponse{
			Line:    o,
			Urgency: workflow.ClassifyLine(o, now),
			Bucket:  workflow.DisplayBucket(o.Deadline, now),
		})
	}
	if err := render.Render(w, r, &BaseResponse{Result: res}); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

//CreateLine persists a new line through the engine
func (c *Config) CreateLine(w http.ResponseWriter, r *http.Request) {
	var line workflow.OrderLine
	if err := render.DecodeJSON(r.Body, &line); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	created, err := c.Engine.CreateLine(r.Context(), line)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.Status(r, http.StatusCreated)
	if err := render.Render(w, r, NewLineResponse(created, c.Clock.Now())); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

//UpdateLine persists changed line data (deadline, estimate, agents...)
func (c *Config) UpdateLine(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var line workflow.OrderLine
	if err := render.DecodeJSON(r.Body, &line); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	line.ID = orderID
	updated, err := c.Engine.UpdateLine(r.Context(), line)
	if err == workflow.ErrNotFound {
		render.Render(w, r, ErrNotFound)
		return
	}
	if err == workflow.ErrStaleWrite {
		render.Render(w, r, ErrConflict(err))
		return
	}
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := render.Render(w, r, NewLineResponse(updated, c.Clock.Now())); err != nil {
		render.Render(w, r, ErrRender(err))
	}
}

//DeleteLine removes a line, its reminder timer goes with it
func (c *Config) DeleteLine(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	err := c.Engine.DeleteLine(r.Context(), orderID)
	if err == workflow.ErrNotFound {
		render.Render(w, r, ErrNotFound)
		return
	}
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	render.Render(w, r, &BaseResponse{Result: message("OK")})
}

// GetTotal returns total info
func (c *Config) GetTotal(w http.ResponseWriter, r *http.Request) {
	count, err := c.Rep.CountActive(r.Context())
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	tracked := 0
	if c.Scheduler != nil {
		tracked = c.Scheduler.TrackedCount()
	}
	render.Render(w, r, &BaseResponse{Result: &InfoTotalResponse{Active: count, Overdue: tracked}})
}
