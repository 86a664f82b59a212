package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/atelier-imprim/prodflow/workflow"
)

//TransitionPayload is the request body of POST /api/order/{id}/transition
type TransitionPayload struct {
	Stage  string `json:"stage,omitempty"`
	Status string `json:"status,omitempty"`
	Issue  string `json:"issue,omitempty"`
	Role   string `json:"role"`
}

//Request converts the payload to a workflow request, empty means unchanged
func (t TransitionPayload) Request() workflow.TransitionRequest {
	var req workflow.TransitionRequest
	if t.Stage != "" {
		s := workflow.Stage(t.Stage)
		req.Stage = &s
	}
	if t.Status != "" {
		s := workflow.Status(t.Status)
		req.Status = &s
	}
	req.Issue = t.Issue
	return req
}

func errUnknownRole(role string) error {
	return fmt.Errorf("unknown role %q", role)
}

// BaseResponse is the base response envelope
type BaseResponse struct {
	Result render.Renderer `json:"result"`
}

//Render implement Renderer
func (b *BaseResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type message string

func (m message) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// LineResponse is the response payload for one order line, annotated
// with the computed urgency and display bucket of the moment.
type LineResponse struct {
	Line    workflow.OrderLine `json:"line"`
	Urgency workflow.Urgency   `json:"urgency"`
	Bucket  int                `json:"bucket"`
}

//Render implement Renderer
func (o *LineResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type lineList []LineResponse

func (l lineList) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

//NewLineResponse creates new LineResponse
func NewLineResponse(line workflow.OrderLine, now time.Time) *BaseResponse {
	return &BaseResponse{Result: &LineResponse{
		Line:    line,
		Urgency: workflow.ClassifyLine(line, now),
		Bucket:  workflow.DisplayBucket(line.Deadline, now),
	}}
}

//InfoTotalResponse represents the totals dto
type InfoTotalResponse struct {
	Active  int `json:"active"`
	Overdue int `json:"overdue"`
}

//Render implement Renderer
func (i *InfoTotalResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

//--
// Error response payloads & renderers
//--

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`           // user-level status message
	Reason     string `json:"reason,omitempty"` // rejection category
	Detail     string `json:"detail,omitempty"` // rejection sub reason
	ErrorText  string `json:"error,omitempty"`  // application-level error message, for debugging
}

//Render implement Renderer
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if e.HTTPStatusCode == 0 {
		e.HTTPStatusCode = 400
	}
	if e.ErrorText == "" && e.Err != nil {
		e.ErrorText = e.Err.Error()
	}
	render.Status(r, e.HTTPStatusCode)
	return nil
}

//ErrInvalidRequest creates ErrInvalidRequest response from error
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 400,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

//ErrRejected renders a structured transition rejection, the caller gets
//the discriminated reason to build precise guidance
func ErrRejected(rej *workflow.Rejection) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: 422,
		StatusText:     "Transition rejected.",
		Reason:         string(rej.Reason),
		Detail:         rej.Detail,
		ErrorText:      rej.Message,
	}
}

//ErrConflict - the line changed underneath the request twice in a row
func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 409,
		StatusText:     "Concurrent change, retry.",
		ErrorText:      err.Error(),
	}
}

//ErrRender creates ErrRender response from error
func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: 422,
		StatusText:     "Error rendering response.",
		ErrorText:      err.Error(),
	}
}

//ErrNotFound creates ErrNotFound response
var ErrNotFound = &ErrResponse{HTTPStatusCode: 404, StatusText: "Resource not found."}
