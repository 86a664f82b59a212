package workflow

import (
	"context"
	"errors"
)

//ErrStaleWrite - the line changed between read and commit
var ErrStaleWrite = errors.New("workflow: stale write")

//ErrNotFound - no such order line
var ErrNotFound = errors.New("workflow: order line not found")

//Repository describes the persistence of order lines.
//CommitTransition must be atomic with respect to concurrent commits
//on the same id, the Version field carries the optimistic check.
type Repository interface {
	GetOrderLine(ctx context.Context, id string) (OrderLine, error)
	//ListActiveOrderLines returns every line not delivered or cancelled
	ListActiveOrderLines(ctx context.Context) ([]OrderLine, error)
	//CommitTransition applies stage/status read at version, appends note
	//when not empty, returns the committed line.
	//ErrStaleWrite when version does not match anymore.
	CommitTransition(ctx context.Context, id string, version int, stage Stage, status Status, note string) (OrderLine, error)
	CreateOrderLine(ctx context.Context, o OrderLine) (OrderLine, error)
	UpdateOrderLine(ctx context.Context, o OrderLine) (OrderLine, error)
	DeleteOrderLine(ctx context.Context, id string) error
	CountActive(ctx context.Context) (int, error)
	Close()
}
