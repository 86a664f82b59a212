package repo

import (
	"context"
	"database/sql"
	"strings"

	//mysql driver
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/atelier-imprim/prodflow/workflow"
)

const lineColumns = "id, order_id, order_number, product_id, product_name, client, status, stage, workshop, deadline, estimated_work_minutes, print_agent, designer, has_finishing_items, express, note, version, created_at, state_date"

type basicRepository struct {
	db *sqlx.DB
}

//New creates new Repository
func New(connection string) (workflow.Repository, error) {
	rep, _, err := NewTest(connection)
	return rep, err
}

//NewTest creates new Repository, exposes mysql connection sqlx.DB
func NewTest(connection string) (workflow.Repository, *sqlx.DB, error) {
	var db *sqlx.DB
	db, err := sqlx.Connect("mysql", connection)
	if err != nil {
		return nil, nil, err
	}

	return &basicRepository{
		db: db,
	}, db, nil
}

func (b *basicRepository) Close() {
	b.db.Close()
}

func (b *basicRepository) GetOrderLine(ctx context.Context, id string) (workflow.OrderLine, error) {
	var res workflow.OrderLine
	ssql := "SELECT " + lineColumns + " FROM order_lines WHERE id = ?"
	err := b.db.GetContext(ctx, &res, ssql, id)
	if err == sql.ErrNoRows {
		return res, workflow.ErrNotFound
	}
	return res, err
}

func (b *basicRepository) ListActiveOrderLines(ctx context.Context) ([]workflow.OrderLine, error) {
	res := []workflow.OrderLine{}
	ssql := "SELECT " + lineColumns + " FROM order_lines WHERE status NOT IN (?, ?)"
	err := b.db.SelectContext(ctx, &res, ssql, workflow.StatusDelivered, workflow.StatusCancelled)
	return res, err
}

func (b *basicRepository) CommitTransition(ctx context.Context, id string, version int, stage workflow.Stage, status workflow.Status, note string) (workflow.OrderLine, error) {
	var sb strings.Builder
	sb.WriteString("UPDATE order_lines SET stage = ?, status = ?, version = version + 1, state_date = NOW()")
	if note != "" {
		//append, never replace prior notes
		sb.WriteString(", note = CONCAT(note, IF(note = '', '', '\n'), LEFT(?, 250))")
	}
	sb.WriteString(" WHERE id = ? AND version = ?")
	args := []interface{}{stage, status}
	if note != "" {
		args = append(args, note)
	}
	args = append(args, id, version)

	r, err := b.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return workflow.OrderLine{}, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return workflow.OrderLine{}, err
	}
	if n == 0 {
		//either gone or the version moved on
		if _, err := b.GetOrderLine(ctx, id); err != nil {
			return workflow.OrderLine{}, err
		}
		return workflow.OrderLine{}, workflow.ErrStaleWrite
	}
	b.logState(ctx, id, stage, status, note)
	return b.GetOrderLine(ctx, id)
}

func (b *basicRepository) logState(ctx context.Context, id string, stage workflow.Stage, status workflow.Status, message string) {
	ssql := "INSERT INTO state_log (line_id, stage, status, state_date, comment) VALUES (?, ?, ?, NOW(), LEFT(?, 250))"
	//best effort, the log never blocks a commit
	b.db.ExecContext(ctx, ssql, id, stage, status, message)
}

func (b *basicRepository) CreateOrderLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO order_lines (" + lineColumns + ")")
	sb.WriteString(" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, LEFT(?, 2000), 0, NOW(), NOW())")
	_, err := b.db.ExecContext(ctx, sb.String(),
		o.ID, o.OrderID, o.OrderNumber, o.ProductID, o.ProductName, o.Client,
		o.Status, o.Stage, o.Workshop, o.Deadline, o.EstimatedWorkMins,
		o.PrintAgent, o.Designer, o.HasFinishingItems, o.Express, o.Note)
	if err != nil {
		return workflow.OrderLine{}, err
	}
	return b.GetOrderLine(ctx, o.ID)
}

func (b *basicRepository) UpdateOrderLine(ctx context.Context, o workflow.OrderLine) (workflow.OrderLine, error) {
	var sb strings.Builder
	sb.WriteString("UPDATE order_lines SET order_number = ?, product_name = ?, client = ?, deadline = ?, estimated_work_minutes = ?,")
	sb.WriteString(" print_agent = ?, designer = ?, has_finishing_items = ?, express = ?, version = version + 1")
	sb.WriteString(" WHERE id = ? AND version = ?")
	r, err := b.db.ExecContext(ctx, sb.String(),
		o.OrderNumber, o.ProductName, o.Client, o.Deadline, o.EstimatedWorkMins,
		o.PrintAgent, o.Designer, o.HasFinishingItems, o.Express,
		o.ID, o.Version)
	if err != nil {
		return workflow.OrderLine{}, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return workflow.OrderLine{}, err
	}
	if n == 0 {
		if _, err := b.GetOrderLine(ctx, o.ID); err != nil {
			return workflow.OrderLine{}, err
		}
		return workflow.OrderLine{}, workflow.ErrStaleWrite
	}
	return b.GetOrderLine(ctx, o.ID)
}

func (b *basicRepository) DeleteOrderLine(ctx context.Context, id string) error {
	ssql := "DELETE FROM order_lines WHERE id = ?"
	r, err := b.db.ExecContext(ctx, ssql, id)
	if err != nil {
		return err
	}
	if n, err := r.RowsAffected(); err == nil && n == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

func (b *basicRepository) CountActive(ctx context.Context) (int, error) {
	var res int
	ssql := "SELECT COUNT(*) FROM order_lines WHERE status NOT IN (?, ?)"
	err := b.db.GetContext(ctx, &res, ssql, workflow.StatusDelivered, workflow.StatusCancelled)
	return res, err
}
