package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-timeline/internal/models"
)

var ErrNotFound = errors.New("event not found")

// orderLockKey identifies the advisory lock guarding order assignment.
const orderLockKey int64 = 0x6576656e7473

// DB is the events store. Outside RunInTx it talks to the pool, inside it is
// bound to the transaction.
type DB struct {
	Bun *bun.DB
	tx  bun.IDB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func (d *DB) conn() bun.IDB {
	if d.tx != nil {
		return d.tx
	}
	return d.Bun
}

// RunInTx runs fn in a transaction. Returning an error rolls it back,
// returning nil commits.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	if d.tx != nil {
		return fn(ctx, d)
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: d.Bun, tx: tx})
	})
}

func (d *DB) Ping(ctx context.Context) error {
	return d.Bun.PingContext(ctx)
}

// Insert stores a new event; ID is filled in on return.
func (d *DB) Insert(ctx context.Context, event *models.Event) error {
	_, err := d.conn().NewInsert().
		Model(event).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (d *DB) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.conn().NewSelect().
		Model(&event).
		Where("? = ?", bun.Ident("e.id"), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &event, nil
}

// List returns every event ordered by order, then start date.
func (d *DB) List(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	err := d.conn().NewSelect().
		Model(&events).
		Order("e.order ASC", "e.start_date ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Update persists the editable fields of event.
func (d *DB) Update(ctx context.Context, event models.Event) error {
	res, err := d.conn().NewUpdate().
		Model(&event).
		Column("title", "event_type", "start_date", "end_date").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event %d: %w", event.ID, err)
	}
	return expectRow(res)
}

func (d *DB) SetOrder(ctx context.Context, id int64, order int) error {
	res, err := d.conn().NewUpdate().
		Model((*models.Event)(nil)).
		Set("? = ?", bun.Ident("order"), order).
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set order of event %d: %w", id, err)
	}
	return expectRow(res)
}

func (d *DB) Delete(ctx context.Context, id int64) error {
	res, err := d.conn().NewDelete().
		Model((*models.Event)(nil)).
		Where("? = ?", bun.Ident("id"), id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return expectRow(res)
}

// MaxOrder returns the highest order value, or false when the table is empty.
func (d *DB) MaxOrder(ctx context.Context) (int, bool, error) {
	var value sql.NullInt64
	err := d.conn().NewSelect().
		Model((*models.Event)(nil)).
		ColumnExpr("MAX(?)", bun.Ident("e.order")).
		Scan(ctx, &value)
	if err != nil {
		return 0, false, fmt.Errorf("max order: %w", err)
	}
	if !value.Valid {
		return 0, false, nil
	}
	return int(value.Int64), true, nil
}

// LockOrderSequence serialises order assignment for the rest of the current
// transaction. SQLite already admits a single writer, so only PostgreSQL
// needs an explicit lock.
func (d *DB) LockOrderSequence(ctx context.Context) error {
	if d.tx == nil {
		return errors.New("order sequence lock requires a transaction")
	}
	if d.Bun.Dialect().Name() != dialect.PG {
		return nil
	}
	if _, err := d.tx.NewRaw("SELECT pg_advisory_xact_lock(?)", orderLockKey).Exec(ctx); err != nil {
		return fmt.Errorf("lock order sequence: %w", err)
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
