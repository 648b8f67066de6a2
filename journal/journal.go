// Package journal stores the events of simulation runs in Postgres.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gitlab.com/slon/readerswriters/event"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rw_events (
			ID SERIAL PRIMARY KEY,
			RunID UUID NOT NULL,
			Seq INT NOT NULL,
			Strategy VARCHAR(64) NOT NULL,
			Role VARCHAR(16) NOT NULL,
			At TIMESTAMPTZ NOT NULL,
			UNIQUE (RunID, Seq)
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create rw_events: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves the events of one run in emission order.
func (s *Store) Record(ctx context.Context, runID uuid.UUID, events []event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rw_events (RunID, Seq, Strategy, Role, At) VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, runID.String(), i, ev.Strategy, string(ev.Role), ev.At); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Events loads the events of a run.
func (s *Store) Events(ctx context.Context, runID uuid.UUID) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT Strategy, Role, At FROM rw_events WHERE RunID = $1 ORDER BY Seq",
		runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var role string
		if err := rows.Scan(&ev.Strategy, &role, &ev.At); err != nil {
			return nil, err
		}
		ev.Role = event.Role(role)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Runs lists run ids recorded for a strategy.
func (s *Store) Runs(ctx context.Context, strategy string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT RunID::text FROM rw_events WHERE Strategy = $1",
		strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.FromString(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
