package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"raywatch/internal/domain"
	"raywatch/internal/repository"
	"raywatch/internal/service"
)

// Repository implements repository.Journal using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.Journal = (*Repository)(nil)

// New opens (creating if needed) the journal at dbPath. ":memory:" gives a
// private in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chargers (
		ip TEXT PRIMARY KEY,
		hostname TEXT,
		present INTEGER NOT NULL DEFAULT 0,
		status JSON,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		removed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT,
		type TEXT NOT NULL,
		ip TEXT NOT NULL,
		payload JSON NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_ip ON events(ip);
	CREATE INDEX IF NOT EXISTS idx_events_cycle ON events(cycle_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Emit implements service.Sink, tagging the event with the cycle in ctx
func (r *Repository) Emit(ctx context.Context, ev domain.Event) error {
	return r.RecordEvent(ctx, service.CycleID(ctx), ev)
}

// RecordEvent appends ev to the event log and updates the charger table
func (r *Repository) RecordEvent(ctx context.Context, cycleID string, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	now := timeToMillis(r.now())
	addr := ev.Address()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (cycle_id, type, ip, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, stringToNull(cycleID), string(ev.Type), addr, string(payload), now)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	switch ev.Type {
	case domain.EventStatusUpdate:
		status, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		hostname, _ := ev.Data.Hostname.(string)
		err = r.upsertPresent(ctx, tx, addr, hostname, sql.NullString{String: string(status), Valid: true}, now)
		if err != nil {
			return err
		}

	case domain.EventAppeared:
		if err := r.upsertPresent(ctx, tx, addr, ev.Hostname, sql.NullString{}, now); err != nil {
			return err
		}

	case domain.EventRemoved:
		_, err = tx.ExecContext(ctx, `
			UPDATE chargers SET present = 0, removed_at = ? WHERE ip = ?
		`, now, addr)
		if err != nil {
			return fmt.Errorf("failed to mark charger removed: %w", err)
		}
	}

	return tx.Commit()
}

func (r *Repository) upsertPresent(ctx context.Context, tx *sql.Tx, addr, hostname string, status sql.NullString, now int64) error {
	if hostname == domain.UnknownHostname {
		hostname = ""
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chargers (ip, hostname, present, status, first_seen, last_seen, removed_at)
		VALUES (?, ?, 1, ?, ?, ?, NULL)
		ON CONFLICT(ip) DO UPDATE SET
			hostname = COALESCE(excluded.hostname, chargers.hostname),
			present = 1,
			status = COALESCE(excluded.status, chargers.status),
			last_seen = excluded.last_seen,
			removed_at = NULL
	`, addr, stringToNull(hostname), status, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert charger: %w", err)
	}
	return nil
}

// ListChargers returns every charger ever seen, ordered by address
func (r *Repository) ListChargers(ctx context.Context) ([]repository.Charger, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ip, hostname, present, status, first_seen, last_seen, removed_at
		FROM chargers
		ORDER BY ip
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chargers: %w", err)
	}
	defer rows.Close()

	var chargers []repository.Charger
	for rows.Next() {
		var (
			c                   repository.Charger
			hostname, status    sql.NullString
			present, removedAt  sql.NullInt64
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&c.IP, &hostname, &present, &status, &firstSeen, &lastSeen, &removedAt); err != nil {
			return nil, fmt.Errorf("failed to scan charger: %w", err)
		}

		c.Hostname = nullToString(hostname)
		c.Present = nullToBool(present)
		if status.Valid {
			c.Status = json.RawMessage(status.String)
		}
		c.FirstSeen = millisToTime(firstSeen)
		c.LastSeen = millisToTime(lastSeen)
		c.RemovedAt = nullMillisToTimePtr(removedAt)
		chargers = append(chargers, c)
	}
	return chargers, rows.Err()
}

// RecentEvents returns up to limit events, newest first
func (r *Repository) RecentEvents(ctx context.Context, limit int) ([]repository.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cycle_id, type, ip, payload, created_at
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []repository.EventRecord
	for rows.Next() {
		var (
			e         repository.EventRecord
			cycleID   sql.NullString
			typ       string
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &cycleID, &typ, &e.IP, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CycleID = nullToString(cycleID)
		e.Type = domain.EventType(typ)
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = millisToTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
