package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/ppiankov/gazette/internal/model"
)

// ErrClosed is returned when the store is used after Close
var ErrClosed = errors.New("store is closed")

// Gateway bulk-inserts one run's publications; the insert is all-or-nothing
type Gateway interface {
	InsertPublications(ctx context.Context, ownerID string, pubs []model.Publication, flags model.Flags) error
}

// RunRecorder keeps an audit row per run
type RunRecorder interface {
	RecordRun(ctx context.Context, summary *model.RunSummary) error
}

// StoredPublication is a persisted publication row
type StoredPublication struct {
	ID      string
	OwnerID string
	model.Publication
	Flags     model.Flags
	CreatedAt time.Time
}

// SQLStore persists publications through database/sql
type SQLStore struct {
	db         *sql.DB
	driverName string
	bind       int
	now        func() time.Time
	newID      func() string
}

// New opens a store, eg ("postgres", "postgres://user@localhost/gazette")
// or ("sqlite3", "file:gazette.db")
func New(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s, err := NewFromDB(ctx, driver, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an open database handle
func NewFromDB(ctx context.Context, driver string, db *sql.DB) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{
		db:         db,
		driverName: driver,
		bind:       bindType(driver),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.New().String() },
	}

	if err := s.checkSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Close releases the database handle
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const insertPublicationSQL = `INSERT INTO publication (
	id, owner_id, attorney_name, title, content, published_at, source, jurisdiction,
	court, case_number, kind, url, is_read, is_important, is_sealed, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertPublications implements Gateway. Every row is written in one
// transaction; any failure rolls the whole batch back.
func (s *SQLStore) InsertPublications(ctx context.Context, ownerID string, pubs []model.Publication, flags model.Flags) (err error) {
	if s.db == nil {
		return ErrClosed
	}
	if len(pubs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := rebind(s.bind, insertPublicationSQL)
	created := s.now()

	for i, p := range pubs {
		_, err = tx.ExecContext(ctx, query,
			s.newID(), ownerID, p.AttorneyName, p.Title, p.Content, p.PublishedAt.UTC(),
			p.Source, p.Jurisdiction, p.Court, p.CaseNumber, p.Kind, p.URL,
			flags.Read, flags.Important, flags.Sealed, created,
		)
		if err != nil {
			return fmt.Errorf("insert publication %d of %d: %w", i+1, len(pubs), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const insertRunSQL = `INSERT INTO run_log (
	run_id, owner_id, record_count, sources, reports, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`

// RecordRun implements RunRecorder
func (s *SQLStore) RecordRun(ctx context.Context, summary *model.RunSummary) error {
	if s.db == nil {
		return ErrClosed
	}

	sources, err := json.Marshal(summary.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	reports, err := json.Marshal(summary.Reports)
	if err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}

	_, err = s.db.ExecContext(ctx, rebind(s.bind, insertRunSQL),
		summary.RunID, summary.OwnerID, summary.Count, string(sources), string(reports),
		summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

const listPublicationsSQL = `SELECT
	id, owner_id, attorney_name, title, content, published_at, source, jurisdiction,
	court, case_number, kind, url, is_read, is_important, is_sealed, created_at
FROM publication
WHERE owner_id = ? AND published_at >= ?
ORDER BY published_at DESC, created_at DESC
LIMIT ?`

// ListPublications returns an owner's publications dated on or after since,
// newest first
func (s *SQLStore) ListPublications(ctx context.Context, ownerID string, since time.Time, limit int) ([]StoredPublication, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.bind, listPublicationsSQL), ownerID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredPublication
	for rows.Next() {
		var r StoredPublication
		err := rows.Scan(
			&r.ID, &r.OwnerID, &r.AttorneyName, &r.Title, &r.Content, &r.PublishedAt,
			&r.Source, &r.Jurisdiction, &r.Court, &r.CaseNumber, &r.Kind, &r.URL,
			&r.Flags.Read, &r.Flags.Important, &r.Flags.Sealed, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}

	return out, nil
}
