// internal/archive/store.go
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/waveform"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps captures read back from Flash after they complete.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Capture is one archived capture.
type Capture struct {
	ID      string
	Kind    waveform.Kind
	Slot    int
	EID     uint32
	State   waveform.State
	SavedAt time.Time

	Samples []waveform.SampleSet
}

// Open creates or opens the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: connect: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores c under a new time-ordered ID and returns it.
func (s *Store) Save(ctx context.Context, c Capture) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	blob := bus.PutWords(waveform.MarshalSets(c.Samples))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO captures (id, kind, slot, eid, sets, state, saved_at, samples)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.Kind.String(), c.Slot, c.EID, len(c.Samples), c.State.String(), s.now().UnixMilli(), blob,
	)
	if err != nil {
		return "", fmt.Errorf("archive: save %s capture: %w", c.Kind, err)
	}
	return id, nil
}

// List returns every capture without samples, oldest first.
func (s *Store) List(ctx context.Context) ([]Capture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, slot, eid, state, saved_at, sets FROM captures ORDER BY saved_at, id`)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var (
			c           Capture
			kind, state string
			savedAt     int64
			sets        int
		)
		if err := rows.Scan(&c.ID, &kind, &c.Slot, &c.EID, &state, &savedAt, &sets); err != nil {
			return nil, fmt.Errorf("archive: list: %w", err)
		}
		c.Kind = parseKind(kind)
		c.State = parseState(state)
		c.SavedAt = time.UnixMilli(savedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Load returns one capture with its samples.
func (s *Store) Load(ctx context.Context, id string) (Capture, error) {
	var (
		c           Capture
		kind, state string
		savedAt     int64
		blob        []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, slot, eid, state, saved_at, samples FROM captures WHERE id = ?`, id,
	).Scan(&c.ID, &kind, &c.Slot, &c.EID, &state, &savedAt, &blob)
	if err != nil {
		return Capture{}, fmt.Errorf("archive: load %s: %w", id, err)
	}

	c.Kind = parseKind(kind)
	c.State = parseState(state)
	c.SavedAt = time.UnixMilli(savedAt)
	c.Samples = waveform.UnmarshalSets(bus.Words(blob))
	return c, nil
}

func parseKind(s string) waveform.Kind {
	for k := waveform.Trip; k < waveform.NumCaptureKinds; k++ {
		if k.String() == s {
			return k
		}
	}
	return waveform.NumCaptureKinds
}

func parseState(s string) waveform.State {
	for st := waveform.StateIdle; st <= waveform.StateFailed; st++ {
		if st.String() == s {
			return st
		}
	}
	return waveform.StateIdle
}
