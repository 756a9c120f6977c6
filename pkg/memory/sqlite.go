package memory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/voxhollow/cortex/pkg/turns"
)

// SQLiteStore persists episodic memory (finalized turns) and the mid-stream
// fragment mirror in a local SQLite database. Recall is LIKE-based term
// matching ordered by recency; vector indexing belongs to the external
// memory service and is out of scope here.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS episodic_turns (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	received_at   TIMESTAMP NOT NULL,
	finalized_at  TIMESTAMP,
	category      TEXT NOT NULL,
	raw_text      TEXT NOT NULL,
	response_text TEXT NOT NULL,
	record        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodic_turns_session ON episodic_turns(session_id, received_at);

CREATE TABLE IF NOT EXISTS fragments (
	session_id TEXT NOT NULL,
	speaker    TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fragments_session ON fragments(session_id, created_at);
`

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent fire-and-forget writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize sqlite schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadWorking(ctx context.Context, sessionID string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT speaker, text FROM fragments WHERE session_id = ? ORDER BY created_at DESC LIMIT 5`,
		sessionID)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer func() { _ = rows.Close() }()

	recent := []string{}
	for rows.Next() {
		var speaker, text string
		if err := rows.Scan(&speaker, &text); err != nil {
			return nil, errors.Wrap(ErrUnavailable, err.Error())
		}
		recent = append(recent, speaker+": "+text)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	out := map[string]any{}
	if len(recent) > 0 {
		out["recent_fragments"] = recent
	}
	return out, nil
}

func (s *SQLiteStore) RecallSemantic(ctx context.Context, query string, limit int) ([]turns.RecalledMemory, error) {
	if limit <= 0 {
		limit = 5
	}
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []turns.RecalledMemory{}, nil
	}

	// Match on the longest term; score by total term overlap afterwards.
	longest := terms[0]
	for _, t := range terms {
		if len(t) > len(longest) {
			longest = t
		}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_text, response_text FROM episodic_turns
		 WHERE lower(raw_text || ' ' || response_text) LIKE ?
		 ORDER BY received_at DESC LIMIT ?`,
		"%"+longest+"%", limit*4)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer func() { _ = rows.Close() }()

	out := []turns.RecalledMemory{}
	for rows.Next() {
		var raw, response string
		if err := rows.Scan(&raw, &response); err != nil {
			return nil, errors.Wrap(ErrUnavailable, err.Error())
		}
		score := overlapScore(raw+" "+response, terms)
		if score == 0 {
			continue
		}
		out = append(out, turns.RecalledMemory{Content: response, Layer: "episodic", Score: score})
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendFragment(ctx context.Context, sessionID, speaker, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fragments (session_id, speaker, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, speaker, text, time.Now().UTC())
	return errors.Wrap(err, "append fragment")
}

func (s *SQLiteStore) PersistTurn(ctx context.Context, t *turns.Turn) error {
	record, err := yaml.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "marshal turn record")
	}
	var finalized any
	if t.Finalized() {
		finalized = t.FinalizedAt.UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO episodic_turns
		 (id, session_id, received_at, finalized_at, category, raw_text, response_text, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.ReceivedAt.UTC(), finalized,
		string(t.Intent.Category), t.RawText, t.ResponseText, string(record))
	return errors.Wrap(err, "persist turn")
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*InMemoryStore)(nil)
