package corpus

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/testcase"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS testcases (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	parent_id  TEXT    NOT NULL DEFAULT '',
	depth      INTEGER NOT NULL DEFAULT 0,
	found_at   INTEGER NOT NULL,
	executions INTEGER NOT NULL DEFAULT 0,
	exit_kind  TEXT    NOT NULL DEFAULT '',
	body       BLOB    NOT NULL
)`

// SQLite keeps testcases in a single database file. Bodies are read lazily.
type SQLite[I any] struct {
	mu           sync.RWMutex
	db           *sql.DB
	codec        input.Codec[I]
	keepInMemory bool
	entries      []*testcase.Testcase[I]
}

// NewSQLite opens (or creates) the database at path and loads the metadata of
// existing rows.
func NewSQLite[I any](path string, codec input.Codec[I], keepInMemory bool) (*SQLite[I], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus database: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create corpus schema: %w", err)
	}

	c := &SQLite[I]{db: db, codec: codec, keepInMemory: keepInMemory}
	if err := c.loadIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLite[I]) loadIndex() error {
	rows, err := c.db.Query(`SELECT id, parent_id, depth, found_at, executions, exit_kind FROM testcases ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to list testcases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, parent, exitKind string
			depth                int
			foundAt              int64
			execs                uint64
		)
		if err := rows.Scan(&id, &parent, &depth, &foundAt, &execs, &exitKind); err != nil {
			return fmt.Errorf("failed to scan testcase row: %w", err)
		}
		meta := testcase.Metadata{
			ParentID:   parent,
			Depth:      depth,
			FoundAt:    time.Unix(foundAt, 0),
			Executions: execs,
			ExitKind:   exitKind,
		}
		c.entries = append(c.entries, testcase.NewLazy(id, c.loader(id), meta))
	}
	return rows.Err()
}

func (c *SQLite[I]) loader(id string) testcase.LoadFunc[I] {
	return func() (I, error) {
		var zero I
		var body []byte
		err := c.db.QueryRow(`SELECT body FROM testcases WHERE id = ?`, id).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("testcase %s not in database: %w", id, err)
		}
		if err != nil {
			return zero, fmt.Errorf("failed to read testcase %s: %w", id, err)
		}
		return c.codec.Decode(body)
	}
}

func (c *SQLite[I]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SQLite[I]) Add(tc *testcase.Testcase[I]) (int, error) {
	if tc == nil {
		return -1, errors.New("cannot add nil testcase")
	}
	in, err := tc.LoadInput()
	if err != nil {
		return -1, err
	}
	body, err := c.codec.Encode(in)
	if err != nil {
		return -1, fmt.Errorf("failed to encode testcase %s: %w", tc.ID(), err)
	}
	meta := tc.Metadata()

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		`INSERT INTO testcases (id, parent_id, depth, found_at, executions, exit_kind, body) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tc.ID(), meta.ParentID, meta.Depth, meta.FoundAt.Unix(), meta.Executions, meta.ExitKind, body,
	)
	if err != nil {
		return -1, fmt.Errorf("failed to insert testcase %s: %w", tc.ID(), err)
	}

	tc.SetLoader(c.loader(tc.ID()))
	if !c.keepInMemory {
		tc.Unload()
	}
	c.entries = append(c.entries, tc)
	return len(c.entries) - 1, nil
}

func (c *SQLite[I]) Get(idx int) (*testcase.Testcase[I], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return entryAt(c.entries, idx)
}

func (c *SQLite[I]) Close() error {
	return c.db.Close()
}
