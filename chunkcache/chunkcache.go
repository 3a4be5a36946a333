// Package chunkcache stores compiled chunks in SQLite, keyed by the SHA-256
// of their source text, so unchanged programs skip recompilation.
package chunkcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/reckon/pkg/bytecode"
)

// Store is a SQLite-backed chunk cache. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	dbPath string
	log    commonlog.Logger
}

// Open opens (creating if needed) the cache database at dbPath.
// The special path ":memory:" gives a private in-memory cache.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every new connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		key        TEXT PRIMARY KEY,
		version    INTEGER NOT NULL,
		data       BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
		log:    commonlog.GetLogger("reckon.cache"),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Key returns the cache key for source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached chunk for source. Entries written by another
// bytecode version, or that fail validation, are reported as misses.
func (s *Store) Get(source string) (*bytecode.Chunk, bool, error) {
	var (
		version int
		data    []byte
	)
	err := s.db.QueryRow("SELECT version, data FROM chunks WHERE key = ?", Key(source)).Scan(&version, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying chunk: %w", err)
	}

	if version != int(bytecode.BytecodeVersion) {
		s.log.Debugf("ignoring cached chunk with bytecode version %d", version)
		return nil, false, nil
	}

	chunk, err := bytecode.UnmarshalChunk(data)
	if err != nil {
		s.log.Warningf("ignoring undecodable cached chunk: %v", err)
		return nil, false, nil
	}
	if err := chunk.Validate(); err != nil {
		s.log.Warningf("ignoring invalid cached chunk: %v", err)
		return nil, false, nil
	}
	return chunk, true, nil
}

// Put stores chunk as the compiled form of source, replacing any older entry.
func (s *Store) Put(source string, chunk *bytecode.Chunk) error {
	data, err := bytecode.MarshalChunk(chunk)
	if err != nil {
		return fmt.Errorf("encoding chunk: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO chunks (key, version, data, created_at) VALUES (?, ?, ?, ?)",
		Key(source), int(chunk.Version), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// Len returns the number of cached chunks.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Clear removes every cached chunk.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}
