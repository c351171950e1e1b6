// Package store provides an optional SQLite-backed collector: a pipe-chain
// step that persists whatever an item happens to be as a row of (url, kind,
// payload, collected_at) and passes the item on unchanged.
// Adapted from the teacher's internal/storage/database.go +
// internal/storage/schema.go connection-setup and prepared-insert pattern,
// repointed from a page-audit schema onto a single generic crawled-item
// table — this module has no notion of a page-audit object, only whatever
// value a user's parser yields.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cobweb-crawl/cobweb/internal/message"
)

// Schema creates the one table this collector needs.
const schema = `
CREATE TABLE IF NOT EXISTS crawled_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	collected_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_crawled_items_url ON crawled_items(url);
`

// SQLiteCollector persists items to a SQLite database, one row per item,
// the way the teacher's Database.InsertURL/InsertFetch persisted one row
// per crawl event.
type SQLiteCollector struct {
	db *sql.DB
	mu sync.Mutex

	insertStmt *sql.Stmt
}

// Open creates (or reuses) a SQLite database at path and ensures the
// schema exists, mirroring the teacher's NewDatabase + Initialize pair and
// its WAL/NORMAL pragma tuning for a single-writer workload.
func Open(path string) (*SQLiteCollector, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO crawled_items (url, kind, payload) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: preparing insert: %w", err)
	}

	return &SQLiteCollector{db: db, insertStmt: stmt}, nil
}

// Collect persists one item against the URL that produced it. Its
// signature doesn't match a Spider.Collect callback (func(item
// interface{})), which never sees the response — register Pipe via
// Chains().UsePipeWithResponse instead (spec.md §4.3's pipe chain, not the
// empty-chain "spider's collect method is called with the item" fallback).
func (c *SQLiteCollector) Collect(url string, item interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := json.Marshal(item)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", item))
	}

	kind := fmt.Sprintf("%T", item)
	if _, err := c.insertStmt.Exec(url, kind, string(payload)); err != nil {
		return
	}
}

// Pipe adapts Collect to the hooks.PipeWithResponseFunc signature
// (item, response) -> item, so it can be registered directly via
// Chains().UsePipeWithResponse to persist every item that reaches the end
// of the pipe chain while still letting it flow on to collect (§4.3).
func (c *SQLiteCollector) Pipe(item interface{}, res *message.Response) interface{} {
	url := ""
	if res != nil {
		url = res.URL
	}
	c.Collect(url, item)
	return item
}

// Count returns the number of rows persisted so far, for tests and
// diagnostics.
func (c *SQLiteCollector) Count() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM crawled_items`).Scan(&n)
	return n, err
}

// Close releases the prepared statement and database handle.
func (c *SQLiteCollector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.insertStmt != nil {
		c.insertStmt.Close()
	}
	return c.db.Close()
}
