// Package articlecache implements the ArticleCache collaborator
// (spec.md §6, C12): a SQLite-backed store of article bodies consulted
// read-only by the filter (C7) and written by at most one task at a
// time. Grounded on go-pugleaf's sql.DB-per-database pattern in
// internal/database, generalized from its multi-table schema down to
// the single-table shape this collaborator needs, and kept on the
// mattn/go-sqlite3 driver the teacher package already depends on.
package articlecache

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-while/go-pan/internal/errkind"
)

// Cache is a durable, bounded store of article bodies keyed by
// message-id.
type Cache struct {
	db      *sql.DB
	mux     sync.Mutex // serializes writers; reads use the pool directly
	maxMegs int64
	size    int64 // cached running total of bytes stored, atomic
}

// Open creates (or reuses) a SQLite database at path and ensures its
// schema exists.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL", path))
	if err != nil {
		return nil, errkind.New(errkind.IO, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS article_bodies (
		message_id TEXT PRIMARY KEY,
		bytes      BLOB NOT NULL,
		size       INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errkind.New(errkind.IO, err)
	}
	c := &Cache{db: db, maxMegs: 0}
	row := db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM article_bodies`)
	var total int64
	if err := row.Scan(&total); err != nil {
		db.Close()
		return nil, errkind.New(errkind.IO, err)
	}
	atomic.StoreInt64(&c.size, total)
	return c, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Contains reports whether messageID's body is cached.
func (c *Cache) Contains(messageID string) bool {
	row := c.db.QueryRow(`SELECT 1 FROM article_bodies WHERE message_id = ?`, messageID)
	var one int
	return row.Scan(&one) == nil
}

// GetMessage returns the concatenated bodies for messageIDs, in the
// order requested. Any missing message-id is an error: the filter
// layer is expected to call Contains first (spec.md §4.7).
func (c *Cache) GetMessage(messageIDs []string) ([]byte, error) {
	var out []byte
	for _, mid := range messageIDs {
		row := c.db.QueryRow(`SELECT bytes FROM article_bodies WHERE message_id = ?`, mid)
		var body []byte
		if err := row.Scan(&body); err != nil {
			if err == sql.ErrNoRows {
				return nil, errkind.Newf(errkind.User, "articlecache: %s not cached", mid)
			}
			return nil, errkind.New(errkind.IO, err)
		}
		out = append(out, body...)
	}
	return out, nil
}

// Put stores body for messageID durably before returning (spec.md §5
// "writes ... are made durable before the write returns"), evicting
// the oldest entries first if the write would exceed the configured
// max size.
func (c *Cache) Put(messageID string, body []byte) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.maxMegs > 0 {
		limit := c.maxMegs * 1024 * 1024
		for atomic.LoadInt64(&c.size)+int64(len(body)) > limit {
			if !c.evictOldestLocked() {
				break
			}
		}
	}

	var oldSize int64
	if err := c.db.QueryRow(`SELECT size FROM article_bodies WHERE message_id = ?`, messageID).Scan(&oldSize); err != nil && err != sql.ErrNoRows {
		return errkind.New(errkind.IO, err)
	}
	res, err := c.db.Exec(`INSERT OR REPLACE INTO article_bodies (message_id, bytes, size) VALUES (?, ?, ?)`,
		messageID, body, len(body))
	if err != nil {
		return errkind.New(errkind.IO, err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return errkind.New(errkind.IO, err)
	}
	atomic.AddInt64(&c.size, int64(len(body))-oldSize)
	return nil
}

func (c *Cache) evictOldestLocked() bool {
	row := c.db.QueryRow(`SELECT message_id, size FROM article_bodies ORDER BY rowid ASC LIMIT 1`)
	var mid string
	var size int64
	if err := row.Scan(&mid, &size); err != nil {
		return false
	}
	if _, err := c.db.Exec(`DELETE FROM article_bodies WHERE message_id = ?`, mid); err != nil {
		return false
	}
	atomic.AddInt64(&c.size, -size)
	return true
}

// Clear deletes every cached body.
func (c *Cache) Clear() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, err := c.db.Exec(`DELETE FROM article_bodies`); err != nil {
		return errkind.New(errkind.IO, err)
	}
	atomic.StoreInt64(&c.size, 0)
	return nil
}

// SetMaxMegs sets the cache's size cap in megabytes; 0 means
// unbounded.
func (c *Cache) SetMaxMegs(n int64) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.maxMegs = n
}
