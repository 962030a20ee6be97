// Package codecache keeps the compiled function images of past builds in
// SQLite, so a build can report which functions changed since the last
// one and peers can be checked against a known-good image.
package codecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/aul/vm/dist"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates that nothing is stored under the requested name.
var ErrNotFound = errors.New("codecache: not found")

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	project TEXT PRIMARY KEY,
	root    BLOB NOT NULL,
	created INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS functions (
	project TEXT NOT NULL,
	key     TEXT NOT NULL,
	hash    BLOB NOT NULL,
	data    BLOB NOT NULL,
	PRIMARY KEY (project, key)
);
CREATE TABLE IF NOT EXISTS peers (
	project    TEXT NOT NULL,
	name       TEXT NOT NULL,
	clean      INTEGER NOT NULL,
	tainted    INTEGER NOT NULL,
	bad_chunks INTEGER NOT NULL,
	last_seen  INTEGER NOT NULL,
	banned     INTEGER NOT NULL,
	PRIMARY KEY (project, name)
);`

// Cache is a handle on one cache database.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens or creates the cache at path. ":memory:" gives a private
// in-memory cache.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection, so an in-memory database is shared by every query
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Cache{db: db, path: path, log: commonlog.GetLogger("aul.codecache")}, nil
}

// DefaultPath is $AUL_CACHE, or ~/.aul/codecache.db.
func DefaultPath() (string, error) {
	if p := os.Getenv("AUL_CACHE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".aul", "codecache.db"), nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Put replaces the stored build of project with im.
func (c *Cache) Put(ctx context.Context, project string, im *dist.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM functions WHERE project = ?", project); err != nil {
		return fmt.Errorf("clearing functions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO functions (project, key, hash, data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, fi := range im.Funcs {
		data, err := dist.MarshalFuncImage(fi)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, project, fi.Key, im.Hashes[i][:], data); err != nil {
			return fmt.Errorf("saving %s: %w", fi.Key, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO builds (project, root, created) VALUES (?, ?, ?)",
		project, im.Root[:], time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("saving build: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing build: %w", err)
	}
	c.log.Infof("cached %d function(s) of %s", len(im.Funcs), project)
	return nil
}

// Root returns the root hash of the stored build of project.
func (c *Cache) Root(ctx context.Context, project string) ([32]byte, error) {
	var root [32]byte
	var raw []byte
	err := c.db.QueryRowContext(ctx, "SELECT root FROM builds WHERE project = ?", project).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return root, ErrNotFound
	}
	if err != nil {
		return root, fmt.Errorf("querying build: %w", err)
	}
	copy(root[:], raw)
	return root, nil
}

// Get returns one stored function image and its hash.
func (c *Cache) Get(ctx context.Context, project, key string) (*dist.FuncImage, [32]byte, error) {
	var h [32]byte
	var raw, data []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT hash, data FROM functions WHERE project = ? AND key = ?", project, key,
	).Scan(&raw, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, h, ErrNotFound
	}
	if err != nil {
		return nil, h, fmt.Errorf("querying function: %w", err)
	}
	fi, err := dist.UnmarshalFuncImage(data)
	if err != nil {
		return nil, h, err
	}
	copy(h[:], raw)
	return fi, h, nil
}

// Load rebuilds the stored image of project. Stored hashes are checked
// against the decoded functions.
func (c *Cache) Load(ctx context.Context, project string) (*dist.Image, error) {
	root, err := c.Root(ctx, project)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx,
		"SELECT key, hash, data FROM functions WHERE project = ? ORDER BY key", project)
	if err != nil {
		return nil, fmt.Errorf("querying functions: %w", err)
	}
	defer rows.Close()

	var funcs []*dist.FuncImage
	for rows.Next() {
		var key string
		var raw, data []byte
		if err := rows.Scan(&key, &raw, &data); err != nil {
			return nil, fmt.Errorf("reading function: %w", err)
		}
		fi, err := dist.UnmarshalFuncImage(data)
		if err != nil {
			return nil, err
		}
		h, err := fi.Hash()
		if err != nil {
			return nil, err
		}
		if string(h[:]) != string(raw) {
			return nil, fmt.Errorf("codecache: %s: stored hash does not match its code", key)
		}
		funcs = append(funcs, fi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading functions: %w", err)
	}

	im, err := dist.NewImage(funcs)
	if err != nil {
		return nil, err
	}
	if im.Root != root {
		return nil, fmt.Errorf("codecache: %s: stored root hash does not match its functions", project)
	}
	return im, nil
}

// Check compares im with the stored build of project. A project without a
// stored build reports every function as extra.
func (c *Cache) Check(ctx context.Context, project string, im *dist.Image) (dist.Drift, error) {
	stored, err := c.Load(ctx, project)
	if errors.Is(err, ErrNotFound) {
		stored, err = dist.NewImage(nil)
	}
	if err != nil {
		return dist.Drift{}, err
	}
	return dist.Compare(im, stored), nil
}

// Peers returns the peer ledger of project, empty if none was saved.
func (c *Cache) Peers(ctx context.Context, project string, threshold int) (*dist.Peers, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, clean, tainted, bad_chunks, last_seen, banned FROM peers WHERE project = ? ORDER BY name",
		project)
	if err != nil {
		return nil, fmt.Errorf("querying peers: %w", err)
	}
	defer rows.Close()

	var known []dist.Peer
	for rows.Next() {
		var p dist.Peer
		var seen int64
		if err := rows.Scan(&p.Name, &p.Clean, &p.Tainted, &p.BadChunks, &seen, &p.Banned); err != nil {
			return nil, fmt.Errorf("reading peer: %w", err)
		}
		p.LastSeen = time.Unix(seen, 0)
		known = append(known, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading peers: %w", err)
	}
	return dist.NewPeers(threshold, known...), nil
}

// SavePeers replaces the stored peer ledger of project.
func (c *Cache) SavePeers(ctx context.Context, project string, peers *dist.Peers) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM peers WHERE project = ?", project); err != nil {
		return fmt.Errorf("clearing peers: %w", err)
	}
	for _, p := range peers.List() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO peers (project, name, clean, tainted, bad_chunks, last_seen, banned) VALUES (?, ?, ?, ?, ?, ?, ?)",
			project, p.Name, p.Clean, p.Tainted, p.BadChunks, p.LastSeen.Unix(), p.Banned,
		); err != nil {
			return fmt.Errorf("saving peer %s: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing peers: %w", err)
	}
	return nil
}
