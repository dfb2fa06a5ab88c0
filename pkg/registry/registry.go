// Package registry implements the node-local drop-location registry: the
// central map from drop ID to the local root directory that drop's files
// live under (§3, "A central registry maps drop ID to local root
// directory").
//
// There is no on-disk format mandated by spec.md for this registry. It is
// implemented as an embedded SQLite database via database/sql and
// modernc.org/sqlite, grounded on the sibling example's Storage type
// (keysaver-server/storage.go), which persists similarly small per-node
// key/value records the same way.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/syncrnet/syncr/pkg/dropmeta"
	"github.com/syncrnet/syncr/pkg/syncerr"
	"github.com/syncrnet/syncr/pkg/syncrcrypto"
)

// Registry is the node-local store mapping a drop ID to its local root
// directory, current known version, and ownership role.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite-backed registry at dbPath.
func Open(dbPath string) (*Registry, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, syncerr.NewIO("open drop registry", dbPath, err)
	}
	r := &Registry{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS drops (
		drop_id     TEXT PRIMARY KEY,
		root_dir    TEXT NOT NULL,
		is_owner    INTEGER NOT NULL DEFAULT 0,
		version     INTEGER NOT NULL DEFAULT 0,
		nonce       INTEGER NOT NULL DEFAULT 0,
		updated_at  INTEGER NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	if err != nil {
		return syncerr.NewIO("init registry schema", "", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (r *Registry) Close() error { return r.db.Close() }

// Entry is a single drop's registry record.
type Entry struct {
	DropID  []byte
	RootDir string
	IsOwner bool
	Version dropmeta.DropVersion
}

// Put inserts or updates the registry entry for a drop.
func (r *Registry) Put(e Entry) error {
	key := syncrcrypto.B64Encode(e.DropID)
	_, err := r.db.Exec(`
		INSERT INTO drops (drop_id, root_dir, is_owner, version, nonce, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(drop_id) DO UPDATE SET
			root_dir = excluded.root_dir,
			is_owner = excluded.is_owner,
			version = excluded.version,
			nonce = excluded.nonce,
			updated_at = excluded.updated_at
	`, key, e.RootDir, boolToInt(e.IsOwner), e.Version.Version, e.Version.Nonce, time.Now().Unix())
	if err != nil {
		return syncerr.NewIO("write registry entry", e.RootDir, err)
	}
	return nil
}

// Get looks up a drop's registry entry by ID.
func (r *Registry) Get(dropID []byte) (Entry, error) {
	key := syncrcrypto.B64Encode(dropID)
	row := r.db.QueryRow(`SELECT root_dir, is_owner, version, nonce FROM drops WHERE drop_id = ?`, key)

	var e Entry
	var isOwner int
	if err := row.Scan(&e.RootDir, &isOwner, &e.Version.Version, &e.Version.Nonce); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, syncerr.NewNotFound(fmt.Sprintf("no registry entry for drop %s", key))
		}
		return Entry{}, syncerr.NewIO("read registry entry", "", err)
	}
	e.DropID = dropID
	e.IsOwner = isOwner != 0
	return e, nil
}

// List returns every registered drop.
func (r *Registry) List() ([]Entry, error) {
	rows, err := r.db.Query(`SELECT drop_id, root_dir, is_owner, version, nonce FROM drops`)
	if err != nil {
		return nil, syncerr.NewIO("list registry entries", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key, rootDir string
		var isOwner int
		var e Entry
		if err := rows.Scan(&key, &rootDir, &isOwner, &e.Version.Version, &e.Version.Nonce); err != nil {
			return nil, syncerr.NewIO("scan registry entry", "", err)
		}
		dropID, err := syncrcrypto.B64Decode(key)
		if err != nil {
			return nil, fmt.Errorf("decode drop id %q: %w", key, err)
		}
		e.DropID = dropID
		e.RootDir = rootDir
		e.IsOwner = isOwner != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a drop's registry entry.
func (r *Registry) Delete(dropID []byte) error {
	key := syncrcrypto.B64Encode(dropID)
	_, err := r.db.Exec(`DELETE FROM drops WHERE drop_id = ?`, key)
	if err != nil {
		return syncerr.NewIO("delete registry entry", "", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
