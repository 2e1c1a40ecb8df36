// Package archive persists and exports discoveries: a SQLite store keeps
// records durable across process restarts, JSON and Parquet writers render
// session results for downstream analysis.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/ramanujan-go/pkg/errors"
	"github.com/XiaoConstantine/ramanujan-go/pkg/oracle"
	"github.com/XiaoConstantine/ramanujan-go/pkg/swarm"
)

// SQLiteArchive stores discoveries in a SQLite database. Expression text is
// the primary key and inserts use OR IGNORE, so the database carries the same
// first-write-wins semantics as the in-session discovery list.
type SQLiteArchive struct {
	db   *sql.DB
	path string

	initialized sync.Once
}

var _ swarm.DiscoverySink = (*SQLiteArchive)(nil)

// NewSQLiteArchive opens (or creates) the archive at path. Use ":memory:"
// for an ephemeral archive.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	a := &SQLiteArchive{db: db, path: path}
	if err := a.ensureInitialized(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLiteArchive) ensureInitialized() error {
	var initErr error
	a.initialized.Do(func() {
		// WAL lets snapshot reads proceed while a session writes.
		if _, err := a.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.StorageFailed, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS discoveries (
            expression TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            target     TEXT NOT NULL,
            value      TEXT NOT NULL,
            error      TEXT NOT NULL,
            elegance   TEXT NOT NULL,
            complexity INTEGER NOT NULL,
            generation INTEGER NOT NULL,
            elapsed_ms INTEGER NOT NULL,
            novelty    TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );

        CREATE INDEX IF NOT EXISTS idx_discoveries_target
        ON discoveries(target);
        `
		if _, err := a.db.Exec(query); err != nil {
			initErr = errors.Wrap(err, errors.StorageFailed, "failed to initialize discoveries table")
			return
		}
	})
	return initErr
}

// SaveDiscovery implements swarm.DiscoverySink. A rediscovered expression is
// a no-op; the stored record stays.
func (a *SQLiteArchive) SaveDiscovery(ctx context.Context, sessionID, target string, d *swarm.Discovery) error {
	if err := errors.CheckContext(ctx, "save discovery"); err != nil {
		return err
	}

	var novelty []byte
	if len(d.Novelty) > 0 {
		var err error
		novelty, err = json.Marshal(d.Novelty)
		if err != nil {
			return errors.Wrap(err, errors.StorageFailed, "failed to encode novelty matches")
		}
	}

	_, err := a.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO discoveries
            (expression, session_id, target, value, error, elegance, complexity, generation, elapsed_ms, novelty)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Expression, sessionID, target, d.Value, d.Error, d.Elegance,
		d.Complexity, d.Generation, d.ElapsedMS, novelty)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to insert discovery"),
			errors.Fields{"expression": d.Expression},
		)
	}
	return nil
}

// ListDiscoveries returns stored discoveries for a target in insertion
// order. An empty target lists everything.
func (a *SQLiteArchive) ListDiscoveries(ctx context.Context, target string) ([]*swarm.Discovery, error) {
	query := `
        SELECT expression, value, error, elegance, complexity, generation, elapsed_ms, novelty
        FROM discoveries`
	args := []interface{}{}
	if target != "" {
		query += " WHERE target = ?"
		args = append(args, target)
	}
	query += " ORDER BY rowid"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to query discoveries")
	}
	defer rows.Close()

	var out []*swarm.Discovery
	for rows.Next() {
		var d swarm.Discovery
		var novelty []byte
		if err := rows.Scan(&d.Expression, &d.Value, &d.Error, &d.Elegance,
			&d.Complexity, &d.Generation, &d.ElapsedMS, &novelty); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "failed to scan discovery row")
		}
		if len(novelty) > 0 {
			var matches []oracle.Match
			if err := json.Unmarshal(novelty, &matches); err == nil {
				d.Novelty = matches
			}
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.StorageFailed, "failed to iterate discovery rows")
	}
	return out, nil
}

// Count returns the total number of stored discoveries.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM discoveries").Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.StorageFailed, "failed to count discoveries")
	}
	return n, nil
}

// Close releases the underlying database handle.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
