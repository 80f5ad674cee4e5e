// Package sqlite implements repository.SessionRepository on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"wifiscout/internal/domain"
	"wifiscout/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.SessionRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.SessionRepository = (*Repository)(nil)

// New opens (or creates) the database at dbPath
func New(dbPath string) (*Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	pragmas := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	}
	for _, p := range pragmas {
		if _, err := r.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		ssid TEXT NOT NULL,
		known INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		outcome TEXT NOT NULL,
		stage TEXT,
		error TEXT,
		network TEXT,
		artifact TEXT,
		hosts_up INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_hosts (
		session_id TEXT NOT NULL,
		ip TEXT NOT NULL,
		hostname TEXT,
		mac TEXT,
		open_ports TEXT,
		PRIMARY KEY (session_id, ip),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_ssid ON sessions(ssid);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSession inserts or replaces a session and its hosts
func (r *Repository) SaveSession(ctx context.Context, session *domain.ScanSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ssid = excluded.ssid,
			known = excluded.known,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			outcome = excluded.outcome,
			stage = excluded.stage,
			error = excluded.error,
			network = excluded.network,
			artifact = excluded.artifact,
			hosts_up = excluded.hosts_up
	`, sessionInsertArgs(session)...); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_hosts WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear hosts for %s: %w", session.ID, err)
	}

	if len(session.Hosts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO session_hosts (`+hostColumns+`) VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare host statement: %w", err)
		}
		defer stmt.Close()

		for _, host := range session.Hosts {
			args, err := hostInsertArgs(session.ID, host)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert host %s: %w", host.IP, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSession loads one session with its hosts
func (r *Repository) GetSession(ctx context.Context, id string) (*domain.ScanSession, error) {
	var row sessionRow
	err := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id).
		Scan(row.scanArgs()...)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	hosts, err := r.hostsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	session.Hosts = hosts[id]
	return session, nil
}

// ListSessions returns the newest sessions first
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]domain.ScanSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.ScanSession
	var ids []string
	for rows.Next() {
		var row sessionRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
		ids = append(ids, session.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	rows.Close()

	hosts, err := r.hostsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Hosts = hosts[sessions[i].ID]
	}
	return sessions, nil
}

// Stats returns aggregate counts across all sessions
func (r *Repository) Stats(ctx context.Context) (*repository.Stats, error) {
	var stats repository.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(hosts_up), 0)
		FROM sessions
	`, string(domain.OutcomeSuccess), string(domain.OutcomeFailure)).
		Scan(&stats.Sessions, &stats.Succeeded, &stats.Failed, &stats.HostsUp)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return &stats, nil
}

// hostsFor loads hosts for the given sessions keyed by session ID
func (r *Repository) hostsFor(ctx context.Context, ids []string) (map[string][]domain.ScannedHost, error) {
	result := make(map[string][]domain.ScannedHost, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	stmt, err := r.db.PrepareContext(ctx, `
		SELECT `+hostColumns+` FROM session_hosts WHERE session_id = ? ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare hosts query: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		rows, err := stmt.QueryContext(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to query hosts: %w", err)
		}
		for rows.Next() {
			var row hostRow
			if err := rows.Scan(row.scanArgs()...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan host: %w", err)
			}
			host, err := row.toDomain()
			if err != nil {
				rows.Close()
				return nil, err
			}
			result[id] = append(result[id], host)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating hosts: %w", err)
		}
	}
	return result, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
