package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_connections (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		provider         TEXT NOT NULL,
		provider_key     TEXT NOT NULL,
		access_token     TEXT NOT NULL,
		refresh_token    TEXT NOT NULL DEFAULT '',
		token_expires_at TIMESTAMP NOT NULL,
		last_sync_at     TIMESTAMP NOT NULL,
		is_active        BOOLEAN NOT NULL DEFAULT 1,
		settings         TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS api_connections_user_provider
		ON api_connections (user_id, provider_key)`,
	`CREATE TABLE IF NOT EXISTS timeline_entries (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		event_date      TIMESTAMP NOT NULL,
		entry_type      TEXT NOT NULL,
		category        TEXT NOT NULL DEFAULT '',
		image_url       TEXT NOT NULL DEFAULT '',
		external_url    TEXT NOT NULL DEFAULT '',
		source_provider TEXT NOT NULL DEFAULT '',
		external_id     TEXT NOT NULL DEFAULT '',
		metadata        TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS timeline_entries_source
		ON timeline_entries (user_id, source_provider, external_id)
		WHERE source_provider <> '' AND external_id <> ''`,
	`CREATE INDEX IF NOT EXISTS timeline_entries_user_event_date
		ON timeline_entries (user_id, event_date DESC)`,
}

// SQLiteStorage keeps a single connection open; SQLite allows one writer.
type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
}

func NewSQLiteStorage(path string, logger internal.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			logger.Errorf("failed to apply sqlite schema: %v", err)
			return nil, fmt.Errorf("storage: apply schema: %w", err)
		}
	}
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func mapSQLiteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// --- ConnectionRepository ---

func (s *SQLiteStorage) GetConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM api_connections WHERE user_id = ? AND provider_key = ?`,
		userID, strings.ToLower(provider))
	c, err := scanConnection(row)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return c, nil
}

func (s *SQLiteStorage) GetActiveConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	c, err := s.GetConnection(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *SQLiteStorage) ListConnections(ctx context.Context, userID string) ([]internal.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM api_connections WHERE user_id = ? ORDER BY provider`, userID)
	if err != nil {
		s.logger.Errorf("failed to query connections: %v", err)
		return nil, err
	}
	defer rows.Close()

	conns := []internal.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (s *SQLiteStorage) UpsertConnection(ctx context.Context, conn *internal.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_connections (`+connectionColumns+`, provider_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider_key) DO UPDATE SET
			access_token     = excluded.access_token,
			refresh_token    = CASE WHEN excluded.refresh_token <> '' THEN excluded.refresh_token ELSE api_connections.refresh_token END,
			token_expires_at = excluded.token_expires_at,
			is_active        = excluded.is_active,
			settings         = CASE WHEN excluded.settings <> '' THEN excluded.settings ELSE api_connections.settings END,
			updated_at       = excluded.updated_at`,
		conn.ID, conn.UserID, conn.Provider, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt,
		conn.LastSyncAt, conn.IsActive, blobString(conn.Settings), now, now, strings.ToLower(conn.Provider))
	if err != nil {
		s.logger.Errorf("failed to upsert connection: %v", err)
		return mapSQLiteError(err)
	}
	stored, err := s.GetConnection(ctx, conn.UserID, conn.Provider)
	if err != nil {
		return err
	}
	*conn = *stored
	return nil
}

func (s *SQLiteStorage) DeactivateConnection(ctx context.Context, userID, provider string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_connections SET is_active = 0, updated_at = ? WHERE user_id = ? AND provider_key = ?`,
		time.Now().UTC(), userID, strings.ToLower(provider))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteStorage) UpdateLastSync(ctx context.Context, connectionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_connections SET last_sync_at = ?, updated_at = ? WHERE id = ?`, at, at, connectionID)
	if err != nil {
		s.logger.Errorf("failed to update last sync: %v", err)
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- EntryRepository ---

func (s *SQLiteStorage) Exists(ctx context.Context, userID, sourceProvider, externalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM timeline_entries WHERE user_id = ? AND source_provider = ? AND external_id = ?)`,
		userID, sourceProvider, externalID).Scan(&exists)
	return exists, err
}

func (s *SQLiteStorage) ExistingExternalIDs(ctx context.Context, userID, sourceProvider string, externalIDs []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(externalIDs) == 0 {
		return found, nil
	}
	args := make([]any, 0, len(externalIDs)+2)
	args = append(args, userID, sourceProvider)
	for _, id := range externalIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(externalIDs)), ",")
	rows, err := s.db.QueryContext(ctx, `SELECT external_id FROM timeline_entries WHERE user_id = ? AND source_provider = ? AND external_id IN (`+placeholders+`)`, args...)
	if err != nil {
		s.logger.Errorf("failed to query existing external ids: %v", err)
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

const insertEntrySQLite = `INSERT INTO timeline_entries (` + entryColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStorage) InsertMany(ctx context.Context, entries []internal.TimelineEntry) ([]internal.TimelineEntry, error) {
	committed := make([]internal.TimelineEntry, 0, len(entries))
	if len(entries) == 0 {
		return committed, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		res, err := tx.ExecContext(ctx, insertEntrySQLite+` ON CONFLICT DO NOTHING`, entryArgs(&e)...)
		if err != nil {
			s.logger.Errorf("failed to insert timeline entry: %v", err)
			return nil, mapSQLiteError(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		committed = append(committed, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, insertEntrySQLite, entryArgs(entry)...); err != nil {
		s.logger.Errorf("failed to insert timeline entry: %v", err)
		return mapSQLiteError(err)
	}
	return nil
}

func (s *SQLiteStorage) GetEntry(ctx context.Context, userID, id string) (*internal.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM timeline_entries WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return e, nil
}

func (s *SQLiteStorage) ListEntries(ctx context.Context, userID string) ([]internal.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM timeline_entries WHERE user_id = ? ORDER BY event_date DESC`, userID)
	if err != nil {
		s.logger.Errorf("failed to query timeline entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []internal.TimelineEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) UpdateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE timeline_entries SET title = ?, description = ?, event_date = ?, entry_type = ?,
			category = ?, image_url = ?, external_url = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		entry.Title, entry.Description, entry.EventDate, string(entry.EntryType), entry.Category,
		entry.ImageURL, entry.ExternalURL, entry.UpdatedAt, entry.ID, entry.UserID)
	if err != nil {
		s.logger.Errorf("failed to update timeline entry: %v", err)
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	stored, err := s.GetEntry(ctx, entry.UserID, entry.ID)
	if err != nil {
		return err
	}
	*entry = *stored
	return nil
}

func (s *SQLiteStorage) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timeline_entries WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *SQLiteStorage) PurgeUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_entries WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM api_connections WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Compile-time assertions ---
var _ Store = (*SQLiteStorage)(nil)
