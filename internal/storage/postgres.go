package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS api_connections (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		provider         TEXT NOT NULL,
		provider_key     TEXT NOT NULL,
		access_token     TEXT NOT NULL,
		refresh_token    TEXT NOT NULL DEFAULT '',
		token_expires_at TIMESTAMPTZ NOT NULL,
		last_sync_at     TIMESTAMPTZ NOT NULL,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		settings         TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS api_connections_user_provider
		ON api_connections (user_id, provider_key)`,
	`CREATE TABLE IF NOT EXISTS timeline_entries (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		event_date      TIMESTAMPTZ NOT NULL,
		entry_type      TEXT NOT NULL,
		category        TEXT NOT NULL DEFAULT '',
		image_url       TEXT NOT NULL DEFAULT '',
		external_url    TEXT NOT NULL DEFAULT '',
		source_provider TEXT NOT NULL DEFAULT '',
		external_id     TEXT NOT NULL DEFAULT '',
		metadata        TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS timeline_entries_source
		ON timeline_entries (user_id, source_provider, external_id)
		WHERE source_provider <> '' AND external_id <> ''`,
	`CREATE INDEX IF NOT EXISTS timeline_entries_user_event_date
		ON timeline_entries (user_id, event_date DESC)`,
}

const (
	connectionColumns = `id, user_id, provider, access_token, refresh_token, token_expires_at,
		last_sync_at, is_active, settings, created_at, updated_at`
	entryColumns = `id, user_id, title, description, event_date, entry_type, category, image_url,
		external_url, source_provider, external_id, metadata, created_at, updated_at`
)

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Errorf("failed to ping postgres: %v", err)
		return nil, err
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			logger.Errorf("failed to apply schema: %v", err)
			return nil, fmt.Errorf("storage: apply schema: %w", err)
		}
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Detail)
	}
	return err
}

func blobString(b json.RawMessage) string {
	return string(b)
}

func blobRaw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*internal.Connection, error) {
	var c internal.Connection
	var settings string
	if err := row.Scan(&c.ID, &c.UserID, &c.Provider, &c.AccessToken, &c.RefreshToken, &c.TokenExpiresAt,
		&c.LastSyncAt, &c.IsActive, &settings, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Settings = blobRaw(settings)
	return &c, nil
}

func scanEntry(row rowScanner) (*internal.TimelineEntry, error) {
	var e internal.TimelineEntry
	var metadata string
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.EventDate, &e.EntryType, &e.Category,
		&e.ImageURL, &e.ExternalURL, &e.SourceProvider, &e.ExternalID, &metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Metadata = blobRaw(metadata)
	return &e, nil
}

// --- ConnectionRepository ---

func (p *PostgresStorage) GetConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM api_connections WHERE user_id = $1 AND provider_key = $2`,
		userID, strings.ToLower(provider))
	c, err := scanConnection(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return c, nil
}

func (p *PostgresStorage) GetActiveConnection(ctx context.Context, userID, provider string) (*internal.Connection, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM api_connections WHERE user_id = $1 AND provider_key = $2 AND is_active`,
		userID, strings.ToLower(provider))
	c, err := scanConnection(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return c, nil
}

func (p *PostgresStorage) ListConnections(ctx context.Context, userID string) ([]internal.Connection, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+connectionColumns+` FROM api_connections WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		p.logger.Errorf("failed to query connections: %v", err)
		return nil, err
	}
	defer rows.Close()

	conns := []internal.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			p.logger.Errorf("failed to scan connection: %v", err)
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (p *PostgresStorage) UpsertConnection(ctx context.Context, conn *internal.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO api_connections (`+connectionColumns+`, provider_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $11)
		ON CONFLICT (user_id, provider_key) DO UPDATE SET
			access_token     = EXCLUDED.access_token,
			refresh_token    = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE api_connections.refresh_token END,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active        = EXCLUDED.is_active,
			settings         = CASE WHEN EXCLUDED.settings <> '' THEN EXCLUDED.settings ELSE api_connections.settings END,
			updated_at       = EXCLUDED.updated_at
		RETURNING `+connectionColumns,
		conn.ID, conn.UserID, conn.Provider, conn.AccessToken, conn.RefreshToken, conn.TokenExpiresAt,
		conn.LastSyncAt, conn.IsActive, blobString(conn.Settings), now, strings.ToLower(conn.Provider))
	stored, err := scanConnection(row)
	if err != nil {
		p.logger.Errorf("failed to upsert connection: %v", err)
		return mapPgError(err)
	}
	*conn = *stored
	return nil
}

func (p *PostgresStorage) DeactivateConnection(ctx context.Context, userID, provider string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE api_connections SET is_active = FALSE, updated_at = $3 WHERE user_id = $1 AND provider_key = $2`,
		userID, strings.ToLower(provider), time.Now().UTC())
	if err != nil {
		p.logger.Errorf("failed to deactivate connection: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) UpdateLastSync(ctx context.Context, connectionID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE api_connections SET last_sync_at = $2, updated_at = $2 WHERE id = $1`, connectionID, at)
	if err != nil {
		p.logger.Errorf("failed to update last sync: %v", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- EntryRepository ---

func (p *PostgresStorage) Exists(ctx context.Context, userID, sourceProvider, externalID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM timeline_entries WHERE user_id = $1 AND source_provider = $2 AND external_id = $3)`,
		userID, sourceProvider, externalID).Scan(&exists)
	return exists, err
}

func (p *PostgresStorage) ExistingExternalIDs(ctx context.Context, userID, sourceProvider string, externalIDs []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(externalIDs) == 0 {
		return found, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT external_id FROM timeline_entries WHERE user_id = $1 AND source_provider = $2 AND external_id = ANY($3)`,
		userID, sourceProvider, externalIDs)
	if err != nil {
		p.logger.Errorf("failed to query existing external ids: %v", err)
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

const insertEntrySQL = `INSERT INTO timeline_entries (` + entryColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func entryArgs(e *internal.TimelineEntry) []any {
	return []any{e.ID, e.UserID, e.Title, e.Description, e.EventDate, string(e.EntryType), e.Category, e.ImageURL,
		e.ExternalURL, e.SourceProvider, e.ExternalID, blobString(e.Metadata), e.CreatedAt, e.UpdatedAt}
}

func (p *PostgresStorage) InsertMany(ctx context.Context, entries []internal.TimelineEntry) ([]internal.TimelineEntry, error) {
	committed := make([]internal.TimelineEntry, 0, len(entries))
	if len(entries) == 0 {
		return committed, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		var id string
		err := tx.QueryRow(ctx, insertEntrySQL+` ON CONFLICT DO NOTHING RETURNING id`, entryArgs(&e)...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			p.logger.Errorf("failed to insert timeline entry: %v", err)
			return nil, mapPgError(err)
		}
		committed = append(committed, e)
	}
	if err := tx.Commit(ctx); err != nil {
		p.logger.Errorf("failed to commit timeline entries: %v", err)
		return nil, err
	}
	return committed, nil
}

func (p *PostgresStorage) CreateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := p.pool.Exec(ctx, insertEntrySQL, entryArgs(entry)...); err != nil {
		p.logger.Errorf("failed to insert timeline entry: %v", err)
		return mapPgError(err)
	}
	return nil
}

func (p *PostgresStorage) GetEntry(ctx context.Context, userID, id string) (*internal.TimelineEntry, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM timeline_entries WHERE id = $1 AND user_id = $2`, id, userID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return e, nil
}

func (p *PostgresStorage) ListEntries(ctx context.Context, userID string) ([]internal.TimelineEntry, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+entryColumns+` FROM timeline_entries WHERE user_id = $1 ORDER BY event_date DESC`, userID)
	if err != nil {
		p.logger.Errorf("failed to query timeline entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []internal.TimelineEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			p.logger.Errorf("failed to scan timeline entry: %v", err)
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (p *PostgresStorage) UpdateEntry(ctx context.Context, entry *internal.TimelineEntry) error {
	row := p.pool.QueryRow(ctx, `
		UPDATE timeline_entries SET title = $3, description = $4, event_date = $5, entry_type = $6,
			category = $7, image_url = $8, external_url = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
		RETURNING `+entryColumns,
		entry.ID, entry.UserID, entry.Title, entry.Description, entry.EventDate, string(entry.EntryType),
		entry.Category, entry.ImageURL, entry.ExternalURL, entry.UpdatedAt)
	stored, err := scanEntry(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Errorf("failed to update timeline entry: %v", err)
		}
		return mapPgError(err)
	}
	*entry = *stored
	return nil
}

func (p *PostgresStorage) DeleteEntry(ctx context.Context, userID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM timeline_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) PurgeUser(ctx context.Context, userID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM timeline_entries WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM api_connections WHERE user_id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Compile-time assertions ---
var _ Store = (*PostgresStorage)(nil)
