package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ideahatch/booking-bot/internal/domain"
)

// PostgresRecordStore keeps one row per ticket with the whole record as
// JSONB. An upsert replaces the full value, which gives the same
// all-or-nothing publish as the file store's rename.
type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRecordStore instantiates the store.
func NewPostgresRecordStore(pool *pgxpool.Pool) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

// EnsureSchema creates the tables used by the Postgres-backed stores.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS booking_tickets (
            ticket_id TEXT PRIMARY KEY,
            record JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS booking_guild_configs (
            guild_id TEXT PRIMARY KEY,
            config JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`
	_, err := pool.Exec(ctx, ddl)
	return err
}

// Get loads the record for ticketID.
func (s *PostgresRecordStore) Get(ctx context.Context, ticketID string) (*domain.TicketRecord, error) {
	const query = `SELECT record FROM booking_tickets WHERE ticket_id=$1`
	var rec domain.TicketRecord
	if err := s.pool.QueryRow(ctx, query, ticketID).Scan(&rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Put replaces the whole record.
func (s *PostgresRecordStore) Put(ctx context.Context, rec *domain.TicketRecord) error {
	const query = `
        INSERT INTO booking_tickets (ticket_id, record, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (ticket_id) DO UPDATE SET record=EXCLUDED.record, updated_at=NOW()`
	_, err := s.pool.Exec(ctx, query, rec.ID, rec)
	return err
}

// Delete removes the record for ticketID.
func (s *PostgresRecordStore) Delete(ctx context.Context, ticketID string) error {
	const query = `DELETE FROM booking_tickets WHERE ticket_id=$1`
	cmd, err := s.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresGuildConfigStore mirrors FileGuildConfigStore on Postgres.
type PostgresGuildConfigStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGuildConfigStore instantiates the store.
func NewPostgresGuildConfigStore(pool *pgxpool.Pool) *PostgresGuildConfigStore {
	return &PostgresGuildConfigStore{pool: pool}
}

// Get returns the config for guildID.
func (s *PostgresGuildConfigStore) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	const query = `SELECT config FROM booking_guild_configs WHERE guild_id=$1`
	var cfg domain.GuildConfig
	if err := s.pool.QueryRow(ctx, query, guildID).Scan(&cfg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

// Set overwrites the config for guildID.
func (s *PostgresGuildConfigStore) Set(ctx context.Context, guildID string, cfg *domain.GuildConfig) error {
	const query = `
        INSERT INTO booking_guild_configs (guild_id, config, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (guild_id) DO UPDATE SET config=EXCLUDED.config, updated_at=NOW()`
	_, err := s.pool.Exec(ctx, query, guildID, cfg)
	return err
}
