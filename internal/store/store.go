// Package store provides durable whole-value storage for ticket records and
// guild configuration. Implementations guarantee atomic replace per key;
// serializing concurrent writers on the same key is the coordinator's job.
package store

import (
	"context"
	"errors"

	"github.com/ideahatch/booking-bot/internal/domain"
)

// ErrNotFound is returned when no value exists for the key.
var ErrNotFound = errors.New("not found")

// RecordStore persists one TicketRecord per ticket id.
type RecordStore interface {
	Get(ctx context.Context, ticketID string) (*domain.TicketRecord, error)
	Put(ctx context.Context, rec *domain.TicketRecord) error
	Delete(ctx context.Context, ticketID string) error
}

// GuildConfigStore persists one GuildConfig per guild id.
type GuildConfigStore interface {
	Get(ctx context.Context, guildID string) (*domain.GuildConfig, error)
	Set(ctx context.Context, guildID string, cfg *domain.GuildConfig) error
}
