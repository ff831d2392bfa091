// Package lifecycle owns the ticket state machine. Apply is a pure function
// of (record, action, payload); it performs no I/O and holds no state, so the
// transition rules are unit-testable without any store or chat layer.
package lifecycle

import (
	"time"

	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/pkg/util"
)

// Payload carries action-specific input: the reviewer-edited field set for
// approve, the optional free-text reason for deny.
type Payload struct {
	Fields []domain.Field
	Reason string
}

// allowedTransitions maps current status to the actions legal from it.
var allowedTransitions = map[domain.TicketStatus]map[domain.TicketAction]domain.TicketStatus{
	domain.TicketStatusPending: {
		domain.ActionApprove: domain.TicketStatusApproved,
		domain.ActionDeny:    domain.TicketStatusDenied,
	},
	domain.TicketStatusApproved: {
		domain.ActionClose: domain.TicketStatusClosed,
	},
	domain.TicketStatusDenied: {
		domain.ActionClose: domain.TicketStatusClosed,
	},
	domain.TicketStatusClosed: {
		domain.ActionReopen: domain.TicketStatusPending,
		domain.ActionDelete: domain.TicketStatusDeleted,
	},
}

// knownActions guards against dispatch targets reconstructed from stale or
// foreign custom IDs.
var knownActions = map[domain.TicketAction]struct{}{
	domain.ActionApprove: {},
	domain.ActionDeny:    {},
	domain.ActionClose:   {},
	domain.ActionReopen:  {},
	domain.ActionDelete:  {},
}

// NewRecord builds the Pending record an accepted submission introduces.
// Creation is the only path that mints a ticket id.
func NewRecord(ticketID, guildID, requesterID string, fields []domain.Field, now time.Time) *domain.TicketRecord {
	return &domain.TicketRecord{
		ID:          ticketID,
		GuildID:     guildID,
		RequesterID: requesterID,
		Status:      domain.TicketStatusPending,
		Fields:      append([]domain.Field(nil), fields...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply computes the record after action, or a rejection. The input record is
// never mutated; a rejected action returns (nil, err) and the caller must not
// persist anything.
func Apply(rec *domain.TicketRecord, action domain.TicketAction, payload Payload, now time.Time) (*domain.TicketRecord, error) {
	if _, ok := knownActions[action]; !ok {
		return nil, util.NewInvalidTransition("unknown ticket action")
	}
	next, ok := allowedTransitions[rec.Status][action]
	if !ok {
		// Legal somewhere in the table, just not from here: the ticket has
		// already been actioned by a concurrent reviewer or is in the wrong
		// phase for this button.
		return nil, util.NewAlreadyActioned("this ticket has already been actioned")
	}

	out := rec.Clone()
	out.Status = next
	out.UpdatedAt = now

	switch action {
	case domain.ActionApprove:
		// The approval modal replaces the field set atomically with the
		// status change.
		if payload.Fields != nil {
			out.Fields = append([]domain.Field(nil), payload.Fields...)
		}
	case domain.ActionDeny:
		out.DenialReason = payload.Reason
	case domain.ActionReopen:
		out.ReopenedFromClosed = true
	}
	return out, nil
}
