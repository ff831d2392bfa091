package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/internal/events"
	"github.com/ideahatch/booking-bot/internal/lifecycle"
	"github.com/ideahatch/booking-bot/internal/observability"
	"github.com/ideahatch/booking-bot/internal/policy"
	"github.com/ideahatch/booking-bot/internal/store"
	"github.com/ideahatch/booking-bot/pkg/util"
)

// TicketCoordinator makes each reviewer action observably atomic: it owns
// the per-ticket critical section, drives the state machine, persists the
// result, and returns the side-effect instructions the boundary must issue.
// It never calls the chat layer itself.
type TicketCoordinator struct {
	records    store.RecordStore
	guilds     store.GuildConfigStore
	policy     *policy.AccessPolicy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	locks      *lockTable

	// approveFollowup posts the extra "ticket approved" notice after the
	// confirmation message.
	approveFollowup bool
}

// CoordinatorDependencies bundles construction inputs.
type CoordinatorDependencies struct {
	Records         store.RecordStore
	Guilds          store.GuildConfigStore
	Policy          *policy.AccessPolicy
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	ApproveFollowup bool
}

// NewTicketCoordinator constructs the coordinator.
func NewTicketCoordinator(deps CoordinatorDependencies) *TicketCoordinator {
	return &TicketCoordinator{
		records:         deps.Records,
		guilds:          deps.Guilds,
		policy:          deps.Policy,
		dispatcher:      deps.Dispatcher,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		locks:           newLockTable(),
		approveFollowup: deps.ApproveFollowup,
	}
}

// SubmitInput describes an accepted booking form. TicketID is the freshly
// created ticket channel's id.
type SubmitInput struct {
	TicketID    string
	GuildID     string
	RequesterID string
	Fields      []domain.Field
}

// GuildConfig resolves the ticketing configuration for a guild, rejecting
// with ConfigMissing when setup has not run.
func (c *TicketCoordinator) GuildConfig(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	cfg, err := c.guilds.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewConfigMissing(guildID)
		}
		return nil, util.NewStoreFailure(err)
	}
	return cfg, nil
}

// SetGuildConfig stores the configuration written by the admin setup command.
func (c *TicketCoordinator) SetGuildConfig(ctx context.Context, guildID string, cfg *domain.GuildConfig) error {
	if err := c.guilds.Set(ctx, guildID, cfg); err != nil {
		return util.NewStoreFailure(err)
	}
	c.logger.Info("guild config saved",
		zap.String("guild_id", guildID),
		zap.String("intake_channel_id", cfg.IntakeChannelID))
	return nil
}

// Ticket loads the current record for display purposes. Mutations go
// through Perform only.
func (c *TicketCoordinator) Ticket(ctx context.Context, ticketID string) (*domain.TicketRecord, error) {
	rec, err := c.records.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewTicketGone(ticketID)
		}
		return nil, util.NewStoreFailure(err)
	}
	return rec, nil
}

// Submit creates the Pending record for a new ticket and returns the
// instructions for announcing it in the ticket channel.
func (c *TicketCoordinator) Submit(ctx context.Context, input SubmitInput) (*domain.TicketRecord, []domain.Effect, error) {
	release := c.locks.Acquire(input.TicketID)
	defer release()

	if _, err := c.records.Get(ctx, input.TicketID); err == nil {
		return nil, nil, util.NewAlreadyActioned("a ticket already exists for this channel")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, util.NewStoreFailure(err)
	}

	rec := lifecycle.NewRecord(input.TicketID, input.GuildID, input.RequesterID, input.Fields, time.Now().UTC())
	if err := c.records.Put(ctx, rec); err != nil {
		return nil, nil, util.NewStoreFailure(err)
	}

	c.metrics.RecordAction(string(domain.ActionSubmit), "ok")
	c.publish(ctx, events.Event{
		Type:     events.EventTicketSubmitted,
		TicketID: rec.ID,
		GuildID:  rec.GuildID,
		ActorID:  rec.RequesterID,
		Payload: events.TicketSubmittedPayload{
			RequesterID: rec.RequesterID,
			Fields:      rec.Fields,
		},
	})

	effects := []domain.Effect{
		{Kind: domain.EffectGrantView, UserID: rec.RequesterID},
		{
			Kind:     domain.EffectPostMessage,
			Content:  submissionSummary(rec),
			Controls: domain.ControlsReview,
		},
	}
	return rec, effects, nil
}

// Perform runs one reviewer action end to end under the ticket's critical
// section. Any error leaves the record exactly as it was and returns no
// side-effect instructions.
func (c *TicketCoordinator) Perform(ctx context.Context, ticketID, actorID string, action domain.TicketAction, payload lifecycle.Payload) (*domain.TicketRecord, []domain.Effect, error) {
	rec, old, effects, err := c.performLocked(ctx, ticketID, actorID, action, payload)
	if err != nil {
		c.metrics.RecordAction(string(action), util.ToDomainError(err).Code)
		return nil, nil, err
	}
	c.metrics.RecordAction(string(action), "ok")

	evt := events.Event{
		TicketID: ticketID,
		GuildID:  old.GuildID,
		ActorID:  actorID,
	}
	if action == domain.ActionDelete {
		evt.Type = events.EventTicketDeleted
		evt.Payload = events.TicketDeletedPayload{RequesterID: old.RequesterID}
	} else {
		evt.Type = events.EventTicketStatusChanged
		evt.Payload = events.TicketStatusChangedPayload{
			Action:    action,
			OldStatus: old.Status,
			NewStatus: rec.Status,
			Reason:    rec.DenialReason,
		}
	}
	c.publish(ctx, evt)
	return rec, effects, nil
}

func (c *TicketCoordinator) performLocked(ctx context.Context, ticketID, actorID string, action domain.TicketAction, payload lifecycle.Payload) (next, old *domain.TicketRecord, effects []domain.Effect, err error) {
	release := c.locks.Acquire(ticketID)
	defer release()

	old, err = c.records.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, util.NewTicketGone(ticketID)
		}
		return nil, nil, nil, util.NewStoreFailure(err)
	}

	if !c.policy.CanAct(actorID, action, old) {
		return nil, nil, nil, util.NewForbidden("you are not an authorized booking manager")
	}

	next, err = lifecycle.Apply(old, action, payload, time.Now().UTC())
	if err != nil {
		return nil, nil, nil, err
	}

	if next.Status == domain.TicketStatusDeleted {
		if err := c.records.Delete(ctx, ticketID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, nil, util.NewTicketGone(ticketID)
			}
			return nil, nil, nil, util.NewStoreFailure(err)
		}
	} else {
		if err := c.records.Put(ctx, next); err != nil {
			return nil, nil, nil, util.NewStoreFailure(err)
		}
	}

	c.logger.Info("ticket action applied",
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", actorID),
		zap.String("action", string(action)),
		zap.String("old_status", string(old.Status)),
		zap.String("new_status", string(next.Status)))

	return next, old, c.effectsFor(action, actorID, next), nil
}

func (c *TicketCoordinator) effectsFor(action domain.TicketAction, actorID string, rec *domain.TicketRecord) []domain.Effect {
	requester := rec.RequesterID
	switch action {
	case domain.ActionApprove:
		effects := []domain.Effect{
			{Kind: domain.EffectDisableControls},
			{Kind: domain.EffectRevokeSend, UserID: requester},
			{Kind: domain.EffectPostMessage, Content: fmt.Sprintf(
				"Congratulations <@%s>, your booking for **%s** is confirmed!",
				requester, domain.FieldValue(rec.Fields, "event_name"))},
		}
		if c.approveFollowup {
			effects = append(effects, domain.Effect{
				Kind:    domain.EffectPostMessage,
				Content: fmt.Sprintf("Ticket approved by <@%s>", actorID),
			})
		}
		return effects
	case domain.ActionDeny:
		content := fmt.Sprintf("<@%s> The request for **%s** has been denied.",
			requester, domain.FieldValue(rec.Fields, "event_name"))
		if rec.DenialReason != "" {
			content += "\n**Reason:** " + rec.DenialReason
		}
		return []domain.Effect{
			{Kind: domain.EffectDisableControls},
			{Kind: domain.EffectRevokeSend, UserID: requester},
			{Kind: domain.EffectPostMessage, Content: content},
		}
	case domain.ActionClose:
		return []domain.Effect{
			{Kind: domain.EffectDisableControls},
			{Kind: domain.EffectRevokeView, UserID: requester},
			{Kind: domain.EffectPostMessage,
				Content:  fmt.Sprintf("Ticket closed by <@%s>", actorID),
				Controls: domain.ControlsClosed},
		}
	case domain.ActionReopen:
		return []domain.Effect{
			{Kind: domain.EffectRestoreView, UserID: requester},
			{Kind: domain.EffectDeleteMessage},
			{Kind: domain.EffectPostMessage, Content: fmt.Sprintf("🔓 Ticket re-opened by <@%s>", actorID)},
		}
	case domain.ActionDelete:
		return []domain.Effect{
			{Kind: domain.EffectPostMessage, Content: "⛔ Deleting this ticket permanently..."},
			{Kind: domain.EffectDeleteChannel},
		}
	}
	return nil
}

func submissionSummary(rec *domain.TicketRecord) string {
	out := fmt.Sprintf("🎶 **Booking Request: %s**\n👤 Requester: <@%s>",
		domain.FieldValue(rec.Fields, "event_name"), rec.RequesterID)
	for _, f := range rec.Fields {
		if f.Name == "event_name" || f.Value == "" {
			continue
		}
		out += fmt.Sprintf("\n**%s:** %s", fieldLabel(f.Name), f.Value)
	}
	return out
}

func fieldLabel(name string) string {
	switch name {
	case "event_date":
		return "Date & Time"
	case "venue":
		return "Venue"
	case "budget":
		return "Budget (INR)"
	case "description":
		return "Details"
	}
	return name
}

func (c *TicketCoordinator) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = c.dispatcher.Publish(ctx, event)
}
