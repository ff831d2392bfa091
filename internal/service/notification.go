package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/events"
)

// NotificationService records lifecycle events in the log stream so every
// ticket has an audit trail outside the channel itself.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketSubmitted, n.handleSubmitted)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleDeleted)
}

func (n *NotificationService) handleSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketSubmitted",
		zap.String("ticket_id", event.TicketID),
		zap.String("guild_id", event.GuildID),
		zap.String("actor_id", event.ActorID))
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDeleted",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.ActorID))
	return nil
}
