// Package gateway is the chat-layer boundary. It translates Discord
// interactions into coordinator calls and executes the side-effect
// instructions the coordinator returns. No lifecycle decision lives here.
package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/ai"
	"github.com/ideahatch/booking-bot/internal/config"
	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/internal/policy"
	"github.com/ideahatch/booking-bot/internal/service"
)

// Discord owns the bot session.
type Discord struct {
	session     *discordgo.Session
	coordinator *service.TicketCoordinator
	policy      *policy.AccessPolicy
	assistant   *ai.Client
	relay       RelayStore
	logger      *zap.Logger
	ownerID     string
	reviewerIDs []string
}

// Dependencies bundles construction inputs for the gateway.
type Dependencies struct {
	Coordinator *service.TicketCoordinator
	Policy      *policy.AccessPolicy
	Assistant   *ai.Client
	Relay       RelayStore
	Logger      *zap.Logger
}

// New builds the gateway and its session. Open must be called to connect.
func New(cfg config.DiscordConfig, deps Dependencies) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	d := &Discord{
		session:     session,
		coordinator: deps.Coordinator,
		policy:      deps.Policy,
		assistant:   deps.Assistant,
		relay:       deps.Relay,
		logger:      deps.Logger,
		ownerID:     cfg.OwnerID,
		reviewerIDs: cfg.Admins,
	}
	session.AddHandler(d.onInteractionCreate)
	session.AddHandler(d.onMessageCreate)
	return d, nil
}

// Open connects and registers the application commands.
func (d *Discord) Open(ctx context.Context) error {
	if err := d.session.Open(); err != nil {
		return err
	}
	appID := d.session.State.User.ID
	for _, cmd := range applicationCommands() {
		if _, err := d.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			d.logger.Error("register command failed", zap.String("command", cmd.Name), zap.Error(err))
		}
	}
	d.logger.Info("discord gateway connected", zap.String("user_id", appID))
	return nil
}

// Close disconnects the session.
func (d *Discord) Close() error {
	return d.session.Close()
}

func applicationCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "booking",
			Description: "Commands for the artist booking system.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setup",
					Description: "[Admin] Deploys and saves the artist booking panel.",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Channel for the 'Create Booking' button.",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						},
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "category",
							Description:  "Category for new booking channels.",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
						},
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "transcript_channel",
							Description:  "Channel for transcripts.",
							Required:     true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "title",
							Description: "Panel title override.",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "description",
							Description: "Panel description override.",
						},
					},
				},
			},
		},
		{
			Name:        "ask",
			Description: "Ask the assistant a question (booking managers only).",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prompt",
					Description: "What you want to ask",
					Required:    true,
				},
			},
		},
	}
}

// ApplyEffects executes coordinator instructions against the ticket channel.
// source is the control message the interaction came from; instructions that
// target it are skipped with a warning when no source is available (the HTTP
// bridge path).
func (d *Discord) ApplyEffects(channelID string, source *discordgo.Message, effects []domain.Effect) error {
	for _, e := range effects {
		target := e.ChannelID
		if target == "" {
			target = channelID
		}
		var err error
		switch e.Kind {
		case domain.EffectPostMessage:
			_, err = d.session.ChannelMessageSendComplex(target, &discordgo.MessageSend{
				Content:    e.Content,
				Components: controlsFor(e.Controls),
			})
		case domain.EffectGrantView, domain.EffectRestoreView:
			err = d.session.ChannelPermissionSet(target, e.UserID, discordgo.PermissionOverwriteTypeMember,
				discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, 0)
		case domain.EffectRevokeSend:
			err = d.session.ChannelPermissionSet(target, e.UserID, discordgo.PermissionOverwriteTypeMember,
				discordgo.PermissionViewChannel, discordgo.PermissionSendMessages)
		case domain.EffectRevokeView:
			err = d.session.ChannelPermissionSet(target, e.UserID, discordgo.PermissionOverwriteTypeMember,
				0, discordgo.PermissionViewChannel|discordgo.PermissionSendMessages)
		case domain.EffectDisableControls:
			if source == nil {
				d.logger.Warn("no source message to disable controls on", zap.String("channel_id", target))
				continue
			}
			disabled := disableComponents(source.Components)
			_, err = d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
				Channel:    target,
				ID:         source.ID,
				Components: &disabled,
			})
		case domain.EffectDeleteMessage:
			msgID := e.MessageID
			if msgID == "" && source != nil {
				msgID = source.ID
			}
			if msgID == "" {
				d.logger.Warn("no message to delete", zap.String("channel_id", target))
				continue
			}
			err = d.session.ChannelMessageDelete(target, msgID)
		case domain.EffectDeleteChannel:
			_, err = d.session.ChannelDelete(target)
		default:
			d.logger.Warn("unknown effect kind", zap.String("kind", string(e.Kind)))
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", e.Kind, err)
		}
	}
	return nil
}

// ExecuteEffects runs instructions with no source control message. Bridge
// actions come in here.
func (d *Discord) ExecuteEffects(channelID string, effects []domain.Effect) error {
	return d.ApplyEffects(channelID, nil, effects)
}

// PostMessage sends plain content into a channel (used by the HTTP bridge).
func (d *Discord) PostMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func controlsFor(set domain.ControlSet) []discordgo.MessageComponent {
	switch set {
	case domain.ControlsReview:
		return reviewControls(false)
	case domain.ControlsClosed:
		return closedControls(false)
	}
	return nil
}

func reviewControls(disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Approve", Style: discordgo.SuccessButton, Disabled: disabled,
				CustomID: ActionCustomID(domain.ActionApprove), Emoji: &discordgo.ComponentEmoji{Name: "✅"}},
			discordgo.Button{Label: "Deny", Style: discordgo.DangerButton, Disabled: disabled,
				CustomID: ActionCustomID(domain.ActionDeny), Emoji: &discordgo.ComponentEmoji{Name: "✖️"}},
			discordgo.Button{Label: "Close", Style: discordgo.SecondaryButton, Disabled: disabled,
				CustomID: ActionCustomID(domain.ActionClose), Emoji: &discordgo.ComponentEmoji{Name: "🔒"}},
		}},
	}
}

func closedControls(disabled bool) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Re-Open", Style: discordgo.SuccessButton, Disabled: disabled,
				CustomID: ActionCustomID(domain.ActionReopen), Emoji: &discordgo.ComponentEmoji{Name: "🔓"}},
			discordgo.Button{Label: "Transcript", Style: discordgo.SecondaryButton, Disabled: disabled,
				CustomID: CustomID(nameTranscript), Emoji: &discordgo.ComponentEmoji{Name: "📄"}},
			discordgo.Button{Label: "Delete", Style: discordgo.DangerButton, Disabled: disabled,
				CustomID: ActionCustomID(domain.ActionDelete), Emoji: &discordgo.ComponentEmoji{Name: "⛔"}},
		}},
	}
}

func panelControls() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Book The Artist", Style: discordgo.PrimaryButton,
				CustomID: CustomID(nameCreate), Emoji: &discordgo.ComponentEmoji{Name: "🎤"}},
		}},
	}
}

// disableComponents rebuilds a component tree with every button disabled.
func disableComponents(components []discordgo.MessageComponent) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(components))
	for _, comp := range components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			out = append(out, comp)
			continue
		}
		newRow := discordgo.ActionsRow{}
		for _, inner := range row.Components {
			if btn, ok := inner.(*discordgo.Button); ok {
				b := *btn
				b.Disabled = true
				newRow.Components = append(newRow.Components, b)
			} else {
				newRow.Components = append(newRow.Components, inner)
			}
		}
		out = append(out, newRow)
	}
	return out
}
