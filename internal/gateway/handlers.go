package gateway

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/internal/lifecycle"
	"github.com/ideahatch/booking-bot/internal/service"
	"github.com/ideahatch/booking-bot/internal/transcript"
	"github.com/ideahatch/booking-bot/pkg/util"
)

// formFields defines the booking form, in presentation order.
var formFields = []struct {
	Name        string
	Label       string
	Placeholder string
	Paragraph   bool
	Optional    bool
}{
	{Name: "event_name", Label: "Event Name", Placeholder: "e.g., Starlight Music Festival"},
	{Name: "event_date", Label: "Proposed Date & Time", Placeholder: "e.g., 25 Dec 2025 at 9:00 PM IST"},
	{Name: "venue", Label: "Venue / Location", Placeholder: "e.g., Discord Server / Mumbai, India"},
	{Name: "budget", Label: "Proposed Budget (INR)", Placeholder: "e.g., 75000"},
	{Name: "description", Label: "Event Details", Paragraph: true, Optional: true},
}

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "booking":
			d.handleBookingCommand(i)
		case "ask":
			d.handleAsk(i)
		}
	case discordgo.InteractionMessageComponent:
		target, ok := ParseCustomID(i.MessageComponentData().CustomID)
		if !ok {
			return
		}
		d.handleComponent(i, target)
	case discordgo.InteractionModalSubmit:
		target, ok := ParseCustomID(i.ModalSubmitData().CustomID)
		if !ok {
			return
		}
		d.handleModal(i, target)
	}
}

func (d *Discord) handleComponent(i *discordgo.InteractionCreate, target PendingAction) {
	ctx := context.Background()
	switch target.Name {
	case nameCreate:
		d.handleCreateButton(ctx, i)
	case nameTranscript:
		d.handleTranscript(ctx, i)
	default:
		action, ok := target.LifecycleAction()
		if !ok {
			return
		}
		switch action {
		case domain.ActionApprove:
			d.openApprovalModal(ctx, i)
		case domain.ActionDeny:
			d.openDenialModal(ctx, i)
		default:
			d.performFromInteraction(ctx, i, action, lifecycle.Payload{})
		}
	}
}

func (d *Discord) handleModal(i *discordgo.InteractionCreate, target PendingAction) {
	ctx := context.Background()
	switch target.Name {
	case nameForm:
		d.handleFormSubmit(ctx, i)
	case nameApproveForm:
		fields := modalFields(i)
		// the approval modal shows only the short inputs; fields it does
		// not carry (description) keep their submitted values
		if rec, err := d.coordinator.Ticket(ctx, i.ChannelID); err == nil {
			fields = mergeUnedited(rec.Fields, fields)
		}
		d.performFromInteraction(ctx, i, domain.ActionApprove, lifecycle.Payload{Fields: fields})
	case nameDenyForm:
		d.performFromInteraction(ctx, i, domain.ActionDeny, lifecycle.Payload{Reason: modalValue(i, "reason")})
	}
}

// handleBookingCommand handles /booking setup.
func (d *Discord) handleBookingCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 || data.Options[0].Name != "setup" {
		return
	}
	if !d.policy.IsReviewer(actorID(i)) {
		d.respondEphemeral(i, "❌ **Access Denied**")
		return
	}

	opts := map[string]*discordgo.ApplicationCommandInteractionDataOption{}
	for _, opt := range data.Options[0].Options {
		opts[opt.Name] = opt
	}
	channel := opts["channel"].ChannelValue(d.session)
	category := opts["category"].ChannelValue(d.session)
	transcriptCh := opts["transcript_channel"].ChannelValue(d.session)

	cfg := &domain.GuildConfig{
		IntakeChannelID:     channel.ID,
		TicketCategoryID:    category.ID,
		TranscriptChannelID: transcriptCh.ID,
	}
	if err := d.coordinator.SetGuildConfig(context.Background(), i.GuildID, cfg); err != nil {
		d.respondEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}

	title := "🎤 Artist Booking"
	description := "Ready to make your event unforgettable? Click the button below!"
	if opt, ok := opts["title"]; ok && opt.StringValue() != "" {
		title = opt.StringValue()
	}
	if opt, ok := opts["description"]; ok && opt.StringValue() != "" {
		description = opt.StringValue()
	}
	_, err := d.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: description,
			Color:       0xAA00AA,
		}},
		Components: panelControls(),
	})
	if err != nil {
		d.logger.Error("panel deploy failed", zap.String("guild_id", i.GuildID), zap.Error(err))
		d.respondEphemeral(i, "❌ Failed to deploy the panel.")
		return
	}
	d.respondEphemeral(i, "✅ **Panel Deployed & Saved!**")
}

func (d *Discord) handleCreateButton(ctx context.Context, i *discordgo.InteractionCreate) {
	if _, err := d.coordinator.GuildConfig(ctx, i.GuildID); err != nil {
		d.respondEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}

	components := make([]discordgo.MessageComponent, 0, len(formFields))
	for _, f := range formFields {
		style := discordgo.TextInputShort
		if f.Paragraph {
			style = discordgo.TextInputParagraph
		}
		components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    f.Name,
				Label:       f.Label,
				Placeholder: f.Placeholder,
				Style:       style,
				Required:    !f.Optional,
			},
		}})
	}
	err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   CustomID(nameForm),
			Title:      "🎤 Artist Booking Form",
			Components: components,
		},
	})
	if err != nil {
		d.logger.Error("open booking modal failed", zap.Error(err))
	}
}

// handleFormSubmit creates the ticket channel and the record.
func (d *Discord) handleFormSubmit(ctx context.Context, i *discordgo.InteractionCreate) {
	d.deferEphemeral(i)

	cfg, err := d.coordinator.GuildConfig(ctx, i.GuildID)
	if err != nil {
		d.followupEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}

	requester := actorID(i)
	channel, err := d.createTicketChannel(i.GuildID, cfg.TicketCategoryID, requester, displayName(i))
	if err != nil {
		d.logger.Error("ticket channel create failed", zap.String("guild_id", i.GuildID), zap.Error(err))
		d.followupEphemeral(i, "❌ Could not create the ticket channel.")
		return
	}

	rec, effects, err := d.coordinator.Submit(ctx, service.SubmitInput{
		TicketID:    channel.ID,
		GuildID:     i.GuildID,
		RequesterID: requester,
		Fields:      modalFields(i),
	})
	if err != nil {
		// the channel exists but the record does not; remove it so no
		// orphan channel survives
		if _, delErr := d.session.ChannelDelete(channel.ID); delErr != nil {
			d.logger.Error("orphan channel cleanup failed", zap.String("channel_id", channel.ID), zap.Error(delErr))
		}
		d.followupEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}

	if err := d.ApplyEffects(rec.ID, nil, effects); err != nil {
		d.logger.Error("submit effects failed", zap.String("ticket_id", rec.ID), zap.Error(err))
	}
	d.followupEphemeral(i, fmt.Sprintf("✅ **Success!** Your ticket is at <#%s>", channel.ID))
}

func (d *Discord) createTicketChannel(guildID, categoryID, requesterID, requesterName string) (*discordgo.Channel, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// @everyone (role id == guild id) cannot see the ticket
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: requesterID, Type: discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages},
	}
	for _, reviewerID := range d.reviewerIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: reviewerID, Type: discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}
	return d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 "booking-" + sanitizeChannelName(requesterName),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	})
}

// openApprovalModal shows the confirm form prefilled with current values.
// The status check here is cosmetic; Perform revalidates under the lock.
func (d *Discord) openApprovalModal(ctx context.Context, i *discordgo.InteractionCreate) {
	if !d.policy.IsReviewer(actorID(i)) {
		d.respondEphemeral(i, "❌ **Access Denied** | You are not an authorized booking manager.")
		return
	}
	rec, err := d.coordinator.Ticket(ctx, i.ChannelID)
	if err != nil {
		d.respondEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}
	if rec.Status != domain.TicketStatusPending {
		d.respondEphemeral(i, "This ticket has already been actioned.")
		return
	}

	var components []discordgo.MessageComponent
	for _, f := range formFields {
		if f.Name == "description" {
			continue
		}
		components = append(components, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID: f.Name,
				Label:    f.Label,
				Style:    discordgo.TextInputShort,
				Value:    domain.FieldValue(rec.Fields, f.Name),
				Required: true,
			},
		}})
	}
	err = d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   CustomID(nameApproveForm),
			Title:      "Confirm & Approve Booking",
			Components: components,
		},
	})
	if err != nil {
		d.logger.Error("open approval modal failed", zap.Error(err))
	}
}

func (d *Discord) openDenialModal(ctx context.Context, i *discordgo.InteractionCreate) {
	if !d.policy.IsReviewer(actorID(i)) {
		d.respondEphemeral(i, "❌ **Access Denied** | You are not an authorized booking manager.")
		return
	}
	rec, err := d.coordinator.Ticket(ctx, i.ChannelID)
	if err != nil {
		d.respondEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}
	if rec.Status != domain.TicketStatusPending {
		d.respondEphemeral(i, "This ticket has already been actioned.")
		return
	}
	err = d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: CustomID(nameDenyForm),
			Title:    "Deny Booking",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID: "reason",
						Label:    "Reason for Denial (Optional)",
						Style:    discordgo.TextInputParagraph,
						Required: false,
					},
				}},
			},
		},
	})
	if err != nil {
		d.logger.Error("open denial modal failed", zap.Error(err))
	}
}

// performFromInteraction runs one lifecycle action and executes its effects.
func (d *Discord) performFromInteraction(ctx context.Context, i *discordgo.InteractionCreate, action domain.TicketAction, payload lifecycle.Payload) {
	d.deferEphemeral(i)

	_, effects, err := d.coordinator.Perform(ctx, i.ChannelID, actorID(i), action, payload)
	if err != nil {
		d.followupEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}
	if action == domain.ActionDelete {
		// the effects remove the channel, so acknowledge first
		d.followupEphemeral(i, "✅ Ticket deleted.")
		if err := d.ApplyEffects(i.ChannelID, i.Message, effects); err != nil {
			d.logger.Error("apply effects failed",
				zap.String("ticket_id", i.ChannelID),
				zap.String("action", string(action)),
				zap.Error(err))
		}
		return
	}
	if err := d.ApplyEffects(i.ChannelID, i.Message, effects); err != nil {
		d.logger.Error("apply effects failed",
			zap.String("ticket_id", i.ChannelID),
			zap.String("action", string(action)),
			zap.Error(err))
		d.followupEphemeral(i, "⚠️ Action applied, but some channel updates failed.")
		return
	}
	d.followupEphemeral(i, fmt.Sprintf("✅ Ticket %s.", pastTense(action)))
}

func (d *Discord) handleTranscript(ctx context.Context, i *discordgo.InteractionCreate) {
	if !d.policy.IsReviewer(actorID(i)) {
		d.respondEphemeral(i, "❌ **Access Denied** | You are not an authorized booking manager.")
		return
	}
	if _, err := d.coordinator.Ticket(ctx, i.ChannelID); err != nil {
		d.respondEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}
	d.deferEphemeral(i)

	channelName := i.ChannelID
	if ch, err := d.session.Channel(i.ChannelID); err == nil {
		channelName = ch.Name
	}
	msgs, err := d.fetchHistory(i.ChannelID)
	if err != nil {
		d.followupEphemeral(i, "❌ Could not fetch the channel history.")
		return
	}
	var buf bytes.Buffer
	if err := transcript.Render(&buf, transcript.Document{ChannelName: channelName, Messages: msgs}); err != nil {
		d.followupEphemeral(i, "❌ Could not render the transcript.")
		return
	}
	fileName := "transcript-" + channelName + ".html"
	_, err = d.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: "Here is the transcript for this ticket:",
		Flags:   discordgo.MessageFlagsEphemeral,
		Files: []*discordgo.File{{
			Name: fileName, ContentType: "text/html", Reader: bytes.NewReader(buf.Bytes()),
		}},
	})
	if err != nil {
		d.logger.Error("transcript followup failed", zap.Error(err))
	}

	// also archive a copy in the configured transcript channel
	if cfg, err := d.coordinator.GuildConfig(ctx, i.GuildID); err == nil && cfg.TranscriptChannelID != "" {
		_, err := d.session.ChannelMessageSendComplex(cfg.TranscriptChannelID, &discordgo.MessageSend{
			Content: fmt.Sprintf("Transcript for <#%s>", i.ChannelID),
			Files: []*discordgo.File{{
				Name: fileName, ContentType: "text/html", Reader: bytes.NewReader(buf.Bytes()),
			}},
		})
		if err != nil {
			d.logger.Warn("transcript archive failed", zap.String("channel_id", cfg.TranscriptChannelID), zap.Error(err))
		}
	}
}

// fetchHistory returns the full channel history oldest first.
func (d *Discord) fetchHistory(channelID string) ([]transcript.Message, error) {
	var all []*discordgo.Message
	beforeID := ""
	for {
		batch, err := d.session.ChannelMessages(channelID, 100, beforeID, "", "")
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
		beforeID = batch[len(batch)-1].ID
	}

	out := make([]transcript.Message, 0, len(all))
	for idx := len(all) - 1; idx >= 0; idx-- {
		m := all[idx]
		entry := transcript.Message{Content: m.Content}
		if m.Author != nil {
			entry.Author = m.Author.Username
			entry.AvatarURL = m.Author.AvatarURL("")
		}
		entry.Timestamp = m.Timestamp
		out = append(out, entry)
	}
	return out, nil
}

func (d *Discord) handleAsk(i *discordgo.InteractionCreate) {
	if !d.policy.IsReviewer(actorID(i)) {
		d.respondEphemeral(i, "❌ You are not allowed to use this command.")
		return
	}
	if !d.assistant.Enabled() {
		d.respondEphemeral(i, "❌ The assistant is not configured on this runtime.")
		return
	}
	prompt := i.ApplicationCommandData().Options[0].StringValue()

	if err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		d.logger.Error("defer failed", zap.Error(err))
		return
	}

	answer, err := d.assistant.Ask(context.Background(), prompt)
	if err != nil {
		d.followupEphemeral(i, "❌ "+util.ToDomainError(err).Message)
		return
	}
	answer = truncateMessage(answer, 1990)
	if _, err := d.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: answer}); err != nil {
		d.logger.Error("ask followup failed", zap.Error(err))
	}
}

// onMessageCreate implements the DM relay: guild mentions of the bot are
// forwarded to the owner, and owner replies in DM are routed back.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	ctx := context.Background()

	// owner reply in DM → back to the source channel
	if m.GuildID == "" {
		if !d.policy.IsReviewer(m.Author.ID) && m.Author.ID != d.ownerID {
			return
		}
		if m.MessageReference == nil {
			return
		}
		entry, ok, err := d.relay.Get(ctx, m.MessageReference.MessageID)
		if err != nil || !ok {
			return
		}
		content := m.Content
		if entry.UserID != "" {
			content = fmt.Sprintf("<@%s> %s", entry.UserID, m.Content)
		}
		if _, err := s.ChannelMessageSend(entry.ChannelID, content); err != nil {
			d.logger.Warn("relay reply failed", zap.String("channel_id", entry.ChannelID), zap.Error(err))
		}
		return
	}

	// guild message mentioning the bot → DM to owner
	if d.ownerID == "" || !mentionsUser(m.Mentions, s.State.User.ID) {
		return
	}
	dm, err := s.UserChannelCreate(d.ownerID)
	if err != nil {
		d.logger.Warn("owner DM channel failed", zap.Error(err))
		return
	}
	content := m.Content
	if content == "" {
		content = "[No text]"
	}
	forwarded, err := s.ChannelMessageSendComplex(dm.ID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Description: content,
			Author:      &discordgo.MessageEmbedAuthor{Name: m.Author.Username},
			Footer:      &discordgo.MessageEmbedFooter{Text: "Channel ID: " + m.ChannelID},
		}},
	})
	if err != nil {
		d.logger.Warn("relay forward failed", zap.Error(err))
		return
	}
	if err := d.relay.Put(ctx, forwarded.ID, RelayEntry{ChannelID: m.ChannelID, UserID: m.Author.ID}); err != nil {
		d.logger.Warn("relay map store failed", zap.Error(err))
	}
}

// --- interaction helpers ---

func actorID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return "guest"
}

func (d *Discord) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		d.logger.Error("interaction respond failed", zap.Error(err))
	}
}

func (d *Discord) deferEphemeral(i *discordgo.InteractionCreate) {
	err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		d.logger.Error("interaction defer failed", zap.Error(err))
	}
}

func (d *Discord) followupEphemeral(i *discordgo.InteractionCreate, content string) {
	_, err := d.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		d.logger.Error("interaction followup failed", zap.Error(err))
	}
}

// modalFields reads the booking form inputs back into ordered fields.
func modalFields(i *discordgo.InteractionCreate) []domain.Field {
	values := modalValues(i)
	var out []domain.Field
	for _, f := range formFields {
		if v, ok := values[f.Name]; ok {
			out = append(out, domain.Field{Name: f.Name, Value: v})
		}
	}
	return out
}

// mergeUnedited carries over existing fields absent from the edited set.
func mergeUnedited(existing, edited []domain.Field) []domain.Field {
	seen := make(map[string]struct{}, len(edited))
	for _, f := range edited {
		seen[f.Name] = struct{}{}
	}
	out := append([]domain.Field(nil), edited...)
	for _, f := range existing {
		if _, ok := seen[f.Name]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func modalValue(i *discordgo.InteractionCreate, name string) string {
	return modalValues(i)[name]
}

func modalValues(i *discordgo.InteractionCreate) map[string]string {
	data := i.ModalSubmitData()
	out := map[string]string{}
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				out[input.CustomID] = strings.TrimSpace(input.Value)
			}
		}
	}
	return out
}

func pastTense(action domain.TicketAction) string {
	switch action {
	case domain.ActionApprove:
		return "approved"
	case domain.ActionDeny:
		return "denied"
	case domain.ActionClose:
		return "closed"
	case domain.ActionReopen:
		return "re-opened"
	case domain.ActionDelete:
		return "deleted"
	}
	return string(action)
}

// truncateMessage caps a message at limit runes, never splitting a
// multi-byte character.
func truncateMessage(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

func sanitizeChannelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	if name == "" {
		name = "guest"
	}
	return name
}
