package domain

// GuildConfig holds the per-guild ticketing configuration written by the
// admin setup command and read at ticket creation time.
type GuildConfig struct {
	IntakeChannelID     string `json:"intake_channel_id"`
	TicketCategoryID    string `json:"ticket_category_id"`
	TranscriptChannelID string `json:"transcript_channel_id"`
}
