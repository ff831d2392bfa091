package domain

// EffectKind enumerates side-effect instructions the coordinator emits.
// The coordinator computes what must happen; the gateway executes it.
type EffectKind string

const (
	EffectGrantView       EffectKind = "grant_view"
	EffectRevokeSend      EffectKind = "revoke_send"
	EffectRevokeView      EffectKind = "revoke_view"
	EffectRestoreView     EffectKind = "restore_view"
	EffectPostMessage     EffectKind = "post_message"
	EffectDisableControls EffectKind = "disable_controls"
	EffectDeleteMessage   EffectKind = "delete_message"
	EffectDeleteChannel   EffectKind = "delete_channel"
)

// ControlSet identifies which button set a posted message should carry.
type ControlSet string

const (
	ControlsNone   ControlSet = ""
	ControlsReview ControlSet = "review" // Approve / Deny / Close
	ControlsClosed ControlSet = "closed" // Re-Open / Transcript / Delete
)

// Effect is a single boundary-layer instruction. ChannelID defaults to the
// ticket channel when empty.
type Effect struct {
	Kind      EffectKind
	ChannelID string
	UserID    string
	MessageID string
	Content   string
	Controls  ControlSet
}
