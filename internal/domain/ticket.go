package domain

import "time"

// TicketStatus enumerates lifecycle states for booking tickets.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusApproved TicketStatus = "approved"
	TicketStatusDenied   TicketStatus = "denied"
	TicketStatusClosed   TicketStatus = "closed"

	// TicketStatusDeleted is a terminal pseudo-state. It is never persisted;
	// the coordinator removes the record instead of writing it.
	TicketStatusDeleted TicketStatus = "deleted"
)

// TicketAction names a lifecycle transition trigger.
type TicketAction string

const (
	ActionSubmit  TicketAction = "submit"
	ActionApprove TicketAction = "approve"
	ActionDeny    TicketAction = "deny"
	ActionClose   TicketAction = "close"
	ActionReopen  TicketAction = "reopen"
	ActionDelete  TicketAction = "delete"
)

// Field is one entry of the ordered booking form.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldValue returns the value for name, or "" when absent.
func FieldValue(fields []Field, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// TicketRecord is the aggregate for one booking request. The ID is the
// ticket channel's ID and is assigned once at creation.
type TicketRecord struct {
	ID                 string       `json:"id"`
	GuildID            string       `json:"guild_id"`
	RequesterID        string       `json:"requester_id"`
	Status             TicketStatus `json:"status"`
	Fields             []Field      `json:"fields"`
	DenialReason       string       `json:"denial_reason,omitempty"`
	ReopenedFromClosed bool         `json:"reopened_from_closed"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *TicketRecord) Clone() *TicketRecord {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Fields = append([]Field(nil), t.Fields...)
	return &cp
}
