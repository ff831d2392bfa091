package gateway

import (
	"strings"

	"github.com/ideahatch/booking-bot/internal/domain"
)

// Component custom IDs are pure dispatch targets: the ticket is always the
// interaction's channel and the rest of the context is reloaded from the
// record, so buttons survive restarts with no state behind them.
const customIDPrefix = "booking"

// Non-lifecycle dispatch names.
const (
	nameCreate      = "create"
	nameForm        = "form"
	nameApproveForm = "approve_form"
	nameDenyForm    = "deny_form"
	nameTranscript  = "transcript"
)

// PendingAction is the dispatch target reconstructed from a custom ID.
type PendingAction struct {
	Name string
}

// CustomID renders the component identifier for a dispatch name.
func CustomID(name string) string {
	return customIDPrefix + ":" + name
}

// ActionCustomID renders the identifier for a lifecycle button.
func ActionCustomID(action domain.TicketAction) string {
	return CustomID(string(action))
}

// ParseCustomID recovers the dispatch target from a component identifier.
// Foreign identifiers report ok=false and are ignored by the bot.
func ParseCustomID(id string) (PendingAction, bool) {
	prefix, name, found := strings.Cut(id, ":")
	if !found || prefix != customIDPrefix || name == "" {
		return PendingAction{}, false
	}
	return PendingAction{Name: name}, true
}

// LifecycleAction maps the dispatch target onto a ticket action, when it is
// one.
func (p PendingAction) LifecycleAction() (domain.TicketAction, bool) {
	switch domain.TicketAction(p.Name) {
	case domain.ActionApprove, domain.ActionDeny, domain.ActionClose,
		domain.ActionReopen, domain.ActionDelete:
		return domain.TicketAction(p.Name), true
	}
	return "", false
}
