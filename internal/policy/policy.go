// Package policy decides who may submit and who may review tickets.
package policy

import "github.com/ideahatch/booking-bot/internal/domain"

// AccessPolicy authorizes actors against the reviewer allow-list. It is a
// pure predicate over its construction-time state.
type AccessPolicy struct {
	reviewers map[string]struct{}
}

// New builds a policy from the configured reviewer IDs.
func New(reviewerIDs []string) *AccessPolicy {
	set := make(map[string]struct{}, len(reviewerIDs))
	for _, id := range reviewerIDs {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return &AccessPolicy{reviewers: set}
}

// IsReviewer reports whether actorID is on the allow-list.
func (p *AccessPolicy) IsReviewer(actorID string) bool {
	_, ok := p.reviewers[actorID]
	return ok
}

// CanAct reports whether actorID may run action against the record.
// Submission is open to anyone in a configured guild; every review action
// requires reviewer rights.
func (p *AccessPolicy) CanAct(actorID string, action domain.TicketAction, rec *domain.TicketRecord) bool {
	if action == domain.ActionSubmit {
		return true
	}
	return p.IsReviewer(actorID)
}
