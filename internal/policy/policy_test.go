package policy

import (
	"testing"

	"github.com/ideahatch/booking-bot/internal/domain"
)

func TestIsReviewer(t *testing.T) {
	p := New([]string{"r1", "r2", ""})
	if !p.IsReviewer("r1") || !p.IsReviewer("r2") {
		t.Fatal("listed reviewers not recognized")
	}
	if p.IsReviewer("u1") {
		t.Fatal("unlisted actor recognized as reviewer")
	}
	if p.IsReviewer("") {
		t.Fatal("empty id must never be a reviewer")
	}
}

func TestCanAct(t *testing.T) {
	p := New([]string{"r1"})
	rec := &domain.TicketRecord{ID: "t1", RequesterID: "u1", Status: domain.TicketStatusPending}

	if !p.CanAct("u1", domain.ActionSubmit, nil) {
		t.Fatal("submit must be open to any actor")
	}
	for _, action := range []domain.TicketAction{
		domain.ActionApprove, domain.ActionDeny, domain.ActionClose, domain.ActionReopen, domain.ActionDelete,
	} {
		if !p.CanAct("r1", action, rec) {
			t.Fatalf("reviewer denied %s", action)
		}
		if p.CanAct("u1", action, rec) {
			t.Fatalf("requester allowed to %s own ticket", action)
		}
	}
}
