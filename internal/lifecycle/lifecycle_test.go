package lifecycle

import (
	"testing"
	"time"

	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/pkg/util"
)

func pendingRecord(t *testing.T) *domain.TicketRecord {
	t.Helper()
	return NewRecord("chan-1", "guild-1", "user-1", []domain.Field{
		{Name: "event_name", Value: "Gala"},
		{Name: "event_date", Value: "25 Dec 2025"},
	}, time.Unix(1000, 0))
}

func mustApply(t *testing.T, rec *domain.TicketRecord, action domain.TicketAction, p Payload) *domain.TicketRecord {
	t.Helper()
	out, err := Apply(rec, action, p, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("apply %s from %s: %v", action, rec.Status, err)
	}
	return out
}

func TestNewRecordStartsPending(t *testing.T) {
	rec := pendingRecord(t)
	if rec.Status != domain.TicketStatusPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
	if rec.RequesterID != "user-1" || rec.ID != "chan-1" {
		t.Fatalf("identity fields wrong: %+v", rec)
	}
	if rec.ReopenedFromClosed {
		t.Fatal("fresh record must not be flagged as reopened")
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from   domain.TicketStatus
		action domain.TicketAction
		to     domain.TicketStatus
	}{
		{domain.TicketStatusPending, domain.ActionApprove, domain.TicketStatusApproved},
		{domain.TicketStatusPending, domain.ActionDeny, domain.TicketStatusDenied},
		{domain.TicketStatusApproved, domain.ActionClose, domain.TicketStatusClosed},
		{domain.TicketStatusDenied, domain.ActionClose, domain.TicketStatusClosed},
		{domain.TicketStatusClosed, domain.ActionReopen, domain.TicketStatusPending},
		{domain.TicketStatusClosed, domain.ActionDelete, domain.TicketStatusDeleted},
	}
	for _, tc := range cases {
		rec := pendingRecord(t)
		rec.Status = tc.from
		out := mustApply(t, rec, tc.action, Payload{})
		if out.Status != tc.to {
			t.Fatalf("%s on %s = %s, want %s", tc.action, tc.from, out.Status, tc.to)
		}
	}
}

func TestRejectedTransitions(t *testing.T) {
	cases := []struct {
		from   domain.TicketStatus
		action domain.TicketAction
	}{
		{domain.TicketStatusApproved, domain.ActionApprove}, // double approve
		{domain.TicketStatusDenied, domain.ActionDeny},
		{domain.TicketStatusClosed, domain.ActionClose}, // double close
		{domain.TicketStatusPending, domain.ActionReopen},
		{domain.TicketStatusPending, domain.ActionDelete},
		{domain.TicketStatusApproved, domain.ActionDeny},
		{domain.TicketStatusDenied, domain.ActionApprove},
	}
	for _, tc := range cases {
		rec := pendingRecord(t)
		rec.Status = tc.from
		if _, err := Apply(rec, tc.action, Payload{}, time.Now()); !util.HasCode(err, "ALREADY_ACTIONED") {
			t.Fatalf("%s on %s: got %v, want ALREADY_ACTIONED", tc.action, tc.from, err)
		}
	}
}

func TestUnknownActionRejected(t *testing.T) {
	rec := pendingRecord(t)
	if _, err := Apply(rec, domain.TicketAction("promote"), Payload{}, time.Now()); !util.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("got %v, want INVALID_TRANSITION", err)
	}
	// submit is creation, not a transition on an existing record
	if _, err := Apply(rec, domain.ActionSubmit, Payload{}, time.Now()); !util.HasCode(err, "INVALID_TRANSITION") {
		t.Fatalf("submit on existing record: got %v, want INVALID_TRANSITION", err)
	}
}

func TestApproveReplacesFieldsAtomically(t *testing.T) {
	rec := pendingRecord(t)
	edited := []domain.Field{
		{Name: "event_name", Value: "Gala Night"},
		{Name: "event_date", Value: "26 Dec 2025"},
	}
	out := mustApply(t, rec, domain.ActionApprove, Payload{Fields: edited})
	if got := domain.FieldValue(out.Fields, "event_name"); got != "Gala Night" {
		t.Fatalf("event_name = %q, want edited value", got)
	}
	// input record untouched
	if got := domain.FieldValue(rec.Fields, "event_name"); got != "Gala" {
		t.Fatalf("input record mutated: event_name = %q", got)
	}
	if rec.Status != domain.TicketStatusPending {
		t.Fatalf("input record status mutated to %s", rec.Status)
	}
}

func TestApproveWithoutEditsKeepsFields(t *testing.T) {
	rec := pendingRecord(t)
	out := mustApply(t, rec, domain.ActionApprove, Payload{})
	if got := domain.FieldValue(out.Fields, "event_name"); got != "Gala" {
		t.Fatalf("event_name = %q, want original", got)
	}
}

func TestDenyStoresReasonOutsideFields(t *testing.T) {
	rec := pendingRecord(t)
	out := mustApply(t, rec, domain.ActionDeny, Payload{Reason: "double booked"})
	if out.DenialReason != "double booked" {
		t.Fatalf("denial reason = %q", out.DenialReason)
	}
	if len(out.Fields) != len(rec.Fields) {
		t.Fatal("deny must not touch the field set")
	}
}

func TestReopenRestoresPendingAndFlags(t *testing.T) {
	rec := pendingRecord(t)
	rec = mustApply(t, rec, domain.ActionApprove, Payload{})
	rec = mustApply(t, rec, domain.ActionClose, Payload{})
	out := mustApply(t, rec, domain.ActionReopen, Payload{})
	if out.Status != domain.TicketStatusPending {
		t.Fatalf("status = %s, want pending", out.Status)
	}
	if !out.ReopenedFromClosed {
		t.Fatal("reopened record must carry the reopened flag")
	}
	// aside from status/flag/timestamps the record matches the pre-close one
	if out.RequesterID != rec.RequesterID || out.ID != rec.ID {
		t.Fatal("reopen changed identity fields")
	}
	if len(out.Fields) != len(rec.Fields) {
		t.Fatal("reopen changed the field set")
	}
}

func TestEveryReachableStatusComesFromTheTable(t *testing.T) {
	// walk the table from pending and collect everything reachable
	reachable := map[domain.TicketStatus]bool{domain.TicketStatusPending: true}
	queue := []domain.TicketStatus{domain.TicketStatusPending}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range allowedTransitions[cur] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, s := range []domain.TicketStatus{
		domain.TicketStatusPending, domain.TicketStatusApproved, domain.TicketStatusDenied,
		domain.TicketStatusClosed, domain.TicketStatusDeleted,
	} {
		if !reachable[s] {
			t.Fatalf("status %s unreachable from pending", s)
		}
	}
}
