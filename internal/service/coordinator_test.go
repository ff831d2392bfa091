package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/domain"
	"github.com/ideahatch/booking-bot/internal/events"
	"github.com/ideahatch/booking-bot/internal/lifecycle"
	"github.com/ideahatch/booking-bot/internal/observability"
	"github.com/ideahatch/booking-bot/internal/policy"
	"github.com/ideahatch/booking-bot/internal/store"
	"github.com/ideahatch/booking-bot/pkg/util"
)

func newCoordinator(t *testing.T) (*TicketCoordinator, store.RecordStore) {
	t.Helper()
	dir := t.TempDir()
	records, err := store.NewFileRecordStore(filepath.Join(dir, "tickets"))
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	guilds, err := store.NewFileGuildConfigStore(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("guild store: %v", err)
	}
	c := NewTicketCoordinator(CoordinatorDependencies{
		Records:         records,
		Guilds:          guilds,
		Policy:          policy.New([]string{"r1", "r2"}),
		Dispatcher:      events.NewInMemoryDispatcher(),
		Metrics:         observability.NewMetrics(),
		Logger:          zap.NewNop(),
		ApproveFollowup: true,
	})
	return c, records
}

func submitGala(t *testing.T, c *TicketCoordinator) *domain.TicketRecord {
	t.Helper()
	rec, effects, err := c.Submit(context.Background(), SubmitInput{
		TicketID:    "T1",
		GuildID:     "G1",
		RequesterID: "U1",
		Fields: []domain.Field{
			{Name: "event_name", Value: "Gala"},
			{Name: "budget", Value: "75000"},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Status != domain.TicketStatusPending {
		t.Fatalf("submitted status = %s", rec.Status)
	}
	if len(effects) != 2 || effects[0].Kind != domain.EffectGrantView ||
		effects[1].Kind != domain.EffectPostMessage || effects[1].Controls != domain.ControlsReview {
		t.Fatalf("submit effects = %+v", effects)
	}
	return rec
}

func TestSubmitCreatesPendingRecordOnce(t *testing.T) {
	c, records := newCoordinator(t)
	submitGala(t, c)

	got, err := records.Get(context.Background(), "T1")
	if err != nil {
		t.Fatalf("get persisted record: %v", err)
	}
	if got.RequesterID != "U1" || got.Status != domain.TicketStatusPending {
		t.Fatalf("persisted record = %+v", got)
	}

	// same id again: creation is the only path that introduces an id
	if _, _, err := c.Submit(context.Background(), SubmitInput{TicketID: "T1", GuildID: "G1", RequesterID: "U2"}); !util.HasCode(err, "ALREADY_ACTIONED") {
		t.Fatalf("duplicate submit: %v", err)
	}
}

func TestFullLifecycleScenario(t *testing.T) {
	c, records := newCoordinator(t)
	ctx := context.Background()
	submitGala(t, c)

	// approve with edited fields
	rec, effects, err := c.Perform(ctx, "T1", "r1", domain.ActionApprove, lifecycle.Payload{
		Fields: []domain.Field{{Name: "event_name", Value: "Gala Night"}},
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if rec.Status != domain.TicketStatusApproved {
		t.Fatalf("status after approve = %s", rec.Status)
	}
	if got := domain.FieldValue(rec.Fields, "event_name"); got != "Gala Night" {
		t.Fatalf("approve did not replace fields: %q", got)
	}
	// followup hook enabled: disable, revoke send, confirmation, followup
	if len(effects) != 4 {
		t.Fatalf("approve effects = %+v", effects)
	}

	// a deny arriving after approve committed
	if _, _, err := c.Perform(ctx, "T1", "r2", domain.ActionDeny, lifecycle.Payload{}); !util.HasCode(err, "ALREADY_ACTIONED") {
		t.Fatalf("late deny: %v", err)
	}

	// close
	rec, effects, err = c.Perform(ctx, "T1", "r1", domain.ActionClose, lifecycle.Payload{})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if rec.Status != domain.TicketStatusClosed {
		t.Fatalf("status after close = %s", rec.Status)
	}
	foundClosedControls := false
	for _, e := range effects {
		if e.Kind == domain.EffectPostMessage && e.Controls == domain.ControlsClosed {
			foundClosedControls = true
		}
	}
	if !foundClosedControls {
		t.Fatalf("close must post the closed controls, got %+v", effects)
	}

	// double close rejected
	if _, _, err := c.Perform(ctx, "T1", "r1", domain.ActionClose, lifecycle.Payload{}); !util.HasCode(err, "ALREADY_ACTIONED") {
		t.Fatalf("double close: %v", err)
	}

	// reopen
	rec, _, err = c.Perform(ctx, "T1", "r1", domain.ActionReopen, lifecycle.Payload{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if rec.Status != domain.TicketStatusPending || !rec.ReopenedFromClosed {
		t.Fatalf("record after reopen = %+v", rec)
	}

	// approve again, close again, delete
	if _, _, err = c.Perform(ctx, "T1", "r1", domain.ActionApprove, lifecycle.Payload{}); err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if _, _, err = c.Perform(ctx, "T1", "r1", domain.ActionClose, lifecycle.Payload{}); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, _, err = c.Perform(ctx, "T1", "r1", domain.ActionDelete, lifecycle.Payload{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := records.Get(ctx, "T1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record after delete: %v", err)
	}
	// anything after delete reports TicketGone
	if _, _, err := c.Perform(ctx, "T1", "r1", domain.ActionReopen, lifecycle.Payload{}); !util.HasCode(err, "TICKET_GONE") {
		t.Fatalf("action after delete: %v", err)
	}
}

func TestConcurrentReviewExactlyOneWins(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	submitGala(t, c)

	const n = 16
	var wg sync.WaitGroup
	outcomes := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := domain.ActionApprove
			if i%2 == 1 {
				action = domain.ActionDeny
			}
			_, _, outcomes[i] = c.Perform(ctx, "T1", "r1", action, lifecycle.Payload{})
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range outcomes {
		switch {
		case err == nil:
			wins++
		case util.HasCode(err, "ALREADY_ACTIONED"):
			losses++
		default:
			t.Fatalf("unexpected outcome: %v", err)
		}
	}
	if wins != 1 || losses != n-1 {
		t.Fatalf("wins=%d losses=%d, want exactly one winner", wins, losses)
	}
}

func TestForbiddenForNonReviewer(t *testing.T) {
	c, records := newCoordinator(t)
	ctx := context.Background()
	submitGala(t, c)

	if _, _, err := c.Perform(ctx, "T1", "U1", domain.ActionApprove, lifecycle.Payload{}); !util.HasCode(err, "FORBIDDEN") {
		t.Fatalf("requester approve: %v", err)
	}
	// rejection left the record untouched
	got, err := records.Get(ctx, "T1")
	if err != nil || got.Status != domain.TicketStatusPending {
		t.Fatalf("record after forbidden action: %+v, %v", got, err)
	}
}

func TestPerformOnUnknownTicket(t *testing.T) {
	c, _ := newCoordinator(t)
	if _, _, err := c.Perform(context.Background(), "missing", "r1", domain.ActionApprove, lifecycle.Payload{}); !util.HasCode(err, "TICKET_GONE") {
		t.Fatalf("got %v, want TICKET_GONE", err)
	}
}

func TestGuildConfigMissing(t *testing.T) {
	c, _ := newCoordinator(t)
	if _, err := c.GuildConfig(context.Background(), "G9"); !util.HasCode(err, "CONFIG_MISSING") {
		t.Fatalf("got %v, want CONFIG_MISSING", err)
	}
	cfg := &domain.GuildConfig{IntakeChannelID: "c", TicketCategoryID: "cat", TranscriptChannelID: "t"}
	if err := c.SetGuildConfig(context.Background(), "G9", cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	got, err := c.GuildConfig(context.Background(), "G9")
	if err != nil || *got != *cfg {
		t.Fatalf("get config: %+v, %v", got, err)
	}
}

// failingStore wraps a RecordStore and fails writes on demand.
type failingStore struct {
	store.RecordStore
	failPut bool
}

var errDisk = errors.New("disk full")

func (f *failingStore) Put(ctx context.Context, rec *domain.TicketRecord) error {
	if f.failPut {
		return errDisk
	}
	return f.RecordStore.Put(ctx, rec)
}

func TestStoreFailureAbortsWithoutPartialEffect(t *testing.T) {
	dir := t.TempDir()
	inner, err := store.NewFileRecordStore(filepath.Join(dir, "tickets"))
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	guilds, err := store.NewFileGuildConfigStore(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("guild store: %v", err)
	}
	failing := &failingStore{RecordStore: inner}
	c := NewTicketCoordinator(CoordinatorDependencies{
		Records: failing,
		Guilds:  guilds,
		Policy:  policy.New([]string{"r1"}),
		Logger:  zap.NewNop(),
	})
	ctx := context.Background()

	if _, _, err := c.Submit(ctx, SubmitInput{TicketID: "T1", GuildID: "G1", RequesterID: "U1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	failing.failPut = true
	rec, effects, err := c.Perform(ctx, "T1", "r1", domain.ActionApprove, lifecycle.Payload{})
	if !util.HasCode(err, "STORE_FAILURE") {
		t.Fatalf("got %v, want STORE_FAILURE", err)
	}
	if rec != nil || effects != nil {
		t.Fatal("failed action must return no record and no effects")
	}

	// record is exactly as it was
	got, err := inner.Get(ctx, "T1")
	if err != nil || got.Status != domain.TicketStatusPending {
		t.Fatalf("record after aborted action: %+v, %v", got, err)
	}

	// the ticket is not permanently wedged
	failing.failPut = false
	if _, _, err := c.Perform(ctx, "T1", "r1", domain.ActionApprove, lifecycle.Payload{}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}
