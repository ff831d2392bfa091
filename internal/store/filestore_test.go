package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ideahatch/booking-bot/internal/domain"
)

func newRecordStore(t *testing.T) *FileRecordStore {
	t.Helper()
	s, err := NewFileRecordStore(t.TempDir())
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	return s
}

func sampleRecord(id string) *domain.TicketRecord {
	return &domain.TicketRecord{
		ID:          id,
		GuildID:     "guild-1",
		RequesterID: "user-1",
		Status:      domain.TicketStatusPending,
		Fields: []domain.Field{
			{Name: "event_name", Value: "Gala"},
			{Name: "budget", Value: "75000"},
		},
		CreatedAt: time.Unix(1000, 0).UTC(),
		UpdatedAt: time.Unix(1000, 0).UTC(),
	}
}

func TestPutThenGetReturnsExactValue(t *testing.T) {
	s := newRecordStore(t)
	ctx := context.Background()

	want := sampleRecord("123456")
	if err := s.Put(ctx, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "123456")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newRecordStore(t)
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := newRecordStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, sampleRecord("77")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "77"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "77"); err != ErrNotFound {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "77"); err != ErrNotFound {
		t.Fatalf("second delete: %v, want ErrNotFound", err)
	}
}

func TestPutLeavesNoStagingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileRecordStore(dir)
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	if err := s.Put(context.Background(), sampleRecord("88")); err != nil {
		t.Fatalf("put: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("staging file left behind: %s", e.Name())
		}
	}
}

func TestConcurrentPutsOnDistinctIDs(t *testing.T) {
	s := newRecordStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord(strconv.Itoa(i))
			rec.Fields = []domain.Field{{Name: "n", Value: strconv.Itoa(i)}}
			if err := s.Put(ctx, rec); err != nil {
				t.Errorf("put %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		got, err := s.Get(ctx, strconv.Itoa(i))
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if v := domain.FieldValue(got.Fields, "n"); v != strconv.Itoa(i) {
			t.Fatalf("record %d holds value %q", i, v)
		}
	}
}

func TestKeySanitization(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileRecordStore(dir)
	if err != nil {
		t.Fatalf("new record store: %v", err)
	}
	rec := sampleRecord("../evil")
	if err := s.Put(context.Background(), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "evil.json")); !os.IsNotExist(err) {
		t.Fatal("record escaped the data directory")
	}
}

func TestGuildConfigSetGetOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewFileGuildConfigStore(path)
	if err != nil {
		t.Fatalf("new config store: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Get(ctx, "g1"); err != ErrNotFound {
		t.Fatalf("get before set: %v, want ErrNotFound", err)
	}

	first := &domain.GuildConfig{IntakeChannelID: "c1", TicketCategoryID: "cat1", TranscriptChannelID: "t1"}
	if err := s.Set(ctx, "g1", first); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *first {
		t.Fatalf("got %+v, want %+v", got, first)
	}

	// setup runs again: whole value replaced
	second := &domain.GuildConfig{IntakeChannelID: "c2", TicketCategoryID: "cat2", TranscriptChannelID: "t2"}
	if err := s.Set(ctx, "g1", second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = s.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if *got != *second {
		t.Fatalf("got %+v, want %+v", got, second)
	}
}
