package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-shelly/migrations" // registers journal schema
)

// openTestJournal creates a migrated database in a temp directory.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return New(db.DB)
}

// fixedClock makes Record and Prune deterministic.
func fixedClock(j *Journal, now time.Time) {
	j.now = func() time.Time { return now }
}

func TestRecord_GeneratesIDAndTime(t *testing.T) {
	j := openTestJournal(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(j, now)

	e := &Entry{Event: "discover", DeviceType: "SHSW-1", DeviceID: "A4CF12F45A1B", Host: "192.168.1.40"}
	if err := j.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" {
		t.Error("ID not generated")
	}
	if !e.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, now)
	}

	res, err := j.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("List() = %+v, want one entry", res)
	}
	got := res.Entries[0]
	if got.ID != e.ID || got.Event != "discover" || got.Host != "192.168.1.40" || !got.CreatedAt.Equal(now) {
		t.Errorf("entry = %+v", got)
	}
}

func TestRecord_RequiresEvent(t *testing.T) {
	j := openTestJournal(t)

	if err := j.Record(context.Background(), &Entry{}); !errors.Is(err, ErrNoEvent) {
		t.Errorf("Record() error = %v, want ErrNoEvent", err)
	}
}

func TestRecord_Details(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	err := j.Record(ctx, &Entry{
		Event:   "unknownDevice",
		Details: map[string]any{"reason": "unsupported model"},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record(ctx, &Entry{Event: "start"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	res, err := j.List(ctx, Filter{Event: "unknownDevice"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Details["reason"] != "unsupported model" {
		t.Errorf("details = %+v", res.Entries)
	}

	res, err = j.List(ctx, Filter{Event: "start"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Details != nil {
		t.Errorf("start entry details = %v, want nil", res.Entries[0].Details)
	}
}

func TestList_NewestFirstAndFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Event: "discover", DeviceType: "SHSW-1", DeviceID: "A", CreatedAt: base},
		{Event: "discover", DeviceType: "SHSW-25", DeviceID: "B", CreatedAt: base.Add(time.Second)},
		{Event: "stale", DeviceType: "SHSW-1", DeviceID: "A", CreatedAt: base.Add(2 * time.Second)},
		{Event: "remove", DeviceType: "SHSW-1", DeviceID: "A", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range entries {
		if err := j.Record(ctx, &entries[i]); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	res, err := j.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, e := range res.Entries {
		got = append(got, e.Event+" "+e.DeviceID)
	}
	want := []string{"remove A", "stale A", "discover B", "discover A"}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by event", Filter{Event: "discover"}, 2},
		{"by type", Filter{DeviceType: "SHSW-1"}, 3},
		{"by type and id", Filter{DeviceType: "SHSW-25", DeviceID: "B"}, 1},
		{"no match", Filter{DeviceID: "Z"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := j.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Entries) != tt.want {
				t.Errorf("Total = %d, len = %d, want %d", res.Total, len(res.Entries), tt.want)
			}
		})
	}
}

func TestList_Pagination(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		e := &Entry{Event: "add", DeviceID: string(rune('A' + i)), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	res, err := j.List(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || res.Limit != 2 || res.Offset != 1 {
		t.Errorf("page meta = total %d limit %d offset %d", res.Total, res.Limit, res.Offset)
	}
	if len(res.Entries) != 2 || res.Entries[0].DeviceID != "D" || res.Entries[1].DeviceID != "C" {
		t.Errorf("page = %+v", res.Entries)
	}
}

func TestClampFilter(t *testing.T) {
	tests := []struct {
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{Filter{}, DefaultLimit, 0},
		{Filter{Limit: 10}, 10, 0},
		{Filter{Limit: 5000}, MaxLimit, 0},
		{Filter{Limit: -1, Offset: -3}, DefaultLimit, 0},
	}
	for _, tt := range tests {
		got := clampFilter(tt.in)
		if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
			t.Errorf("clampFilter(%+v) = %+v", tt.in, got)
		}
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	fixedClock(j, now)

	old := &Entry{Event: "stale", CreatedAt: now.Add(-40 * 24 * time.Hour)}
	recent := &Entry{Event: "discover", CreatedAt: now.Add(-time.Hour)}
	for _, e := range []*Entry{old, recent} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := j.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	res, err := j.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].ID != recent.ID {
		t.Errorf("remaining = %+v", res.Entries)
	}

	if _, err := j.Prune(ctx, 0); !errors.Is(err, ErrInvalidRetention) {
		t.Errorf("Prune(0) error = %v, want ErrInvalidRetention", err)
	}
}
