package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
	"github.com/nerrad567/gray-logic-rulewalk/internal/walker"
	_ "github.com/nerrad567/gray-logic-rulewalk/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: "status", EntityType: "rule", EntityID: "R1", Source: "rulewalk", Details: map[string]any{"walk_id": "w1"}, CreatedAt: base},
		{Action: "disable", EntityType: "rule", EntityID: "R1", Source: "rulewalk", Details: map[string]any{"walk_id": "w1"}, CreatedAt: base.Add(time.Millisecond)},
		{Action: "status", EntityType: "rule", EntityID: "R2", Source: "rulewalk", Details: map[string]any{"walk_id": "w2"}, CreatedAt: base.Add(time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if len(e.ID) != len("aud-")+8 {
			t.Errorf("generated id = %q", e.ID)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Entries) != 3 || all.Limit != defaultLimit {
		t.Fatalf("List() = %+v", all)
	}
	if all.Entries[0].EntityID != "R2" || all.Entries[1].Action != "disable" {
		t.Errorf("order = %s/%s, want newest first", all.Entries[0].EntityID, all.Entries[1].Action)
	}
	if !all.Entries[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", all.Entries[2].CreatedAt, base)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by rule", Filter{EntityID: "R1"}, 2},
		{"by action", Filter{Action: "status"}, 2},
		{"by walk", Filter{WalkID: "w1"}, 2},
		{"combined", Filter{EntityType: "rule", Action: "status", WalkID: "w2"}, 1},
		{"no match", Filter{EntityID: "R9"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.want || len(res.Entries) != tt.want {
				t.Errorf("List(%+v) total=%d len=%d, want %d", tt.filter, res.Total, len(res.Entries), tt.want)
			}
		})
	}
}

func TestSQLiteRepository_ListPaging(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &Entry{Action: "status", EntityType: "rule", Source: "rulewalk"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 5 || len(res.Entries) != 1 {
		t.Errorf("page = total %d len %d, want 5/1", res.Total, len(res.Entries))
	}

	res, err = repo.List(ctx, Filter{Limit: 1000, Offset: -1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 {
		t.Errorf("clamped limit/offset = %d/%d", res.Limit, res.Offset)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) Create(context.Context, *Entry) error { return f.err }
func (f failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, f.err
}

type warnRecorder struct{ msgs []string }

func (w *warnRecorder) Warn(msg string, _ ...any) { w.msgs = append(w.msgs, msg) }

func TestObserver_OnStep(t *testing.T) {
	repo := setupTestRepo(t)
	obs := NewObserver(repo, "operator", nil)

	status := rules.StatusInfo{Status: rules.StatusIdle, Detail: rules.DetailNone}
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	// A cancelled walk context must not stop the row being written.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	obs.OnStep(ctx, walker.Event{
		WalkID: "w1", Tag: "a", RuleUID: "R1", Step: walker.StepStatus,
		Duration: 20 * time.Millisecond, At: at, Status: &status,
	})
	obs.OnStep(ctx, walker.Event{
		WalkID: "w1", Tag: "a", RuleUID: "R1", Step: walker.StepDisable,
		Err: errors.New("denied"), At: at.Add(time.Millisecond),
	})

	res, err := repo.List(context.Background(), Filter{WalkID: "w1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}

	failed := res.Entries[0]
	if failed.Action != "disable" || failed.Details["outcome"] != "error" || failed.Details["error"] != "denied" {
		t.Errorf("failed entry = %+v", failed)
	}
	first := res.Entries[1]
	if first.EntityType != EntityTypeRule || first.Source != SourceRulewalk || first.UserID != "operator" {
		t.Errorf("entry metadata = %+v", first)
	}
	if first.Details["status"] != "IDLE" || first.Details["duration_ms"] != float64(20) || first.WalkID() != "w1" {
		t.Errorf("entry details = %v", first.Details)
	}
}

func TestObserver_WriteFailureIsLogged(t *testing.T) {
	rec := &warnRecorder{}
	obs := NewObserver(failingRepo{err: errors.New("disk full")}, "", rec)

	obs.OnStep(context.Background(), walker.Event{WalkID: "w1", RuleUID: "R1", Step: walker.StepEnable})

	if len(rec.msgs) != 1 {
		t.Errorf("warnings = %v, want 1", rec.msgs)
	}
}
