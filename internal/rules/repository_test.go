package rules

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-rulewalk/migrations"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "rules.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

func testRule(uid string, tags ...string) *Rule {
	return &Rule{
		UID:     uid,
		Name:    "Rule " + uid,
		Tags:    tags,
		Enabled: true,
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	rule := testRule("R1", " A ", "lighting", "a")
	rule.Description = "hallway motion"
	rule.Conditions = []Condition{{Input: "name", Equals: "EXAMPLE"}}

	if err := repo.Create(ctx, rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByUID(ctx, "R1")
	if err != nil {
		t.Fatalf("GetByUID() error = %v", err)
	}
	if got.Name != "Rule R1" || got.Description != "hallway motion" {
		t.Errorf("GetByUID() = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "a" || got.Tags[1] != "lighting" {
		t.Errorf("Tags = %v, want [a lighting]", got.Tags)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].Input != "name" || got.Conditions[0].Equals != "EXAMPLE" {
		t.Errorf("Conditions = %+v", got.Conditions)
	}
	if got.Status.Status != StatusIdle {
		t.Errorf("Status = %v, want IDLE", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testRule("R1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testRule("R1")); !errors.Is(err, ErrRuleExists) {
		t.Errorf("Create() duplicate error = %v, want ErrRuleExists", err)
	}
}

func TestSQLiteRepository_GetByUID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	if _, err := repo.GetByUID(context.Background(), "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("GetByUID() error = %v, want ErrRuleNotFound", err)
	}
}

func TestSQLiteRepository_ListAndTags(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	for _, r := range []*Rule{testRule("R2", "a"), testRule("R1", "a", "b"), testRule("R3")} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create(%s) error = %v", r.UID, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 3 || list[0].UID != "R1" || list[2].UID != "R3" {
		t.Fatalf("List() = %+v", list)
	}
	if len(list[0].Tags) != 2 {
		t.Errorf("R1 tags = %v, want 2", list[0].Tags)
	}
	if list[2].Tags == nil || len(list[2].Tags) != 0 {
		t.Errorf("R3 tags = %#v, want empty slice", list[2].Tags)
	}

	uids, err := repo.ListUIDsByTag(ctx, " A")
	if err != nil {
		t.Fatalf("ListUIDsByTag() error = %v", err)
	}
	if len(uids) != 2 || uids[0] != "R1" || uids[1] != "R2" {
		t.Errorf("ListUIDsByTag(a) = %v, want [R1 R2]", uids)
	}

	none, err := repo.ListUIDsByTag(ctx, "zzz")
	if err != nil {
		t.Fatalf("ListUIDsByTag() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListUIDsByTag(zzz) = %v, want empty", none)
	}
}

func TestSQLiteRepository_UpdateReplacesTags(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	rule := testRule("R1", "a", "b")
	if err := repo.Create(ctx, rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rule.Name = "Renamed"
	rule.Tags = []string{"c"}
	rule.Enabled = false
	if err := repo.Update(ctx, rule); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByUID(ctx, "R1")
	if err != nil {
		t.Fatalf("GetByUID() error = %v", err)
	}
	if got.Name != "Renamed" || got.Enabled {
		t.Errorf("after Update got %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "c" {
		t.Errorf("Tags = %v, want [c]", got.Tags)
	}
	if got.Status.Status != StatusUninitialized || got.Status.Detail != DetailDisabled {
		t.Errorf("Status = %v, want UNINITIALIZED (DISABLED)", got.Status)
	}

	if err := repo.Update(ctx, testRule("missing")); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Update() missing error = %v, want ErrRuleNotFound", err)
	}
}

func TestSQLiteRepository_SetEnabled(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testRule("R1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.SetEnabled(ctx, "R1", false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	got, _ := repo.GetByUID(ctx, "R1") //nolint:errcheck // checked via got
	if got == nil || got.Enabled {
		t.Errorf("rule still enabled: %+v", got)
	}
	if err := repo.SetEnabled(ctx, "missing", true); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("SetEnabled() missing error = %v, want ErrRuleNotFound", err)
	}
}

func TestSQLiteRepository_DeleteCascades(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testRule("R1", "a")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.CreateRun(ctx, &Run{RuleUID: "R1"}); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	if err := repo.Delete(ctx, "R1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "R1"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrRuleNotFound", err)
	}

	uids, _ := repo.ListUIDsByTag(ctx, "a") //nolint:errcheck // checked via len
	if len(uids) != 0 {
		t.Errorf("tags survived delete: %v", uids)
	}
	runs, _ := repo.ListRuns(ctx, "R1", 10) //nolint:errcheck // checked via len
	if len(runs) != 0 {
		t.Errorf("runs survived delete: %v", runs)
	}
}

func TestSQLiteRepository_Runs(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, testRule("R1")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := &Run{
			RuleUID:            "R1",
			Inputs:             map[string]any{"name": "EXAMPLE", "n": float64(i)},
			ConsiderConditions: i == 1,
			Skipped:            i == 2,
			Source:             "test",
			TriggeredAt:        base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if run.ID == "" {
			t.Error("CreateRun() did not assign an id")
		}
	}

	runs, err := repo.ListRuns(ctx, "R1", 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(runs))
	}
	if !runs[0].TriggeredAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("newest run at %v, want %v", runs[0].TriggeredAt, base.Add(2*time.Second))
	}
	if !runs[0].Skipped || !runs[1].ConsiderConditions {
		t.Errorf("flags not round-tripped: %+v", runs)
	}
	if runs[0].Inputs["name"] != "EXAMPLE" || runs[0].Source != "test" {
		t.Errorf("run fields = %+v", runs[0])
	}
}
