package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing rule file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeRuleFile(t, `
rules:
  - uid: R1
    name: Hallway motion
    tags: [A, lighting]
    conditions:
      - input: name
        equals: EXAMPLE
  - uid: R2
    name: Porch light
    tags: [a]
    enabled: false
`)

	list, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("LoadFile() returned %d rules, want 2", len(list))
	}
	if !list[0].Enabled || list[1].Enabled {
		t.Errorf("enabled flags = %v/%v, want true/false", list[0].Enabled, list[1].Enabled)
	}
	if list[0].Tags[0] != "a" {
		t.Errorf("tags not normalised: %v", list[0].Tags)
	}
	if len(list[0].Conditions) != 1 || list[0].Conditions[0].Equals != "EXAMPLE" {
		t.Errorf("conditions = %+v", list[0].Conditions)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"invalid yaml", "rules: [", nil},
		{"invalid uid", "rules:\n  - uid: 'bad uid'\n    name: x\n", ErrInvalidUID},
		{"duplicate uid", "rules:\n  - uid: R1\n    name: x\n  - uid: R1\n    name: y\n", ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeRuleFile(t, tt.content))
			if err == nil {
				t.Fatal("LoadFile() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) expected error")
	}
}

func TestLocalRegistry_Import(t *testing.T) {
	reg, _ := newTestRegistry(t, nil, testRule("R1", "old"))
	ctx := context.Background()

	res, err := reg.Import(ctx, []Rule{*testRule("R1", "a"), *testRule("R2", "a")})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Created != 1 || res.Updated != 1 {
		t.Errorf("Import() = %+v, want 1 created 1 updated", res)
	}

	got, _ := reg.GetByTag(ctx, "a") //nolint:errcheck // cache read cannot fail
	if len(got) != 2 {
		t.Errorf("GetByTag(a) after import = %d rules, want 2", len(got))
	}
}
