package rules

import "testing"

func TestRule_DeepCopy(t *testing.T) {
	orig := &Rule{
		UID:        "R1",
		Tags:       []string{"a"},
		Conditions: []Condition{{Input: "cfg", Equals: map[string]any{"level": []any{1, 2}}}},
	}
	cpy := orig.DeepCopy()

	cpy.Tags[0] = "b"
	nested := cpy.Conditions[0].Equals.(map[string]any)
	nested["level"].([]any)[0] = 99

	if orig.Tags[0] != "a" {
		t.Error("tags shared between copies")
	}
	origNested := orig.Conditions[0].Equals.(map[string]any)
	if origNested["level"].([]any)[0] != 1 {
		t.Error("condition values shared between copies")
	}

	var nilRule *Rule
	if nilRule.DeepCopy() != nil {
		t.Error("DeepCopy(nil) should be nil")
	}
}

func TestStatusInfo_String(t *testing.T) {
	tests := []struct {
		in   StatusInfo
		want string
	}{
		{StatusInfo{Status: StatusIdle, Detail: DetailNone}, "IDLE"},
		{StatusInfo{Status: StatusIdle}, "IDLE"},
		{StatusInfo{Status: StatusUninitialized, Detail: DetailDisabled}, "UNINITIALIZED (DISABLED)"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
