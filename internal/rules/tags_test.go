package rules

import (
	"reflect"
	"testing"
)

func TestNormaliseTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"trim and lower", []string{" Lighting ", "A"}, []string{"a", "lighting"}},
		{"dedupe", []string{"a", "A", " a"}, []string{"a"}},
		{"drop empty", []string{"", "  ", "b"}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormaliseTags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormaliseTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRule_HasTag(t *testing.T) {
	r := &Rule{Tags: []string{"Lighting", "a"}}
	if !r.HasTag("lighting") || !r.HasTag(" A ") {
		t.Error("HasTag() should match after normalisation")
	}
	if r.HasTag("b") {
		t.Error("HasTag(b) = true, want false")
	}
}
