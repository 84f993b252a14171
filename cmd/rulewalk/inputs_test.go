package main

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestParseInputs(t *testing.T) {
	defaults := map[string]any{"name": "EXAMPLE"}

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"defaults only", nil, map[string]any{"name": "EXAMPLE"}, false},
		{"override", []string{"name=other"}, map[string]any{"name": "other"}, false},
		{"typed scalars", []string{"count=3", "armed=true", "level=0.5"},
			map[string]any{"name": "EXAMPLE", "count": 3, "armed": true, "level": 0.5}, false},
		{"quoted stays string", []string{`count="3"`}, map[string]any{"name": "EXAMPLE", "count": "3"}, false},
		{"empty value", []string{"note="}, map[string]any{"name": "EXAMPLE", "note": ""}, false},
		{"structured stays literal", []string{"list=[1,2]"}, map[string]any{"name": "EXAMPLE", "list": "[1,2]"}, false},
		{"value with equals", []string{"expr=a=b"}, map[string]any{"name": "EXAMPLE", "expr": "a=b"}, false},
		{"leading zero stays string", []string{"code=007"}, map[string]any{"name": "EXAMPLE", "code": "007"}, false},
		{"hex stays string", []string{"h=0x10"}, map[string]any{"name": "EXAMPLE", "h": "0x10"}, false},
		{"date stays string", []string{"d=2020-01-01"}, map[string]any{"name": "EXAMPLE", "d": "2020-01-01"}, false},
		{"inf stays string", []string{"n=.inf"}, map[string]any{"name": "EXAMPLE", "n": ".inf"}, false},
		{"nan stays string", []string{"n=.nan"}, map[string]any{"name": "EXAMPLE", "n": ".nan"}, false},
		{"oversized int stays string", []string{"id=99999999999999999999"},
			map[string]any{"name": "EXAMPLE", "id": "99999999999999999999"}, false},
		{"yaml words stay string", []string{"a=yes", "b=null", "c=True"},
			map[string]any{"name": "EXAMPLE", "a": "yes", "b": "null", "c": "True"}, false},
		{"negative numbers", []string{"n=-4", "f=-0.25"}, map[string]any{"name": "EXAMPLE", "n": -4, "f": -0.25}, false},
		{"exponent stays string", []string{"e=1e3"}, map[string]any{"name": "EXAMPLE", "e": "1e3"}, false},
		{"missing equals", []string{"name"}, nil, true},
		{"empty key", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(defaults, tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseInputs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseInputs() = %v, want %v", got, tt.want)
			}
		})
	}

	if defaults["name"] != "EXAMPLE" || len(defaults) != 1 {
		t.Errorf("defaults modified: %v", defaults)
	}
}

func TestParseInputs_RejectsUnencodableDefaults(t *testing.T) {
	tests := []struct {
		name     string
		defaults map[string]any
	}{
		{"infinity", map[string]any{"level": math.Inf(1)}},
		{"nan", map[string]any{"level": math.NaN()}},
		{"channel", map[string]any{"ch": make(chan int)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInputs(tt.defaults, []string{"count=1"})
			if err == nil {
				t.Fatal("parseInputs() should reject inputs that cannot be encoded")
			}
			if !strings.Contains(err.Error(), "cannot be encoded") {
				t.Errorf("error = %v", err)
			}
		})
	}
}
