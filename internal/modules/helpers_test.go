package modules

import (
	"testing"
)

func TestToJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{"map", map[string]string{"a": "b"}, `{"a":"b"}`, false},
		{"struct", struct {
			Name string `json:"name"`
		}{Name: "test"}, `{"name":"test"}`, false},
		{"nil", nil, "null", false},
		{"number", 42, "42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToStringSlice(t *testing.T) {
	tests := []struct {
		name  string
		input []interface{}
		want  int
	}{
		{"all strings", []interface{}{"a", "b", "c"}, 3},
		{"mixed types", []interface{}{"a", 42, true, "b"}, 2},
		{"empty", []interface{}{}, 0},
		{"no strings", []interface{}{1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToStringSlice(tt.input)
			if len(got) != tt.want {
				t.Errorf("len(ToStringSlice()) = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"name":    "octocat",
		"limit":   float64(10),
		"shallow": true,
		"empty":   "",
	}

	if got := StringParam(params, "name", "x"); got != "octocat" {
		t.Errorf("StringParam(name) = %q", got)
	}
	if got := StringParam(params, "missing", "fallback"); got != "fallback" {
		t.Errorf("StringParam(missing) = %q", got)
	}
	if got := StringParam(params, "empty", "fallback"); got != "fallback" {
		t.Errorf("StringParam(empty) = %q, want fallback", got)
	}
	if got := IntParam(params, "limit", 0); got != 10 {
		t.Errorf("IntParam(limit) = %d", got)
	}
	if got := IntParam(params, "missing", 30); got != 30 {
		t.Errorf("IntParam(missing) = %d", got)
	}
	if got := BoolParam(params, "shallow", false); !got {
		t.Error("BoolParam(shallow) = false, want true")
	}
	if got := BoolParam(params, "missing", false); got {
		t.Error("BoolParam(missing) = true, want false")
	}
}
