package ingest

import (
	"errors"
	"testing"

	"logsentry/internal/schema"
)

func TestJSONParser_Parse(t *testing.T) {
	parser := NewJSONParser()

	tests := []struct {
		name      string
		input     string
		wantLen   int
		wantErr   bool
		checkFunc func(t *testing.T, records []schema.Record)
	}{
		{
			name:    "array of objects",
			input:   `[{"timestamp":"2024-01-01 10:00:00","level":"ERROR","message":"Failed login","user":"alice"},{"level":"INFO","user":"bob"}]`,
			wantLen: 2,
			checkFunc: func(t *testing.T, records []schema.Record) {
				names := records[0].Names()
				want := []string{"timestamp", "level", "message", "user"}
				for i := range want {
					if names[i] != want[i] {
						t.Errorf("key order %v, want %v", names, want)
						break
					}
				}
			},
		},
		{
			name:    "empty array",
			input:   `[]`,
			wantLen: 0,
		},
		{
			name:    "single object is one row",
			input:   `{"level":"CRITICAL","user":"carol"}`,
			wantLen: 1,
			checkFunc: func(t *testing.T, records []schema.Record) {
				if v, _ := records[0].Text("level"); v != "CRITICAL" {
					t.Errorf("level = %q", v)
				}
			},
		},
		{
			name:    "json lines fallback",
			input:   "{\"level\":\"ERROR\",\"user\":\"a\"}\n\n{\"level\":\"INFO\",\"user\":\"b\"}\n",
			wantLen: 2,
		},
		{
			name:    "scalar types",
			input:   `[{"n":12.5,"ok":true,"none":null,"nested":{"a":[1,2]}}]`,
			wantLen: 1,
			checkFunc: func(t *testing.T, records []schema.Record) {
				r := records[0]
				if v, _ := r.Get("n"); v.Kind() != schema.KindNumber || v.String() != "12.5" {
					t.Errorf("n = %v (%v)", v, v.Kind())
				}
				if v, _ := r.Get("ok"); v.Kind() != schema.KindBool {
					t.Errorf("ok kind = %v", v.Kind())
				}
				if v, ok := r.Get("none"); !ok || !v.IsNull() {
					t.Errorf("none = %v", v)
				}
				if v, _ := r.Text("nested"); v != `{"a":[1,2]}` {
					t.Errorf("nested = %q", v)
				}
			},
		},
		{
			name:    "array with non-object element",
			input:   `[{"level":"INFO"}, 3]`,
			wantErr: true,
		},
		{
			name:    "top-level scalar",
			input:   `"just a string"`,
			wantErr: true,
		},
		{
			name:    "json lines with bad line",
			input:   "{\"level\":\"ERROR\"}\nnot json\n",
			wantErr: true,
		},
		{
			name:    "json lines with array line",
			input:   "{\"level\":\"ERROR\"}\n[1,2]\n",
			wantErr: true,
		},
		{
			name:    "blank document",
			input:   "\n  \n",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, _, err := parser.Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error = %T, want *ParseError", err)
				}
				return
			}
			if len(records) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(records), tt.wantLen)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, records)
			}
		})
	}
}

func TestJSONParser_FallbackFailureIsAllOrNothing(t *testing.T) {
	input := "{\"level\":\"ERROR\"}\n{\"level\":\"INFO\"}\n{broken\n"
	records, _, err := NewJSONParser().Parse([]byte(input))
	if err == nil {
		t.Fatal("expected error")
	}
	if records != nil {
		t.Errorf("partial results returned: %d records", len(records))
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 3 {
		t.Errorf("error = %v, want ParseError on line 3", err)
	}
}

func TestJSONParser_RejectsInvalidStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"bad escape in array", `[{"level":"ERROR","message":"bad \q escape","user":"x"}]`, 1},
		{"raw tab in array", "[{\"level\":\"ERROR\",\"message\":\"a\tb\",\"user\":\"x\"}]", 1},
		{"bad escape on second line", "{\"level\":\"INFO\"}\n{\"message\":\"\\q\"}\n", 2},
		{"raw control char on line", "{\"level\":\"INFO\",\"message\":\"a\x01b\"}\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, _, err := NewJSONParser().Parse([]byte(tt.input))
			if records != nil {
				t.Errorf("unexpected records: %v", records)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want ParseError", err)
			}
			if pe.Line != tt.line {
				t.Errorf("Line = %d, want %d", pe.Line, tt.line)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Error("expected ErrMalformed")
			}
		})
	}
}
