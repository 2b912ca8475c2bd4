package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
)

type staticTable struct {
	rows [][]string
}

func (s staticTable) Headers() []string    { return []string{"Name", "Value"} }
func (s staticTable) Rows() [][]string     { return s.rows }
func (s staticTable) EmptyMessage() string { return "nothing here" }

func newTestWriter(format types.OutputFormat, quiet bool) (*OutputWriter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	w := NewOutputWriter(format, quiet, false).WithWriters(&out, &errOut).WithTraceID("trace-1")
	return w, &out, &errOut
}

func TestOutputWriter_JSONEnvelope(t *testing.T) {
	w, out, _ := newTestWriter(types.OutputFormatJSON, false)
	w.AddWarning("PARTIAL", "one document failed", "warning")

	if err := w.WriteSuccess("migrate", map[string]int{"migrated": 2}); err != nil {
		t.Fatalf("WriteSuccess: %v", err)
	}

	var got types.CLIOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	if got.SchemaVersion != utils.SchemaVersion {
		t.Errorf("SchemaVersion = %q", got.SchemaVersion)
	}
	if got.TraceID != "trace-1" {
		t.Errorf("TraceID = %q, want trace-1", got.TraceID)
	}
	if got.Command != "migrate" {
		t.Errorf("Command = %q", got.Command)
	}
	if got.Errors == nil || len(got.Errors) != 0 {
		t.Errorf("Errors = %v, want empty list", got.Errors)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Code != "PARTIAL" {
		t.Errorf("Warnings = %v", got.Warnings)
	}
	if !strings.Contains(out.String(), `"migrated": 2`) {
		t.Errorf("data missing from output:\n%s", out.String())
	}
}

func TestOutputWriter_WriteError(t *testing.T) {
	cliErr := types.CLIError{Code: utils.ErrCodeAuthRequired, Message: "run gdm auth login"}

	t.Run("json", func(t *testing.T) {
		w, out, errOut := newTestWriter(types.OutputFormatJSON, false)
		if err := w.WriteError("migrate", cliErr); err != nil {
			t.Fatalf("WriteError: %v", err)
		}
		var got types.CLIOutput
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got.Errors) != 1 || got.Errors[0].Code != utils.ErrCodeAuthRequired {
			t.Errorf("Errors = %v", got.Errors)
		}
		if errOut.Len() != 0 {
			t.Errorf("unexpected stderr output: %q", errOut.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		w, out, errOut := newTestWriter(types.OutputFormatTable, false)
		if err := w.WriteError("migrate", cliErr); err != nil {
			t.Fatalf("WriteError: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("unexpected stdout output: %q", out.String())
		}
		want := "Error [AUTH_REQUIRED]: run gdm auth login\n"
		if errOut.String() != want {
			t.Errorf("stderr = %q, want %q", errOut.String(), want)
		}
	})
}

func TestOutputWriter_Table(t *testing.T) {
	tests := []struct {
		name     string
		data     interface{}
		quiet    bool
		contains []string
		empty    bool
	}{
		{
			name:     "rows",
			data:     staticTable{rows: [][]string{{"budget", "ok"}, {"notes", "skipped"}}},
			contains: []string{"NAME", "budget", "skipped"},
		},
		{
			name:     "empty table prints message",
			data:     staticTable{},
			contains: []string{"nothing here"},
		},
		{
			name:  "empty table quiet",
			data:  staticTable{},
			quiet: true,
			empty: true,
		},
		{
			name:     "renderable",
			data:     profileList{{Profile: "source", Authenticated: true, Type: types.AuthTypeOAuth}},
			contains: []string{"PROFILE", "source", "oauth"},
		},
		{
			name:     "falls back to json",
			data:     map[string]string{"status": "logged_out"},
			contains: []string{`"status": "logged_out"`, `"command": "unknown"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out, _ := newTestWriter(types.OutputFormatTable, tt.quiet)
			if err := w.WriteSuccess("test", tt.data); err != nil {
				t.Fatalf("WriteSuccess: %v", err)
			}
			if tt.empty && out.Len() != 0 {
				t.Errorf("expected no output, got %q", out.String())
			}
			for _, s := range tt.contains {
				if !strings.Contains(out.String(), s) {
					t.Errorf("output missing %q:\n%s", s, out.String())
				}
			}
		})
	}
}

func TestOutputWriter_Log(t *testing.T) {
	w, _, errOut := newTestWriter(types.OutputFormatTable, false)
	w.Log("migrated %d", 3)
	w.Verbose("hidden")
	if errOut.String() != "migrated 3\n" {
		t.Errorf("stderr = %q", errOut.String())
	}

	quiet, _, quietErr := newTestWriter(types.OutputFormatTable, true)
	quiet.Log("suppressed")
	if quietErr.Len() != 0 {
		t.Errorf("quiet writer logged %q", quietErr.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a rather long scope list", 10); got != "a rathe..." {
		t.Errorf("truncate long = %q", got)
	}
}
