package migrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
)

func TestReport_AddFailure(t *testing.T) {
	doc := &types.Document{ID: "doc-1", Title: "Budget"}
	cause := utils.NewCLIError(utils.ErrCodePermissionDenied, "denied").Err()

	tests := []struct {
		name      string
		err       error
		wantStage Stage
		wantCode  string
	}{
		{"staged", stageErr(StageSyncSharing, cause), StageSyncSharing, utils.ErrCodePermissionDenied},
		{"unstaged", cause, StageFetch, utils.ErrCodePermissionDenied},
		{"plain error", stageErr(StageCopyContent, errors.New("disk full")), StageCopyContent, utils.ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReport(false)
			f := r.addFailure(doc, PipelineOwned, tt.err)
			if f.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", f.Stage, tt.wantStage)
			}
			if f.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", f.Code, tt.wantCode)
			}
			if len(r.Failed) != 1 {
				t.Errorf("Failed has %d entries", len(r.Failed))
			}
		})
	}
}

func TestStageErr_Nil(t *testing.T) {
	if err := stageErr(StageFetch, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestReport_Err(t *testing.T) {
	r := newReport(false)
	if err := r.Err(); err != nil {
		t.Fatalf("expected nil for an empty report, got %v", err)
	}

	r.addFailure(&types.Document{ID: "a", Title: "One"}, PipelineOwned, stageErr(StageFetch, errors.New("first")))
	r.addFailure(&types.Document{ID: "b", Title: "Two"}, PipelineShared, stageErr(StagePolicy, errors.New("second")))

	err := r.Err()
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	for _, want := range []string{`owned "One" (a) failed at fetch: first`, `shared "Two" (b) failed at policy: second`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestReport_SummaryAndTable(t *testing.T) {
	r := newReport(true)
	r.Migrated = append(r.Migrated, Outcome{
		Document: &types.Document{ID: "a", Title: "Budget"},
		Pipeline: PipelineOwned,
		Folders:  []string{"Finance", "2023"},
		Sharing:  []sharing.Entry{sharing.NewEntry(sharing.ScopeUser, sharing.RoleWriter, "alice@x.com")},
	})
	r.Skipped = append(r.Skipped, Skip{Document: &types.Document{ID: "b", Title: "Old"}, Pipeline: PipelineOwned, Reason: "already tagged"})
	r.addFailure(&types.Document{ID: "c", Title: "Notes"}, PipelineOwned, stageErr(StageCopyContent,
		utils.NewCLIError(utils.ErrCodeUnsupportedDocumentType, "unsupported").Err()))

	if got, want := r.Summary(), "[dry run] 1 migrated, 1 skipped, 1 failed"; got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
	if r.Total() != 3 {
		t.Errorf("Total() = %d, want 3", r.Total())
	}

	table := r.AsTableRenderer()
	if len(table.Headers()) != 5 {
		t.Errorf("unexpected headers %v", table.Headers())
	}
	rows := table.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "migrated" || rows[0][4] != "folders=2 sharing=1 [Finance, 2023]" {
		t.Errorf("unexpected migrated row %v", rows[0])
	}
	if rows[1][0] != "skipped" || rows[1][4] != "already tagged" {
		t.Errorf("unexpected skipped row %v", rows[1])
	}
	if rows[2][0] != "failed" || !strings.HasPrefix(rows[2][4], "copy_content: UNSUPPORTED_DOCUMENT_TYPE") {
		t.Errorf("unexpected failed row %v", rows[2])
	}
}
