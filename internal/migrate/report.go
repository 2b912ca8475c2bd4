package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdm/internal/safety"
	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/hashicorp/go-multierror"
)

// Pipeline names which per-document procedure handled a document
type Pipeline string

const (
	PipelineOwned  Pipeline = "owned"
	PipelineShared Pipeline = "shared"
)

// Stage is the step of a pipeline a failure happened in
type Stage string

const (
	StageFetch         Stage = "fetch"
	StageGatherSharing Stage = "gather_sharing"
	StageCopyContent   Stage = "copy_content"
	StageCopyMetadata  Stage = "copy_metadata"
	StageSyncFolders   Stage = "sync_folders"
	StageSyncSharing   Stage = "sync_sharing"
	StageMarkMigrated  Stage = "mark_migrated"
	StagePolicy        Stage = "policy"
	StageGrantAccess   Stage = "grant_access"
	StageFindCopy      Stage = "find_copy"
)

// StageError ties an error to the stage it came from
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Outcome is a document that went through a pipeline
type Outcome struct {
	Document      *types.Document `json:"document"`
	Pipeline      Pipeline        `json:"pipeline"`
	DestinationID string          `json:"destinationId,omitempty"`
	Folders       []string        `json:"folders"`
	Sharing       []sharing.Entry `json:"sharing"`
}

// Skip is a document left alone because it was already migrated
type Skip struct {
	Document *types.Document `json:"document"`
	Pipeline Pipeline        `json:"pipeline"`
	Reason   string          `json:"reason"`
}

// Failure is a document whose migration stopped at Stage
type Failure struct {
	Document *types.Document `json:"document"`
	Pipeline Pipeline        `json:"pipeline"`
	Stage    Stage           `json:"stage"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Err      error           `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %q (%s) failed at %s: %v", f.Pipeline, f.Document.Title, f.Document.ID, f.Stage, f.Err)
}

// Report is the result of a run
type Report struct {
	Migrated []Outcome                 `json:"migrated"`
	Skipped  []Skip                    `json:"skipped"`
	Failed   []Failure                 `json:"failed"`
	DryRun   bool                      `json:"dryRun"`
	Plan     []safety.PlannedOperation `json:"plan,omitempty"`
}

func newReport(dryRun bool) *Report {
	return &Report{
		Migrated: []Outcome{},
		Skipped:  []Skip{},
		Failed:   []Failure{},
		DryRun:   dryRun,
	}
}

func (r *Report) addFailure(doc *types.Document, pipeline Pipeline, err error) Failure {
	stage := StageFetch
	cause := err
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
		cause = se.Err
	}
	f := Failure{
		Document: doc,
		Pipeline: pipeline,
		Stage:    stage,
		Code:     utils.ErrorCode(cause),
		Message:  cause.Error(),
		Err:      cause,
	}
	r.Failed = append(r.Failed, f)
	return f
}

// Total is the number of documents the run considered
func (r *Report) Total() int {
	return len(r.Migrated) + len(r.Skipped) + len(r.Failed)
}

// Err aggregates every failure, or returns nil when there were none
func (r *Report) Err() error {
	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Summary is a one-line count of the outcomes
func (r *Report) Summary() string {
	prefix := ""
	if r.DryRun {
		prefix = "[dry run] "
	}
	return fmt.Sprintf("%s%d migrated, %d skipped, %d failed", prefix, len(r.Migrated), len(r.Skipped), len(r.Failed))
}

// AsTableRenderer renders one row per document
func (r *Report) AsTableRenderer() types.TableRenderer {
	return reportTable{report: r}
}

type reportTable struct {
	report *Report
}

func (t reportTable) Headers() []string {
	return []string{"Status", "Pipeline", "Title", "ID", "Detail"}
}

func (t reportTable) Rows() [][]string {
	var rows [][]string
	for _, o := range t.report.Migrated {
		detail := fmt.Sprintf("folders=%d sharing=%d", len(o.Folders), len(o.Sharing))
		if len(o.Folders) > 0 {
			detail += " [" + strings.Join(o.Folders, ", ") + "]"
		}
		rows = append(rows, []string{"migrated", string(o.Pipeline), o.Document.Title, o.Document.ID, detail})
	}
	for _, s := range t.report.Skipped {
		rows = append(rows, []string{"skipped", string(s.Pipeline), s.Document.Title, s.Document.ID, s.Reason})
	}
	for _, f := range t.report.Failed {
		rows = append(rows, []string{"failed", string(f.Pipeline), f.Document.Title, f.Document.ID,
			fmt.Sprintf("%s: %s (%s)", f.Stage, f.Code, f.Message)})
	}
	return rows
}

func (t reportTable) EmptyMessage() string {
	return "No documents to migrate"
}
