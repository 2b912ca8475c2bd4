// Package migrate moves documents, folder memberships and sharing entries
// from a source account to a destination account.
//
// Each document goes through its pipeline on its own: a failure is recorded
// in the Report and the run continues with the next document. Documents whose
// source copy sits in the tag folder are skipped.
package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/safety"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/google/uuid"
)

// Migrator runs the migration pipelines between two accounts
type Migrator struct {
	source Remote
	dest   Remote
	opts   Options
	logger logging.Logger
	plan   *safety.PlanRecorder
}

// New creates a migrator. The accounts must differ.
func New(source, dest Remote, opts Options, logger logging.Logger) (*Migrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Invalid migration options: %s", err)).Err()
	}
	if strings.EqualFold(source.Account(), dest.Account()) {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"Source and destination accounts must differ").
			WithContext("account", source.Account()).
			Err()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	m := &Migrator{
		source: source,
		dest:   dest,
		opts:   opts,
		logger: logger,
	}
	if opts.DryRun {
		m.plan = safety.NewPlanRecorder()
	}
	return m, nil
}

// Run migrates every owned document and, when enabled, every shared
// document. The error is non-nil only when a listing failed or ctx was
// cancelled; per-document failures are in the report.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	report := newReport(m.opts.DryRun)
	defer func() {
		if m.plan != nil {
			report.Plan = m.plan.Operations()
		}
	}()

	m.logger.Info("Migration starting",
		logging.F("source", m.source.Account()),
		logging.F("dest", m.dest.Account()),
		logging.F("dryRun", m.opts.DryRun),
		logging.F("tagFolder", m.opts.TagFolder),
	)

	if m.opts.runOwned() {
		if err := m.runPipeline(ctx, report, types.FilterOwned, PipelineOwned, m.MigrateOwned); err != nil {
			return report, err
		}
	}
	if m.opts.runShared() {
		if err := m.runPipeline(ctx, report, types.FilterShared, PipelineShared, m.MigrateShared); err != nil {
			return report, err
		}
	}

	m.logger.Info("Migration finished",
		logging.F("migrated", len(report.Migrated)),
		logging.F("skipped", len(report.Skipped)),
		logging.F("failed", len(report.Failed)),
	)
	return report, nil
}

type documentFunc func(ctx context.Context, doc *types.Document, report *Report)

func (m *Migrator) runPipeline(ctx context.Context, report *Report, filter types.DocumentFilter, pipeline Pipeline, migrate documentFunc) error {
	docs, err := m.source.ListDocuments(ctx, filter)
	if err != nil {
		m.logger.Error("Failed to list documents",
			logging.F("pipeline", pipeline),
			logging.F("error", err),
		)
		return err
	}
	if m.opts.Limit > 0 && len(docs) > m.opts.Limit {
		docs = docs[:m.opts.Limit]
	}

	m.logger.Info("Processing documents",
		logging.F("pipeline", pipeline),
		logging.F("count", len(docs)),
	)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return utils.NewCLIError(utils.ErrCodeCancelled, "Migration cancelled").
				WithContext("pipeline", string(pipeline)).
				Err()
		}
		migrate(ctx, doc, report)
	}
	return nil
}

// documentScope starts the per-document trace
func (m *Migrator) documentScope(ctx context.Context, doc *types.Document, pipeline Pipeline) (context.Context, logging.Logger) {
	traceID := uuid.New().String()
	ctx = logging.ContextWithTraceID(ctx, traceID)
	logger := m.logger.WithTraceID(traceID)
	logger.Debug("Migrating document",
		logging.F("pipeline", pipeline),
		logging.F("title", doc.Title),
		logging.F("id", doc.ID),
	)
	return ctx, logger
}

func (m *Migrator) fail(report *Report, logger logging.Logger, doc *types.Document, pipeline Pipeline, err error) {
	f := report.addFailure(doc, pipeline, err)
	logger.Error("Document migration failed",
		logging.F("pipeline", pipeline),
		logging.F("title", doc.Title),
		logging.F("id", doc.ID),
		logging.F("stage", f.Stage),
		logging.F("code", f.Code),
		logging.F("error", f.Message),
	)
}

func (m *Migrator) skip(report *Report, logger logging.Logger, doc *types.Document, pipeline Pipeline) {
	report.Skipped = append(report.Skipped, Skip{
		Document: doc,
		Pipeline: pipeline,
		Reason:   fmt.Sprintf("already in %q", m.opts.TagFolder),
	})
	logger.Info("Skipping migrated document",
		logging.F("title", doc.Title),
		logging.F("id", doc.ID),
	)
}

// fetch re-reads doc with its parent titles resolved
func (m *Migrator) fetch(ctx context.Context, doc *types.Document) (*types.Document, error) {
	full, err := m.source.FetchDocument(ctx, doc.ID)
	if err != nil {
		return nil, stageErr(StageFetch, err)
	}
	return full, nil
}

// gatherFolders returns the parent titles of doc, duplicates removed
func gatherFolders(doc *types.Document) []string {
	seen := make(map[string]bool)
	titles := []string{}
	for _, t := range doc.ParentTitles() {
		if !seen[t] {
			seen[t] = true
			titles = append(titles, t)
		}
	}
	return titles
}

// syncFolders puts target into a destination folder for every title
func (m *Migrator) syncFolders(ctx context.Context, target *types.Document, titles []string) error {
	for _, title := range titles {
		if err := m.addToFolder(ctx, m.dest, target, title, false); err != nil {
			return stageErr(StageSyncFolders, err)
		}
	}
	return nil
}

// markMigrated links the source document into the tag folder without
// moving it out of its own folders
func (m *Migrator) markMigrated(ctx context.Context, doc *types.Document) error {
	return stageErr(StageMarkMigrated, m.addToFolder(ctx, m.source, doc, m.opts.TagFolder, true))
}

func (m *Migrator) addToFolder(ctx context.Context, r Remote, doc *types.Document, title string, link bool) error {
	if m.plan != nil {
		_, found, err := r.FindFolderByExactTitle(ctx, title)
		if err != nil {
			return err
		}
		if !found {
			safety.RecordCreateFolder(m.plan, r.Account(), title)
		}
		safety.RecordAddToFolder(m.plan, r.Account(), doc, title)
		return nil
	}

	folder, err := r.FindOrCreateFolder(ctx, title)
	if err != nil {
		return err
	}
	if link {
		return r.LinkDocumentToFolder(ctx, doc, folder)
	}
	return r.AddDocumentToFolder(ctx, doc, folder)
}
