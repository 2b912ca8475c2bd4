package migrate

import (
	"context"
	"fmt"

	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/safety"
	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
)

// MigrateOwned copies one document owned by the source account to the
// destination account and records the result in report.
func (m *Migrator) MigrateOwned(ctx context.Context, doc *types.Document, report *Report) {
	ctx, logger := m.documentScope(ctx, doc, PipelineOwned)

	outcome, skipped, err := m.migrateOwned(ctx, doc)
	switch {
	case err != nil:
		m.fail(report, logger, doc, PipelineOwned, err)
	case skipped:
		m.skip(report, logger, outcome.Document, PipelineOwned)
	default:
		report.Migrated = append(report.Migrated, *outcome)
		logger.Info("Document migrated",
			logging.F("title", doc.Title),
			logging.F("id", doc.ID),
			logging.F("destinationId", outcome.DestinationID),
		)
	}
}

func (m *Migrator) migrateOwned(ctx context.Context, doc *types.Document) (*Outcome, bool, error) {
	full, err := m.fetch(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	if full.InFolder(m.opts.TagFolder) {
		return &Outcome{Document: full}, true, nil
	}

	folders := gatherFolders(full)
	entries, err := m.gatherSharing(ctx, full)
	if err != nil {
		return nil, false, err
	}

	target, err := m.copyContent(ctx, full)
	if err != nil {
		return nil, false, err
	}
	if err := m.copyMetadata(ctx, full, target); err != nil {
		return nil, false, err
	}
	if err := m.syncFolders(ctx, target, folders); err != nil {
		return nil, false, err
	}
	if err := m.syncSharing(ctx, target, entries); err != nil {
		return nil, false, err
	}
	if err := m.markMigrated(ctx, full); err != nil {
		return nil, false, err
	}

	return &Outcome{
		Document:      full,
		Pipeline:      PipelineOwned,
		DestinationID: target.ID,
		Folders:       folders,
		Sharing:       entries.Entries(),
	}, false, nil
}

// gatherSharing returns doc's entries without those of the two accounts, first-wins
func (m *Migrator) gatherSharing(ctx context.Context, doc *types.Document) (*sharing.Set, error) {
	entries, err := m.source.FetchSharingEntries(ctx, doc)
	if err != nil {
		return nil, stageErr(StageGatherSharing, err)
	}
	return sharing.NewSet(entries...).Without(m.source.Account(), m.dest.Account()), nil
}

// copyContent exports doc from the source and uploads it to the destination
// root under the placeholder title
func (m *Migrator) copyContent(ctx context.Context, doc *types.Document) (*types.Document, error) {
	if doc.Type != types.DocumentTypeSpreadsheet {
		return nil, stageErr(StageCopyContent, utils.NewCLIError(utils.ErrCodeUnsupportedDocumentType,
			fmt.Sprintf("Document type %s cannot be migrated", doc.Type)).
			WithContext("documentId", doc.ID).
			WithContext("mimeType", doc.MimeType).
			Err())
	}
	format, _ := types.ExportFormatFor(doc.Type)

	if m.plan != nil {
		safety.RecordUpload(m.plan, m.dest.Account(), doc.ID, m.opts.PlaceholderTitle, format)
		return &types.Document{Title: m.opts.PlaceholderTitle, Type: doc.Type, MimeType: doc.MimeType}, nil
	}

	path, err := m.source.DownloadExport(ctx, doc, format)
	if err != nil {
		return nil, stageErr(StageCopyContent, err)
	}
	target, err := m.dest.UploadFile(ctx, path, m.opts.PlaceholderTitle, "")
	if err != nil {
		return nil, stageErr(StageCopyContent, err)
	}
	return target, nil
}

// copyMetadata gives target the title and flags of doc
func (m *Migrator) copyMetadata(ctx context.Context, doc, target *types.Document) error {
	target.Title = doc.Title
	target.Starred = doc.Starred
	target.Hidden = doc.Hidden
	target.WritersCanInvite = doc.WritersCanInvite

	if m.plan != nil {
		safety.RecordUpdateMetadata(m.plan, m.dest.Account(), target)
		return nil
	}
	return stageErr(StageCopyMetadata, m.dest.UpdateMetadata(ctx, target))
}

// syncSharing grants every entry on target
func (m *Migrator) syncSharing(ctx context.Context, target *types.Document, entries *sharing.Set) error {
	for _, e := range entries.Entries() {
		if m.plan != nil {
			safety.RecordGrant(m.plan, m.dest.Account(), target, string(e.ScopeType), string(e.Role), e.ScopeID)
			continue
		}
		if err := m.dest.GrantSharingEntry(ctx, target, e); err != nil {
			return stageErr(StageSyncSharing, fmt.Errorf("grant %s: %w", e, err))
		}
	}
	return nil
}
