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

// MigrateShared gives the destination account write access to a document
// shared with the source account, files the destination's view of it into
// the same folders, and tags the source copy.
func (m *Migrator) MigrateShared(ctx context.Context, doc *types.Document, report *Report) {
	ctx, logger := m.documentScope(ctx, doc, PipelineShared)

	outcome, skipped, err := m.migrateShared(ctx, doc, logger)
	switch {
	case err != nil:
		m.fail(report, logger, doc, PipelineShared, err)
	case skipped:
		m.skip(report, logger, outcome.Document, PipelineShared)
	default:
		report.Migrated = append(report.Migrated, *outcome)
		logger.Info("Shared document migrated",
			logging.F("title", doc.Title),
			logging.F("id", doc.ID),
		)
	}
}

func (m *Migrator) migrateShared(ctx context.Context, doc *types.Document, logger logging.Logger) (*Outcome, bool, error) {
	full, err := m.fetch(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	if full.InFolder(m.opts.TagFolder) {
		return &Outcome{Document: full}, true, nil
	}

	entries, err := m.source.FetchSharingEntries(ctx, full)
	if err != nil {
		return nil, false, stageErr(StageGatherSharing, err)
	}
	if err := m.checkEscalation(full, sharing.NewSet(entries...)); err != nil {
		return nil, false, err
	}

	grant := sharing.NewEntry(sharing.ScopeUser, sharing.RoleWriter, m.dest.Account())
	if m.plan != nil {
		safety.RecordGrant(m.plan, m.source.Account(), full, string(grant.ScopeType), string(grant.Role), grant.ScopeID)
	} else if err := m.source.GrantSharingEntry(ctx, full, grant); err != nil {
		return nil, false, stageErr(StageGrantAccess, err)
	}

	folders := gatherFolders(full)
	target, found, err := m.dest.FindDocumentByExactTitle(ctx, full.Title)
	if err != nil {
		return nil, false, stageErr(StageFindCopy, err)
	}
	if m.plan != nil && !found {
		// The grant that would make the document visible has not happened.
		target, found = &types.Document{ID: full.ID, Title: full.Title, Type: full.Type}, true
	}
	if found {
		if err := m.syncFolders(ctx, target, folders); err != nil {
			return nil, false, err
		}
	} else {
		logger.Warn("Destination copy not found by title, folders not synced",
			logging.F("title", full.Title),
			logging.F("id", full.ID),
		)
		folders = []string{}
	}

	if err := m.markMigrated(ctx, full); err != nil {
		return nil, false, err
	}

	outcome := &Outcome{
		Document: full,
		Pipeline: PipelineShared,
		Folders:  folders,
		Sharing:  []sharing.Entry{grant},
	}
	if found {
		outcome.DestinationID = target.ID
	}
	return outcome, false, nil
}

// checkEscalation allows granting only when the document lets writers share
// and the source account is a writer on it
func (m *Migrator) checkEscalation(doc *types.Document, entries *sharing.Set) error {
	own, ok := entries.Find(m.source.Account())
	switch {
	case !ok:
		return stageErr(StagePolicy, escalationErr(doc, "source account has no sharing entry on the document"))
	case !doc.WritersCanInvite:
		return stageErr(StagePolicy, escalationErr(doc, "the document does not let writers share it"))
	case own.Role != sharing.RoleWriter:
		return stageErr(StagePolicy, escalationErr(doc, fmt.Sprintf("source account is %s, not writer", own.Role)))
	}
	return nil
}

func escalationErr(doc *types.Document, reason string) error {
	return utils.NewCLIError(utils.ErrCodeEscalationNotPermitted,
		fmt.Sprintf("Cannot grant access: %s", reason)).
		WithContext("documentId", doc.ID).
		Err()
}
