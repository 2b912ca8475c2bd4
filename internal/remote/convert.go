package remote

import (
	"path/filepath"
	"strings"

	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
)

type formatMimes struct {
	// export is the MIME type of the exported bytes
	export string
	// native is the Workspace type an upload converts back to; empty keeps the file as is
	native string
}

var exportMimes = map[types.ExportFormat]formatMimes{
	types.ExportFormatXLSX: {export: utils.MimeTypeXLSX, native: utils.MimeTypeSpreadsheet},
	types.ExportFormatDOCX: {export: utils.MimeTypeDOCX, native: utils.MimeTypeDocument},
	types.ExportFormatPPTX: {export: utils.MimeTypePPTX, native: utils.MimeTypePresentation},
	types.ExportFormatPDF: {export: utils.MimeTypePDF},
}

func formatFromPath(path string) (types.ExportFormat, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for format := range exportMimes {
		if format.Extension() == ext {
			return format, true
		}
	}
	return "", false
}

func toDocument(f *types.DriveFile) *types.Document {
	doc := &types.Document{
		ID:               f.ID,
		Title:            f.Name,
		Type:             types.DocumentTypeFromMime(f.MimeType),
		MimeType:         f.MimeType,
		Starred:          f.Starred,
		Hidden:           f.AppProperties[utils.HiddenAppProperty] == "true",
		WritersCanInvite: f.WritersCanShare,
		Owned:            f.OwnedByMe,
	}
	for _, id := range f.Parents {
		doc.Parents = append(doc.Parents, types.FolderRef{ID: id})
	}
	return doc
}

// toEntry converts a permission. It reports false for a user, group or
// domain permission without an identifier, such as one left by a deleted account.
func toEntry(p *types.Permission) (sharing.Entry, bool) {
	scopeID := p.EmailAddress
	if p.Type == string(sharing.ScopeDomain) {
		scopeID = p.Domain
	}
	if scopeID == "" && p.Type != string(sharing.ScopeAnyone) {
		return sharing.Entry{}, false
	}
	return sharing.NewEntry(sharing.ScopeType(p.Type), sharing.Role(p.Role), scopeID), true
}
