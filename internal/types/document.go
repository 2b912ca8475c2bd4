package types

import "strings"

// DocumentType is the closed set of document families the migration knows about
type DocumentType string

const (
	DocumentTypeSpreadsheet  DocumentType = "spreadsheet"
	DocumentTypeDocument     DocumentType = "document"
	DocumentTypePresentation DocumentType = "presentation"
	DocumentTypePDF          DocumentType = "pdf"
	DocumentTypeFolder       DocumentType = "folder"
	DocumentTypeUnsupported  DocumentType = "unsupported"
)

const (
	mimeTypeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	mimeTypeDocument     = "application/vnd.google-apps.document"
	mimeTypePresentation = "application/vnd.google-apps.presentation"
	mimeTypeFolder       = "application/vnd.google-apps.folder"
	mimeTypePDF          = "application/pdf"
)

// DocumentTypeFromMime maps a Drive MIME type onto a DocumentType
func DocumentTypeFromMime(mimeType string) DocumentType {
	switch mimeType {
	case mimeTypeSpreadsheet:
		return DocumentTypeSpreadsheet
	case mimeTypeDocument:
		return DocumentTypeDocument
	case mimeTypePresentation:
		return DocumentTypePresentation
	case mimeTypeFolder:
		return DocumentTypeFolder
	case mimeTypePDF:
		return DocumentTypePDF
	}
	return DocumentTypeUnsupported
}

// FolderRef is one parent-folder link of a document. Title is empty until
// the parent has been resolved.
type FolderRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Document is a remote item as seen by one account
type Document struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Type             DocumentType `json:"type"`
	MimeType         string       `json:"mimeType"`
	Starred          bool         `json:"starred"`
	Hidden           bool         `json:"hidden"`
	WritersCanInvite bool         `json:"writersCanInvite"`
	Owned            bool         `json:"owned"`
	Parents          []FolderRef  `json:"parents,omitempty"`
}

// ParentTitles returns the resolved parent titles in order, skipping
// parents whose title is unknown.
func (d *Document) ParentTitles() []string {
	titles := make([]string, 0, len(d.Parents))
	for _, p := range d.Parents {
		if p.Title != "" {
			titles = append(titles, p.Title)
		}
	}
	return titles
}

// InFolder reports whether one of the document's parents has exactly the given title.
// The comparison is case-sensitive.
func (d *Document) InFolder(title string) bool {
	for _, p := range d.Parents {
		if p.Title != "" && p.Title == title {
			return true
		}
	}
	return false
}

// IsFolder reports whether the document is a folder
func (d *Document) IsFolder() bool {
	return d.Type == DocumentTypeFolder
}

// DocumentFilter selects which documents ListDocuments returns
type DocumentFilter string

const (
	// FilterOwned selects non-trashed, non-folder documents owned by the account
	FilterOwned DocumentFilter = "owned"
	// FilterShared selects non-trashed, non-folder documents shared with the account
	FilterShared DocumentFilter = "shared"
)

// ExportFormat names the Office format a document family is exported to
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatDOCX ExportFormat = "docx"
	ExportFormatPPTX ExportFormat = "pptx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ExportFormatFor returns the export format used for a document family
func ExportFormatFor(t DocumentType) (ExportFormat, bool) {
	switch t {
	case DocumentTypeSpreadsheet:
		return ExportFormatXLSX, true
	case DocumentTypeDocument:
		return ExportFormatDOCX, true
	case DocumentTypePresentation:
		return ExportFormatPPTX, true
	case DocumentTypePDF:
		return ExportFormatPDF, true
	}
	return "", false
}

// Extension returns the file extension used for temporary export files
func (f ExportFormat) Extension() string {
	return "." + strings.ToLower(string(f))
}
