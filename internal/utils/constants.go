package utils

import "strings"

// OAuth scopes
const (
	ScopeFull           = "https://www.googleapis.com/auth/drive"
	ScopeReadonly       = "https://www.googleapis.com/auth/drive.readonly"
	ScopeSheetsReadonly = "https://www.googleapis.com/auth/spreadsheets.readonly"
)

var (
	// ScopesMigration is what an account needs to be both source and destination
	ScopesMigration = []string{
		ScopeFull,
	}
	// ScopesSpreadsheetExport is requested by the spreadsheet export client
	ScopesSpreadsheetExport = []string{
		ScopeReadonly,
		ScopeSheetsReadonly,
	}
)

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Schema version
const SchemaVersion = "1.0"

// Migration defaults
const (
	DefaultTagFolderName    = "GDM-MigratedTag"
	DefaultPlaceholderTitle = "TemporaryTitle"
	// HiddenAppProperty persists the legacy "hidden" flag, which Drive v3 no longer models
	HiddenAppProperty = "gdmHidden"
)

// Google Workspace MIME types
const (
	MimeTypeDocument     = "application/vnd.google-apps.document"
	MimeTypeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypePresentation = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Office export MIME types. Drive v3 exports Workspace files to the Office
// Open XML formats; the pre-2007 binary formats are not offered.
const (
	MimeTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeTypePDF  = "application/pdf"
	// MimeTypeShortcut files link a document into an additional folder
	MimeTypeShortcut = "application/vnd.google-apps.shortcut"
)

// EscapeQueryValue escapes a literal for use inside a single-quoted Drive query string
func EscapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// IsWorkspaceMimeType reports whether mimeType is a native Google Workspace
// type, which has to be exported rather than downloaded.
func IsWorkspaceMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "application/vnd.google-apps.")
}
