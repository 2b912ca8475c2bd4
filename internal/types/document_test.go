package types

import "testing"

func TestDocumentTypeFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want DocumentType
	}{
		{"application/vnd.google-apps.spreadsheet", DocumentTypeSpreadsheet},
		{"application/vnd.google-apps.document", DocumentTypeDocument},
		{"application/vnd.google-apps.presentation", DocumentTypePresentation},
		{"application/vnd.google-apps.folder", DocumentTypeFolder},
		{"application/pdf", DocumentTypePDF},
		{"application/vnd.google-apps.drawing", DocumentTypeUnsupported},
		{"text/plain", DocumentTypeUnsupported},
		{"", DocumentTypeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := DocumentTypeFromMime(tt.mime); got != tt.want {
				t.Errorf("DocumentTypeFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
			}
		})
	}
}

func TestDocument_InFolder(t *testing.T) {
	doc := &Document{
		Parents: []FolderRef{
			{ID: "f1", Title: "Finance"},
			{ID: "f2", Title: "GDM-MigratedTag"},
			{ID: "f3"},
		},
	}

	if !doc.InFolder("GDM-MigratedTag") {
		t.Error("expected document to be in tag folder")
	}
	if doc.InFolder("gdm-migratedtag") {
		t.Error("folder title comparison must be case-sensitive")
	}
	if doc.InFolder("") {
		t.Error("unresolved parents must not match an empty title")
	}
}

func TestDocument_InFolderEmptyTitleUnresolved(t *testing.T) {
	doc := &Document{Parents: []FolderRef{{ID: "f3"}}}
	if doc.InFolder("Finance") {
		t.Error("unresolved parent matched a title")
	}
}

func TestDocument_ParentTitles(t *testing.T) {
	doc := &Document{
		Parents: []FolderRef{
			{ID: "f1", Title: "Finance"},
			{ID: "f2"},
			{ID: "f3", Title: "2024"},
		},
	}

	got := doc.ParentTitles()
	if len(got) != 2 || got[0] != "Finance" || got[1] != "2024" {
		t.Errorf("ParentTitles() = %v, want [Finance 2024]", got)
	}
}

func TestExportFormatFor(t *testing.T) {
	tests := []struct {
		docType DocumentType
		want    ExportFormat
		ok      bool
		ext     string
	}{
		{DocumentTypeSpreadsheet, ExportFormatXLSX, true, ".xlsx"},
		{DocumentTypeDocument, ExportFormatDOCX, true, ".docx"},
		{DocumentTypePresentation, ExportFormatPPTX, true, ".pptx"},
		{DocumentTypePDF, ExportFormatPDF, true, ".pdf"},
		{DocumentTypeFolder, "", false, ""},
		{DocumentTypeUnsupported, "", false, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			got, ok := ExportFormatFor(tt.docType)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ExportFormatFor(%q) = (%q, %v), want (%q, %v)", tt.docType, got, ok, tt.want, tt.ok)
			}
			if ok && got.Extension() != tt.ext {
				t.Errorf("Extension() = %q, want %q", got.Extension(), tt.ext)
			}
		})
	}
}
