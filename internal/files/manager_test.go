package files

import (
	"bytes"
	"net/http"
	"testing"

	testhelpers "github.com/dl-alexandre/gdm/internal/testing"
	"github.com/dl-alexandre/gdm/internal/testing/mocks"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

func newTestManager(t *testing.T, srv *mocks.DriveServer) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewManager(srv.Client(t)).WithFs(fs, "/tmp"), fs
}

func TestManager_Creation(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	manager := NewManager(srv.Client(t))

	if manager.shaper == nil {
		t.Error("Manager shaper not initialized")
	}
	if manager.Fs() == nil {
		t.Error("Manager fs not initialized")
	}
}

func TestConvertDriveFile(t *testing.T) {
	driveFile := &drive.File{
		Id:              "file123",
		Name:            "Budget",
		MimeType:        utils.MimeTypeSpreadsheet,
		Parents:         []string{"parent1", "parent2"},
		Starred:         true,
		WritersCanShare: true,
		OwnedByMe:       true,
		AppProperties:   map[string]string{utils.HiddenAppProperty: "true"},
	}

	converted := convertDriveFile(driveFile)

	if converted.ID != "file123" || converted.Name != "Budget" {
		t.Errorf("identity mismatch: %+v", converted)
	}
	if !converted.Starred || !converted.WritersCanShare || !converted.OwnedByMe {
		t.Errorf("flags not copied: %+v", converted)
	}
	if len(converted.Parents) != 2 {
		t.Errorf("Parents length = %d, want 2", len(converted.Parents))
	}
	if converted.AppProperties[utils.HiddenAppProperty] != "true" {
		t.Error("AppProperties not copied")
	}
}

func TestManager_Get(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	srv.AddFile(testhelpers.TestSpreadsheet("s1", "Budget"))
	manager, _ := newTestManager(t, srv)

	file, err := manager.Get(testhelpers.TestContext(), testhelpers.TestRequestContext(), "s1")
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, file.Name, "Budget")
	testhelpers.AssertEqual(t, file.Parents[0], srv.RootID)

	root, err := manager.Get(testhelpers.TestContext(), testhelpers.TestRequestContext(), "root")
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, root.ID, srv.RootID)

	_, err = manager.Get(testhelpers.TestContext(), testhelpers.TestRequestContext(), "missing")
	if !utils.HasCode(err, utils.ErrCodeFileNotFound) {
		t.Errorf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestManager_ListAll_Paginates(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	srv.PageSize = 2
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		srv.AddFile(testhelpers.TestSpreadsheet("", name))
	}
	srv.AddFolder("f1", "Finance")
	manager, _ := newTestManager(t, srv)

	query := "'me' in owners and trashed = false and mimeType != '" + utils.MimeTypeFolder + "'"
	files, err := manager.ListAll(testhelpers.TestContext(), testhelpers.TestRequestContext(), ListOptions{Query: query})
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, len(files), 5, "file count")

	lists := 0
	for _, c := range srv.Calls() {
		if c.Method == http.MethodGet && c.Path == "/drive/v3/files" {
			lists++
		}
	}
	testhelpers.AssertEqual(t, lists, 3, "list calls")
}

func TestManager_ExportToTemp(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	srv.AddFile(testhelpers.TestSpreadsheet("s1", "Budget"))
	srv.SetContent("s1", []byte("xls-bytes"))
	srv.AddFile(testhelpers.TestFile("p1", "Scan", utils.MimeTypePDF))
	srv.SetContent("p1", []byte("%PDF"))
	manager, fs := newTestManager(t, srv)
	ctx := testhelpers.TestContext()

	sheet, _ := manager.Get(ctx, testhelpers.TestRequestContext(), "s1")
	path, err := manager.ExportToTemp(ctx, testhelpers.TestRequestContext(), sheet, utils.MimeTypeXLSX, ".xlsx")
	testhelpers.AssertNoError(t, err)
	data, err := afero.ReadFile(fs, path)
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, string(data), "xls-bytes")

	pdf, _ := manager.Get(ctx, testhelpers.TestRequestContext(), "p1")
	var buf bytes.Buffer
	testhelpers.AssertNoError(t, manager.Export(ctx, testhelpers.TestRequestContext(), pdf, utils.MimeTypePDF, &buf))
	testhelpers.AssertEqual(t, buf.String(), "%PDF")

	exported, downloaded := false, false
	for _, c := range srv.Calls() {
		if c.Path == "/drive/v3/files/s1/export" {
			exported = true
		}
		if c.Path == "/drive/v3/files/p1" && bytes.Contains([]byte(c.Query), []byte("alt=media")) {
			downloaded = true
		}
	}
	if !exported || !downloaded {
		t.Errorf("exported=%v downloaded=%v, want both", exported, downloaded)
	}

	testhelpers.AssertNoError(t, manager.RemoveTemp(path))
	if exists, _ := afero.Exists(fs, path); exists {
		t.Error("temporary file not removed")
	}
}

func TestManager_ExportToTemp_FailureLeavesNoFile(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	srv.AddFile(testhelpers.TestSpreadsheet("s1", "Budget"))
	srv.FailFunc = func(r *http.Request) *googleapi.Error {
		if r.URL.Path == "/drive/v3/files/s1/export" {
			return &googleapi.Error{Code: 403, Message: "export denied", Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}
		}
		return nil
	}
	manager, fs := newTestManager(t, srv)
	ctx := testhelpers.TestContext()

	sheet, _ := manager.Get(ctx, testhelpers.TestRequestContext(), "s1")
	_, err := manager.ExportToTemp(ctx, testhelpers.TestRequestContext(), sheet, utils.MimeTypeXLSX, ".xlsx")
	testhelpers.AssertError(t, err)

	entries, _ := afero.ReadDir(fs, "/tmp")
	testhelpers.AssertEqual(t, len(entries), 0, "temp files left")
}

func TestManager_ExportToTemp_UnofferedFormat(t *testing.T) {
	srv := mocks.NewDriveServer(t, "source@example.com")
	srv.AddFile(testhelpers.TestSpreadsheet("s1", "Budget"))
	manager, fs := newTestManager(t, srv)
	ctx := testhelpers.TestContext()

	sheet, _ := manager.Get(ctx, testhelpers.TestRequestContext(), "s1")
	_, err := manager.ExportToTemp(ctx, testhelpers.TestRequestContext(), sheet, "application/vnd.ms-excel", ".xls")
	if !utils.HasCode(err, utils.ErrCodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT for a format Drive does not export", err)
	}

	entries, _ := afero.ReadDir(fs, "/tmp")
	testhelpers.AssertEqual(t, len(entries), 0, "temp files left")
}

func TestManager_UploadConverts(t *testing.T) {
	srv := mocks.NewDriveServer(t, "dest@example.com")
	manager, fs := newTestManager(t, srv)
	testhelpers.AssertNoError(t, afero.WriteFile(fs, "/tmp/export.xlsx", []byte("xls-bytes"), 0o600))

	file, err := manager.Upload(testhelpers.TestContext(), testhelpers.TestRequestContext(), "/tmp/export.xlsx", UploadOptions{
		ParentID:  "root",
		Name:      utils.DefaultPlaceholderTitle,
		MimeType:  utils.MimeTypeXLSX,
		ConvertTo: utils.MimeTypeSpreadsheet,
	})
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, file.Name, utils.DefaultPlaceholderTitle)
	testhelpers.AssertEqual(t, file.MimeType, utils.MimeTypeSpreadsheet)
	testhelpers.AssertEqual(t, file.Parents[0], srv.RootID)
	testhelpers.AssertEqual(t, string(srv.Content(file.ID)), "xls-bytes")
}

func TestManager_UploadMissingFile(t *testing.T) {
	srv := mocks.NewDriveServer(t, "dest@example.com")
	manager, _ := newTestManager(t, srv)

	_, err := manager.Upload(testhelpers.TestContext(), testhelpers.TestRequestContext(), "/tmp/nope.xlsx", UploadOptions{})
	if !utils.HasCode(err, utils.ErrCodeInvalidArgument) {
		t.Errorf("err = %v, want INVALID_ARGUMENT", err)
	}
	testhelpers.AssertEqual(t, srv.MutatingCalls(), 0, "mutating calls")
}

func TestManager_UpdateSendsFalseFlags(t *testing.T) {
	srv := mocks.NewDriveServer(t, "dest@example.com")
	f := testhelpers.TestSpreadsheet("s1", utils.DefaultPlaceholderTitle)
	f.Starred = true
	f.WritersCanShare = true
	srv.AddFile(f)
	manager, _ := newTestManager(t, srv)

	updated, err := manager.Update(testhelpers.TestContext(), testhelpers.TestRequestContext(), "s1", MetadataUpdate{
		Name:   "Budget",
		Hidden: true,
	})
	testhelpers.AssertNoError(t, err)
	testhelpers.AssertEqual(t, updated.Name, "Budget")

	stored := srv.File("s1")
	if stored.Starred || stored.WritersCanShare {
		t.Errorf("false flags not persisted: starred=%v writersCanShare=%v", stored.Starred, stored.WritersCanShare)
	}
	testhelpers.AssertEqual(t, stored.AppProperties[utils.HiddenAppProperty], "true")
}
