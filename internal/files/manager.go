package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// FileFields is the metadata requested for every file
const FileFields = "id,name,mimeType,parents,starred,writersCanShare,ownedByMe,appProperties,trashed"

// Manager handles file operations
type Manager struct {
	client  *api.Client
	shaper  *api.RequestShaper
	fs      afero.Fs
	tempDir string
}

// NewManager creates a new file manager backed by the OS filesystem
func NewManager(client *api.Client) *Manager {
	return &Manager{
		client: client,
		shaper: api.NewRequestShaper(client),
		fs:     afero.NewOsFs(),
	}
}

// WithFs sets the filesystem and directory used for temporary export files
func (m *Manager) WithFs(fs afero.Fs, tempDir string) *Manager {
	m.fs = fs
	m.tempDir = tempDir
	return m
}

// Fs returns the filesystem used for local files
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// UploadOptions configures file upload
type UploadOptions struct {
	ParentID string
	Name     string
	// MimeType is the type of the uploaded bytes
	MimeType string
	// ConvertTo, when set, asks Drive to convert the upload to this Workspace type
	ConvertTo string
}

// ListOptions configures file listing
type ListOptions struct {
	Query     string
	PageSize  int
	PageToken string
	Fields    string
}

// MetadataUpdate is the user-visible metadata copied between accounts
type MetadataUpdate struct {
	Name            string
	Starred         bool
	WritersCanShare bool
	Hidden          bool
}

// Upload uploads a local file to Drive
func (m *Manager) Upload(ctx context.Context, reqCtx *types.RequestContext, localPath string, opts UploadOptions) (*types.DriveFile, error) {
	info, err := m.fs.Stat(localPath)
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to open file: %s", err)).
			WithContext("path", localPath).
			Err()
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(localPath)
	}

	metadata := &drive.File{Name: name}
	if opts.ParentID != "" {
		metadata.Parents = []string{opts.ParentID}
		reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, opts.ParentID)
	}
	if opts.ConvertTo != "" {
		metadata.MimeType = opts.ConvertTo
	}

	var media []googleapi.MediaOption
	if opts.MimeType != "" {
		media = append(media, googleapi.ContentType(opts.MimeType))
	}

	// Each attempt reopens the file so a retry uploads the full content.
	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		file, err := m.fs.Open(localPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		call := m.client.Service().Files.Create(metadata).Media(file, media...)
		call = m.shaper.ShapeFilesCreate(call, reqCtx)
		return call.Fields(FileFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	m.client.Logger().Debug("Uploaded file",
		logging.F("fileId", result.Id),
		logging.F("size", humanize.IBytes(uint64(info.Size()))),
	)
	return convertDriveFile(result), nil
}

// Get retrieves file metadata. fileID may be the "root" alias.
func (m *Manager) Get(ctx context.Context, reqCtx *types.RequestContext, fileID string) (*types.DriveFile, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileID)

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Get(fileID)
		call = m.shaper.ShapeFilesGet(call, reqCtx)
		return call.Fields(FileFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

// List lists one page of files matching opts.Query
func (m *Manager) List(ctx context.Context, reqCtx *types.RequestContext, opts ListOptions) (*types.FileListResult, error) {
	fields := opts.Fields
	if fields == "" {
		fields = FileFields
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.FileList, error) {
		call := m.client.Service().Files.List()
		call = m.shaper.ShapeFilesList(call, reqCtx)
		if opts.Query != "" {
			call = call.Q(opts.Query)
		}
		if opts.PageSize > 0 {
			call = call.PageSize(int64(opts.PageSize))
		}
		if opts.PageToken != "" {
			call = call.PageToken(opts.PageToken)
		}
		call = call.Fields(googleapi.Field("nextPageToken,incompleteSearch,files(" + fields + ")"))
		return call.Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	files := make([]*types.DriveFile, len(result.Files))
	for i, f := range result.Files {
		files[i] = convertDriveFile(f)
	}

	return &types.FileListResult{
		Files:            files,
		NextPageToken:    result.NextPageToken,
		IncompleteSearch: result.IncompleteSearch,
	}, nil
}

// ListAll lists all files by following pagination
func (m *Manager) ListAll(ctx context.Context, reqCtx *types.RequestContext, opts ListOptions) ([]*types.DriveFile, error) {
	var allFiles []*types.DriveFile
	pageToken := opts.PageToken

	for {
		opts.PageToken = pageToken
		result, err := m.List(ctx, reqCtx, opts)
		if err != nil {
			return allFiles, err
		}

		allFiles = append(allFiles, result.Files...)

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	return allFiles, nil
}

// Export writes the content of file to w. Workspace documents are converted
// to exportMime; other files are downloaded as stored.
func (m *Manager) Export(ctx context.Context, reqCtx *types.RequestContext, file *types.DriveFile, exportMime string, w io.Writer) error {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, file.ID)

	data, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) ([]byte, error) {
		var resp *http.Response
		var err error
		if utils.IsWorkspaceMimeType(file.MimeType) {
			call := m.client.Service().Files.Export(file.ID, exportMime)
			call = m.shaper.ShapeFilesExport(call, reqCtx)
			resp, err = call.Context(ctx).Download()
		} else {
			call := m.client.Service().Files.Get(file.ID)
			call = m.shaper.ShapeFilesGet(call, reqCtx)
			resp, err = call.Context(ctx).Download()
		}
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// ExportToTemp exports file into a new temporary file and returns its path.
// The caller owns the file and removes it with RemoveTemp.
func (m *Manager) ExportToTemp(ctx context.Context, reqCtx *types.RequestContext, file *types.DriveFile, exportMime, extension string) (string, error) {
	tmp, err := afero.TempFile(m.fs, m.tempDir, "gdm-export-*"+extension)
	if err != nil {
		return "", utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to create temporary file: %s", err)).Err()
	}
	path := tmp.Name()

	if err := m.Export(ctx, reqCtx, file, exportMime, tmp); err != nil {
		tmp.Close()
		_ = m.fs.Remove(path)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = m.fs.Remove(path)
		return "", err
	}

	if info, err := m.fs.Stat(path); err == nil {
		m.client.Logger().Debug("Exported to temporary file",
			logging.F("fileId", file.ID),
			logging.F("path", path),
			logging.F("size", humanize.IBytes(uint64(info.Size()))),
		)
	}
	return path, nil
}

// RemoveTemp deletes a temporary file created by ExportToTemp
func (m *Manager) RemoveTemp(path string) error {
	return m.fs.Remove(path)
}

// Update writes metadata onto a file. False booleans are sent explicitly.
func (m *Manager) Update(ctx context.Context, reqCtx *types.RequestContext, fileID string, update MetadataUpdate) (*types.DriveFile, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileID)

	metadata := &drive.File{
		Name:            update.Name,
		Starred:         update.Starred,
		WritersCanShare: update.WritersCanShare,
		AppProperties: map[string]string{
			utils.HiddenAppProperty: fmt.Sprintf("%t", update.Hidden),
		},
		ForceSendFields: []string{"Starred", "WritersCanShare"},
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Update(fileID, metadata)
		call = m.shaper.ShapeFilesUpdate(call, reqCtx)
		return call.Fields(FileFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

func convertDriveFile(f *drive.File) *types.DriveFile {
	return &types.DriveFile{
		ID:              f.Id,
		Name:            f.Name,
		MimeType:        f.MimeType,
		Parents:         f.Parents,
		Starred:         f.Starred,
		WritersCanShare: f.WritersCanShare,
		OwnedByMe:       f.OwnedByMe,
		AppProperties:   f.AppProperties,
		Trashed:         f.Trashed,
	}
}
