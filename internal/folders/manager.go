package folders

import (
	"context"
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const (
	folderFields   = "id,name,mimeType,parents,ownedByMe,trashed"
	shortcutFields = folderFields + ",shortcutDetails(targetId)"
)

// Manager handles folder operations
type Manager struct {
	client *api.Client
	shaper *api.RequestShaper
}

// NewManager creates a new folder manager
func NewManager(client *api.Client) *Manager {
	return &Manager{
		client: client,
		shaper: api.NewRequestShaper(client),
	}
}

// Create creates a new folder. An empty parentID creates it in the account root.
func (m *Manager) Create(ctx context.Context, reqCtx *types.RequestContext, name string, parentID string) (*types.DriveFile, error) {
	metadata := &drive.File{
		Name:     name,
		MimeType: utils.MimeTypeFolder,
	}
	if parentID != "" {
		metadata.Parents = []string{parentID}
		reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, parentID)
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Create(metadata)
		call = m.shaper.ShapeFilesCreate(call, reqCtx)
		return call.Fields(folderFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

// FindByName returns the account's own non-trashed folders whose title is
// exactly name. The server-side match is refined with a case-sensitive comparison.
func (m *Manager) FindByName(ctx context.Context, reqCtx *types.RequestContext, name string) ([]*types.DriveFile, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and 'me' in owners and trashed = false",
		utils.EscapeQueryValue(name), utils.MimeTypeFolder)

	var found []*types.DriveFile
	pageToken := ""
	for {
		result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.FileList, error) {
			call := m.client.Service().Files.List().Q(query)
			call = m.shaper.ShapeFilesList(call, reqCtx)
			call = call.Fields(googleapi.Field("nextPageToken,files(" + folderFields + ")"))
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, err
		}

		for _, f := range result.Files {
			if f.Name == name {
				found = append(found, convertDriveFile(f))
			}
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}
	return found, nil
}

// Get retrieves folder metadata
func (m *Manager) Get(ctx context.Context, reqCtx *types.RequestContext, folderID string) (*types.DriveFile, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, folderID)

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Get(folderID)
		call = m.shaper.ShapeFilesGet(call, reqCtx)
		return call.Fields(folderFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

// Move puts fileID into folderID, detaching it from fromParents. Drive v3
// keeps a single parent per file, so every current parent has to be listed.
func (m *Manager) Move(ctx context.Context, reqCtx *types.RequestContext, fileID string, folderID string, fromParents []string) (*types.DriveFile, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileID)
	reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, folderID)

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Update(fileID, &drive.File{})
		call = m.shaper.ShapeFilesUpdate(call, reqCtx)
		call = call.AddParents(folderID)
		if len(fromParents) > 0 {
			call = call.RemoveParents(strings.Join(fromParents, ","))
		}
		return call.Fields(folderFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

// CreateShortcut creates a shortcut named name inside folderID pointing at targetID
func (m *Manager) CreateShortcut(ctx context.Context, reqCtx *types.RequestContext, targetID string, name string, folderID string) (*types.DriveFile, error) {
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, targetID)
	reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, folderID)

	metadata := &drive.File{
		Name:            name,
		MimeType:        utils.MimeTypeShortcut,
		Parents:         []string{folderID},
		ShortcutDetails: &drive.FileShortcutDetails{TargetId: targetID},
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.File, error) {
		call := m.client.Service().Files.Create(metadata)
		call = m.shaper.ShapeFilesCreate(call, reqCtx)
		return call.Fields(shortcutFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	return convertDriveFile(result), nil
}

// ListShortcuts returns every non-trashed shortcut the account owns
func (m *Manager) ListShortcuts(ctx context.Context, reqCtx *types.RequestContext) ([]*types.DriveFile, error) {
	query := fmt.Sprintf("mimeType = '%s' and 'me' in owners and trashed = false", utils.MimeTypeShortcut)

	var found []*types.DriveFile
	pageToken := ""
	for {
		result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func(ctx context.Context) (*drive.FileList, error) {
			call := m.client.Service().Files.List().Q(query)
			call = m.shaper.ShapeFilesList(call, reqCtx)
			call = call.Fields(googleapi.Field("nextPageToken,files(" + shortcutFields + ")"))
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Context(ctx).Do()
		})
		if err != nil {
			return nil, err
		}

		for _, f := range result.Files {
			found = append(found, convertDriveFile(f))
		}
		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}
	return found, nil
}

func convertDriveFile(f *drive.File) *types.DriveFile {
	file := &types.DriveFile{
		ID:        f.Id,
		Name:      f.Name,
		MimeType:  f.MimeType,
		Parents:   f.Parents,
		OwnedByMe: f.OwnedByMe,
		Trashed:   f.Trashed,
	}
	if f.ShortcutDetails != nil {
		file.ShortcutTargetID = f.ShortcutDetails.TargetId
	}
	return file
}
