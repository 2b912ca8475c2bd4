package api

import (
	"github.com/dl-alexandre/gdm/internal/types"
	"google.golang.org/api/drive/v3"
)

// TraceHeader carries the request trace ID to the server, so API-side logs can be matched to ours
const TraceHeader = "X-Gdm-Trace-Id"

// RequestShaper applies the parameters every Drive call of a given kind needs
type RequestShaper struct {
	client *Client
}

// NewRequestShaper creates a shaper for client
func NewRequestShaper(client *Client) *RequestShaper {
	return &RequestShaper{client: client}
}

func (s *RequestShaper) ShapeFilesList(call *drive.FilesListCall, reqCtx *types.RequestContext) *drive.FilesListCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	call = call.SupportsAllDrives(true)
	if reqCtx.DriveID != "" {
		return call.Corpora("drive").DriveId(reqCtx.DriveID).IncludeItemsFromAllDrives(true)
	}
	return call
}

func (s *RequestShaper) ShapeFilesGet(call *drive.FilesGetCall, reqCtx *types.RequestContext) *drive.FilesGetCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call.SupportsAllDrives(true)
}

func (s *RequestShaper) ShapeFilesCreate(call *drive.FilesCreateCall, reqCtx *types.RequestContext) *drive.FilesCreateCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call.SupportsAllDrives(true)
}

func (s *RequestShaper) ShapeFilesUpdate(call *drive.FilesUpdateCall, reqCtx *types.RequestContext) *drive.FilesUpdateCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call.SupportsAllDrives(true)
}

func (s *RequestShaper) ShapeFilesExport(call *drive.FilesExportCall, reqCtx *types.RequestContext) *drive.FilesExportCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call
}

func (s *RequestShaper) ShapePermissionsList(call *drive.PermissionsListCall, reqCtx *types.RequestContext) *drive.PermissionsListCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call.SupportsAllDrives(true)
}

func (s *RequestShaper) ShapePermissionsCreate(call *drive.PermissionsCreateCall, reqCtx *types.RequestContext) *drive.PermissionsCreateCall {
	call.Header().Set(TraceHeader, reqCtx.TraceID)
	return call.SupportsAllDrives(true)
}
