package types

// RequestType classifies an API call for logging and error context
type RequestType string

const (
	RequestTypeListOrSearch     RequestType = "list_or_search"
	RequestTypeGetByID          RequestType = "get_by_id"
	RequestTypeMutation         RequestType = "mutation"
	RequestTypeUpload           RequestType = "upload"
	RequestTypeDownloadOrExport RequestType = "download_or_export"
	RequestTypePermissionOp     RequestType = "permission_op"
	RequestTypeAbout            RequestType = "about"
)

// RequestContext carries per-call metadata through the API layer
type RequestContext struct {
	Profile           string      `json:"profile"`
	DriveID           string      `json:"driveId,omitempty"`
	InvolvedFileIDs   []string    `json:"involvedFileIds"`
	InvolvedParentIDs []string    `json:"involvedParentIds"`
	RequestType       RequestType `json:"requestType"`
	TraceID           string      `json:"traceId"`
}
