package types

// DriveFile is the subset of Drive file metadata the migration reads and writes
type DriveFile struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	MimeType        string            `json:"mimeType"`
	Parents         []string          `json:"parents,omitempty"`
	Starred         bool              `json:"starred"`
	WritersCanShare bool              `json:"writersCanShare"`
	OwnedByMe       bool              `json:"ownedByMe"`
	AppProperties   map[string]string `json:"appProperties,omitempty"`
	Trashed         bool              `json:"trashed,omitempty"`
	// ShortcutTargetID is set on shortcuts only
	ShortcutTargetID string `json:"shortcutTargetId,omitempty"`
}

// FileListResult represents paginated file list response
type FileListResult struct {
	Files            []*DriveFile `json:"files"`
	NextPageToken    string       `json:"nextPageToken,omitempty"`
	IncompleteSearch bool         `json:"incompleteSearch,omitempty"`
}

// Permission represents a Drive permission
type Permission struct {
	ID           string `json:"id"`
	Type         string `json:"type"` // user, group, domain, anyone
	Role         string `json:"role"` // reader, commenter, writer, organizer, owner
	EmailAddress string `json:"emailAddress,omitempty"`
	Domain       string `json:"domain,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
}
