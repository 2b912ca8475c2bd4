package migrate

import (
	"context"

	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
)

// Remote is one account's document service as the migration uses it.
// *remote.Service implements it.
type Remote interface {
	Account() string
	ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error)
	FetchDocument(ctx context.Context, id string) (*types.Document, error)
	FetchSharingEntries(ctx context.Context, doc *types.Document) ([]sharing.Entry, error)
	CreateFolder(ctx context.Context, title string) (*types.Document, error)
	FindFolderByExactTitle(ctx context.Context, title string) (*types.Document, bool, error)
	FindOrCreateFolder(ctx context.Context, title string) (*types.Document, error)
	UploadFile(ctx context.Context, localPath, title, parentID string) (*types.Document, error)
	AddDocumentToFolder(ctx context.Context, doc, folder *types.Document) error
	LinkDocumentToFolder(ctx context.Context, doc, folder *types.Document) error
	GrantSharingEntry(ctx context.Context, doc *types.Document, entry sharing.Entry) error
	UpdateMetadata(ctx context.Context, doc *types.Document) error
	DownloadExport(ctx context.Context, doc *types.Document, format types.ExportFormat) (string, error)
	FindDocumentByExactTitle(ctx context.Context, title string) (*types.Document, bool, error)
}
