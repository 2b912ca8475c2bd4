// Package remote is the per-account facade the migration talks to. It turns
// Drive files and permissions into documents and sharing entries.
package remote

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/files"
	"github.com/dl-alexandre/gdm/internal/folders"
	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/permissions"
	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
	"google.golang.org/api/drive/v3"
)

// notContainers excludes folders and shortcuts from a file query
var notContainers = fmt.Sprintf("mimeType != '%s' and mimeType != '%s'", utils.MimeTypeFolder, utils.MimeTypeShortcut)

// Service is one account's view of Drive
type Service struct {
	account     string
	client      *api.Client
	files       *files.Manager
	folders     *folders.Manager
	permissions *permissions.Manager
	exporters   map[types.DocumentType]*files.Manager
	fs          afero.Fs
	tempDir     string
	logger      logging.Logger

	mu           sync.Mutex
	rootID       string
	folderTitles map[string]string
	folderCache  map[string]*types.Document
	// shortcuts maps a target ID to the folders holding a shortcut to it; nil until loaded
	shortcuts map[string][]string
}

// Option configures a Service
type Option func(*Service)

// WithFs sets the filesystem and directory used for exported files
func WithFs(fs afero.Fs, tempDir string) Option {
	return func(s *Service) {
		s.fs = fs
		s.tempDir = tempDir
	}
}

// WithExportClient routes exports of documents of type t through client
func WithExportClient(t types.DocumentType, client *api.Client) Option {
	return func(s *Service) {
		s.exporters[t] = files.NewManager(client)
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates the facade for account on top of client
func New(client *api.Client, account string, opts ...Option) *Service {
	s := &Service{
		account:      account,
		client:       client,
		exporters:    make(map[types.DocumentType]*files.Manager),
		fs:           afero.NewOsFs(),
		logger:       client.Logger(),
		folderTitles: make(map[string]string),
		folderCache:  make(map[string]*types.Document),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.files = files.NewManager(client).WithFs(s.fs, s.tempDir)
	s.folders = folders.NewManager(client)
	s.permissions = permissions.NewManager(client)
	for t, m := range s.exporters {
		s.exporters[t] = m.WithFs(s.fs, s.tempDir)
	}
	return s
}

// Account returns the account identifier the service acts as
func (s *Service) Account() string {
	return s.account
}

// VerifyAccount checks that the credentials really belong to the account
func (s *Service) VerifyAccount(ctx context.Context) error {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeAbout)
	about, err := api.ExecuteWithRetry(ctx, s.client, reqCtx, func(ctx context.Context) (*drive.About, error) {
		return s.client.Service().About.Get().Fields("user(emailAddress,displayName)").Context(ctx).Do()
	})
	if err != nil {
		return err
	}
	if about.User == nil || !strings.EqualFold(about.User.EmailAddress, s.account) {
		actual := ""
		if about.User != nil {
			actual = about.User.EmailAddress
		}
		return utils.NewCLIError(utils.ErrCodeAuthInvalid,
			fmt.Sprintf("Credentials belong to %q, not %q", actual, s.account)).
			WithContext("account", s.account).
			Err()
	}
	return nil
}

// ListDocuments lists the non-trashed documents selected by filter. Folders
// and shortcuts are not documents. Parent titles are not resolved; use
// FetchDocument for that.
func (s *Service) ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error) {
	var scope string
	switch filter {
	case types.FilterOwned:
		scope = "'me' in owners"
	case types.FilterShared:
		scope = "sharedWithMe"
	default:
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Unknown document filter %q", filter)).Err()
	}
	query := fmt.Sprintf("%s and trashed = false and %s", scope, notContainers)

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeListOrSearch)
	found, err := s.files.ListAll(ctx, reqCtx, files.ListOptions{Query: query, PageSize: 100})
	if err != nil {
		return nil, err
	}

	docs := make([]*types.Document, 0, len(found))
	for _, f := range found {
		docs = append(docs, toDocument(f))
	}
	s.logger.Debug("Listed documents",
		logging.F("account", s.account),
		logging.F("filter", filter),
		logging.F("count", len(docs)),
	)
	return docs, nil
}

// FetchDocument reads the current metadata of a document and resolves its
// parent titles. Folders holding one of the account's shortcuts to the
// document count as parents. The account root and parents the account cannot
// see are left out.
func (s *Service) FetchDocument(ctx context.Context, id string) (*types.Document, error) {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeGetByID)
	f, err := s.files.Get(ctx, reqCtx, id)
	if err != nil {
		return nil, err
	}

	rootID, err := s.root(ctx)
	if err != nil {
		return nil, err
	}

	linked, err := s.shortcutFolders(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := toDocument(f)
	doc.Parents = doc.Parents[:0]
	seen := map[string]bool{rootID: true}
	for _, parentID := range append(append([]string{}, f.Parents...), linked...) {
		if seen[parentID] {
			continue
		}
		seen[parentID] = true
		title, ok, err := s.folderTitle(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		doc.Parents = append(doc.Parents, types.FolderRef{ID: parentID, Title: title})
	}
	return doc, nil
}

func (s *Service) root(ctx context.Context) (string, error) {
	s.mu.Lock()
	rootID := s.rootID
	s.mu.Unlock()
	if rootID != "" {
		return rootID, nil
	}

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeGetByID)
	root, err := s.files.Get(ctx, reqCtx, "root")
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.rootID = root.ID
	s.mu.Unlock()
	return root.ID, nil
}

func (s *Service) folderTitle(ctx context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	title, ok := s.folderTitles[id]
	s.mu.Unlock()
	if ok {
		return title, true, nil
	}

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeGetByID)
	folder, err := s.folders.Get(ctx, reqCtx, id)
	if err != nil {
		if utils.HasCode(err, utils.ErrCodeFileNotFound) {
			s.logger.Debug("Skipping parent not visible to account",
				logging.F("account", s.account),
				logging.F("parentId", id),
			)
			return "", false, nil
		}
		return "", false, err
	}

	s.rememberFolder(folder.ID, folder.Name)
	return folder.Name, true, nil
}

// shortcutFolders returns the folders holding the account's shortcuts to
// targetID. The account's shortcuts are listed once per service.
func (s *Service) shortcutFolders(ctx context.Context, targetID string) ([]string, error) {
	s.mu.Lock()
	loaded := s.shortcuts != nil
	s.mu.Unlock()

	if !loaded {
		reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeListOrSearch)
		found, err := s.folders.ListShortcuts(ctx, reqCtx)
		if err != nil {
			return nil, err
		}
		index := make(map[string][]string)
		for _, sc := range found {
			if sc.ShortcutTargetID != "" {
				index[sc.ShortcutTargetID] = append(index[sc.ShortcutTargetID], sc.Parents...)
			}
		}
		s.mu.Lock()
		if s.shortcuts == nil {
			s.shortcuts = index
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shortcuts[targetID]...), nil
}

func (s *Service) rememberShortcut(targetID, folderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shortcuts != nil {
		s.shortcuts[targetID] = append(s.shortcuts[targetID], folderID)
	}
}

func (s *Service) rememberFolder(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderTitles[id] = title
}

// FetchSharingEntries returns the sharing entries of doc in the order Drive
// reports them. Permissions that name no one but are not public are dropped.
func (s *Service) FetchSharingEntries(ctx context.Context, doc *types.Document) ([]sharing.Entry, error) {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypePermissionOp)
	perms, err := s.permissions.List(ctx, reqCtx, doc.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]sharing.Entry, 0, len(perms))
	for _, p := range perms {
		entry, ok := toEntry(p)
		if !ok {
			s.logger.Warn("Skipping sharing entry without an identifier",
				logging.F("account", s.account),
				logging.F("documentId", doc.ID),
				logging.F("permissionId", p.ID),
				logging.F("type", p.Type),
				logging.F("role", p.Role),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateFolder creates a folder in the account root
func (s *Service) CreateFolder(ctx context.Context, title string) (*types.Document, error) {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeMutation)
	f, err := s.folders.Create(ctx, reqCtx, title, "")
	if err != nil {
		return nil, err
	}
	s.rememberFolder(f.ID, f.Name)

	s.logger.Info("Created folder",
		logging.F("account", s.account),
		logging.F("title", title),
		logging.F("folderId", f.ID),
	)
	return toDocument(f), nil
}

// FindFolderByExactTitle returns the account's folder titled exactly title.
// No match and more than one match both report not found.
func (s *Service) FindFolderByExactTitle(ctx context.Context, title string) (*types.Document, bool, error) {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeListOrSearch)
	found, err := s.folders.FindByName(ctx, reqCtx, title)
	if err != nil {
		return nil, false, err
	}

	switch len(found) {
	case 0:
		return nil, false, nil
	case 1:
		s.rememberFolder(found[0].ID, found[0].Name)
		return toDocument(found[0]), true, nil
	default:
		s.logger.Warn("Ambiguous folder title, treating as not found",
			logging.F("account", s.account),
			logging.F("title", title),
			logging.F("matches", len(found)),
		)
		return nil, false, nil
	}
}

// FindOrCreateFolder returns the folder titled title, creating it when the
// lookup finds none or is ambiguous. Results are cached for the service's lifetime.
func (s *Service) FindOrCreateFolder(ctx context.Context, title string) (*types.Document, error) {
	s.mu.Lock()
	cached, ok := s.folderCache[title]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	folder, found, err := s.FindFolderByExactTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if !found {
		folder, err = s.CreateFolder(ctx, title)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.folderCache[title] = folder
	s.mu.Unlock()
	return folder, nil
}

// UploadFile uploads an exported file, converting it back to its Workspace
// type. An empty parentID uploads to the account root. The local file is
// removed once the upload succeeded.
func (s *Service) UploadFile(ctx context.Context, localPath, title, parentID string) (*types.Document, error) {
	format, ok := formatFromPath(localPath)
	if !ok {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Cannot tell the format of %s", filepath.Base(localPath))).Err()
	}
	mimes := exportMimes[format]

	if parentID == "" {
		parentID = "root"
	}
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeUpload)
	f, err := s.files.Upload(ctx, reqCtx, localPath, files.UploadOptions{
		ParentID:  parentID,
		Name:      title,
		MimeType:  mimes.export,
		ConvertTo: mimes.native,
	})
	if err != nil {
		return nil, err
	}

	if err := s.files.RemoveTemp(localPath); err != nil {
		s.logger.Warn("Failed to remove temporary file",
			logging.F("path", localPath),
			logging.F("error", err),
		)
	}
	return toDocument(f), nil
}

// AddDocumentToFolder files doc into folder. Drive v3 keeps one parent per
// file: a document the account owns that sits only in the account root is
// moved into folder, any other document gets a shortcut there.
func (s *Service) AddDocumentToFolder(ctx context.Context, doc, folder *types.Document) error {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeGetByID)
	f, err := s.files.Get(ctx, reqCtx, doc.ID)
	if err != nil {
		return err
	}
	if containsID(f.Parents, folder.ID) {
		return nil
	}

	rootID, err := s.root(ctx)
	if err != nil {
		return err
	}
	if !f.OwnedByMe || !onlyIn(f.Parents, rootID) {
		return s.LinkDocumentToFolder(ctx, doc, folder)
	}

	reqCtx = api.NewRequestContextFrom(ctx, s.account, types.RequestTypeMutation)
	if _, err := s.folders.Move(ctx, reqCtx, doc.ID, folder.ID, f.Parents); err != nil {
		return err
	}
	s.logger.Debug("Moved document into folder",
		logging.F("account", s.account),
		logging.F("documentId", doc.ID),
		logging.F("folder", folder.Title),
	)
	return nil
}

// LinkDocumentToFolder puts a shortcut to doc in folder, leaving doc where it
// is. Nothing is created when the account already has such a shortcut.
func (s *Service) LinkDocumentToFolder(ctx context.Context, doc, folder *types.Document) error {
	linked, err := s.shortcutFolders(ctx, doc.ID)
	if err != nil {
		return err
	}
	if containsID(linked, folder.ID) {
		return nil
	}

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeMutation)
	sc, err := s.folders.CreateShortcut(ctx, reqCtx, doc.ID, doc.Title, folder.ID)
	if err != nil {
		return err
	}
	s.rememberShortcut(doc.ID, folder.ID)

	s.logger.Debug("Linked document into folder",
		logging.F("account", s.account),
		logging.F("documentId", doc.ID),
		logging.F("folder", folder.Title),
		logging.F("shortcutId", sc.ID),
	)
	return nil
}

func onlyIn(parents []string, rootID string) bool {
	for _, p := range parents {
		if p != rootID {
			return false
		}
	}
	return true
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// GrantSharingEntry gives entry's scope entry's role on doc, without notifying anyone
func (s *Service) GrantSharingEntry(ctx context.Context, doc *types.Document, entry sharing.Entry) error {
	opts := permissions.CreateOptions{
		Type: string(entry.ScopeType),
		Role: string(entry.Role),
	}
	switch entry.ScopeType {
	case sharing.ScopeUser, sharing.ScopeGroup:
		opts.EmailAddress = entry.ScopeID
	case sharing.ScopeDomain:
		opts.Domain = entry.ScopeID
	}

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypePermissionOp)
	_, err := s.permissions.Create(ctx, reqCtx, doc.ID, opts)
	return err
}

// UpdateMetadata persists doc's title, starred, hidden and writers-can-invite flags
func (s *Service) UpdateMetadata(ctx context.Context, doc *types.Document) error {
	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeMutation)
	_, err := s.files.Update(ctx, reqCtx, doc.ID, files.MetadataUpdate{
		Name:            doc.Title,
		Starred:         doc.Starred,
		WritersCanShare: doc.WritersCanInvite,
		Hidden:          doc.Hidden,
	})
	return err
}

// DownloadExport exports doc in format to a temporary file and returns its path
func (s *Service) DownloadExport(ctx context.Context, doc *types.Document, format types.ExportFormat) (string, error) {
	mimes, ok := exportMimes[format]
	if !ok {
		return "", utils.NewCLIError(utils.ErrCodeUnsupportedDocumentType,
			fmt.Sprintf("No export format %q", format)).
			WithContext("documentId", doc.ID).
			Err()
	}

	exporter := s.files
	if m, ok := s.exporters[doc.Type]; ok {
		exporter = m
	}

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeDownloadOrExport)
	file := &types.DriveFile{ID: doc.ID, Name: doc.Title, MimeType: doc.MimeType}
	return exporter.ExportToTemp(ctx, reqCtx, file, mimes.export, format.Extension())
}

// FindDocumentByExactTitle returns the single document (not a folder or shortcut) titled
// exactly title. No match and more than one match both report not found.
func (s *Service) FindDocumentByExactTitle(ctx context.Context, title string) (*types.Document, bool, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false and %s",
		utils.EscapeQueryValue(title), notContainers)

	reqCtx := api.NewRequestContextFrom(ctx, s.account, types.RequestTypeListOrSearch)
	found, err := s.files.ListAll(ctx, reqCtx, files.ListOptions{Query: query})
	if err != nil {
		return nil, false, err
	}

	var match *types.DriveFile
	count := 0
	for _, f := range found {
		if f.Name == title {
			match = f
			count++
		}
	}
	if count != 1 {
		if count > 1 {
			s.logger.Warn("Ambiguous document title",
				logging.F("account", s.account),
				logging.F("title", title),
				logging.F("matches", count),
			)
		}
		return nil, false, nil
	}
	return toDocument(match), true, nil
}
