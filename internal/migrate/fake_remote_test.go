package migrate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dl-alexandre/gdm/internal/sharing"
	"github.com/dl-alexandre/gdm/internal/types"
)

// tempStore stands in for the local filesystem shared by both accounts
type tempStore struct {
	mu    sync.Mutex
	files map[string]string
	next  int
}

func newTempStore() *tempStore {
	return &tempStore{files: make(map[string]string)}
}

func (t *tempStore) put(content, ext string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	path := fmt.Sprintf("/tmp/gdm-export-%d%s", t.next, ext)
	t.files[path] = content
	return path
}

func (t *tempStore) take(path string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	content, ok := t.files[path]
	return content, ok
}

func (t *tempStore) remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, path)
}

func (t *tempStore) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}

// fakeRemote is an in-memory account
type fakeRemote struct {
	account string
	temps   *tempStore

	docs    map[string]*types.Document
	order   []string
	entries map[string][]sharing.Entry
	content map[string]string
	calls   map[string]int
	nextID  int

	// failOn makes the named method fail for documents with the given ID or title
	failOn map[string]map[string]error
	// onGrant runs after a successful grant
	onGrant func(doc *types.Document, e sharing.Entry)
}

var mutatingMethods = []string{"CreateFolder", "UploadFile", "AddDocumentToFolder", "LinkDocumentToFolder", "GrantSharingEntry", "UpdateMetadata"}

func newFakeRemote(account string, temps *tempStore) *fakeRemote {
	return &fakeRemote{
		account: account,
		temps:   temps,
		docs:    make(map[string]*types.Document),
		entries: make(map[string][]sharing.Entry),
		content: make(map[string]string),
		calls:   make(map[string]int),
		failOn:  make(map[string]map[string]error),
	}
}

func (f *fakeRemote) add(doc *types.Document) *types.Document {
	if doc.ID == "" {
		f.nextID++
		doc.ID = fmt.Sprintf("%s-%d", strings.SplitN(f.account, "@", 2)[0], f.nextID)
	}
	if _, ok := f.docs[doc.ID]; !ok {
		f.order = append(f.order, doc.ID)
	}
	f.docs[doc.ID] = doc
	return doc
}

func (f *fakeRemote) addFolder(title string) *types.Document {
	return f.add(&types.Document{Title: title, Type: types.DocumentTypeFolder, Owned: true})
}

// addDoc stores an owned document placed in the folders titled parents, creating them as needed
func (f *fakeRemote) addDoc(title string, docType types.DocumentType, parents ...string) *types.Document {
	doc := &types.Document{Title: title, Type: docType, Owned: true}
	for _, p := range parents {
		folder := f.folderNamed(p)
		if folder == nil {
			folder = f.addFolder(p)
		}
		doc.Parents = append(doc.Parents, types.FolderRef{ID: folder.ID})
	}
	f.add(doc)
	f.content[doc.ID] = "content of " + title
	return doc
}

func (f *fakeRemote) folderNamed(title string) *types.Document {
	for _, id := range f.order {
		if d := f.docs[id]; d.IsFolder() && d.Title == title {
			return d
		}
	}
	return nil
}

func (f *fakeRemote) fail(method, key string, err error) {
	if f.failOn[method] == nil {
		f.failOn[method] = make(map[string]error)
	}
	f.failOn[method][key] = err
}

func (f *fakeRemote) check(method string, keys ...string) error {
	f.calls[method]++
	for _, k := range keys {
		if err, ok := f.failOn[method][k]; ok {
			return err
		}
	}
	return nil
}

func (f *fakeRemote) mutations() int {
	n := 0
	for _, m := range mutatingMethods {
		n += f.calls[m]
	}
	return n
}

// nonFolders returns the stored documents that are not folders
func (f *fakeRemote) nonFolders() []*types.Document {
	var out []*types.Document
	for _, id := range f.order {
		if d := f.docs[id]; !d.IsFolder() {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeRemote) parentTitles(doc *types.Document) []string {
	var titles []string
	for _, p := range f.docs[doc.ID].Parents {
		if folder, ok := f.docs[p.ID]; ok {
			titles = append(titles, folder.Title)
		}
	}
	return titles
}

func (f *fakeRemote) Account() string {
	return f.account
}

func (f *fakeRemote) ListDocuments(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error) {
	if err := f.check("ListDocuments", string(filter)); err != nil {
		return nil, err
	}
	var out []*types.Document
	for _, id := range f.order {
		d := f.docs[id]
		if d.IsFolder() || d.Owned != (filter == types.FilterOwned) {
			continue
		}
		shallow := *d
		shallow.Parents = nil
		for _, p := range d.Parents {
			shallow.Parents = append(shallow.Parents, types.FolderRef{ID: p.ID})
		}
		out = append(out, &shallow)
	}
	return out, nil
}

func (f *fakeRemote) FetchDocument(ctx context.Context, id string) (*types.Document, error) {
	d, ok := f.docs[id]
	if err := f.check("FetchDocument", id); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	full := *d
	full.Parents = nil
	for _, p := range d.Parents {
		if folder, ok := f.docs[p.ID]; ok {
			full.Parents = append(full.Parents, types.FolderRef{ID: p.ID, Title: folder.Title})
		}
	}
	return &full, nil
}

func (f *fakeRemote) FetchSharingEntries(ctx context.Context, doc *types.Document) ([]sharing.Entry, error) {
	if err := f.check("FetchSharingEntries", doc.ID, doc.Title); err != nil {
		return nil, err
	}
	return append([]sharing.Entry(nil), f.entries[doc.ID]...), nil
}

func (f *fakeRemote) CreateFolder(ctx context.Context, title string) (*types.Document, error) {
	if err := f.check("CreateFolder", title); err != nil {
		return nil, err
	}
	return f.addFolder(title), nil
}

func (f *fakeRemote) FindFolderByExactTitle(ctx context.Context, title string) (*types.Document, bool, error) {
	if err := f.check("FindFolderByExactTitle", title); err != nil {
		return nil, false, err
	}
	var match *types.Document
	count := 0
	for _, id := range f.order {
		if d := f.docs[id]; d.IsFolder() && d.Title == title {
			match = d
			count++
		}
	}
	if count != 1 {
		return nil, false, nil
	}
	return match, true, nil
}

func (f *fakeRemote) FindOrCreateFolder(ctx context.Context, title string) (*types.Document, error) {
	folder, found, err := f.FindFolderByExactTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if found {
		return folder, nil
	}
	return f.CreateFolder(ctx, title)
}

func (f *fakeRemote) UploadFile(ctx context.Context, localPath, title, parentID string) (*types.Document, error) {
	content, ok := f.temps.take(localPath)
	if err := f.check("UploadFile", title, content); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no such file %s", localPath)
	}
	doc := f.add(&types.Document{Title: title, Type: types.DocumentTypeSpreadsheet, Owned: true})
	f.content[doc.ID] = content
	f.temps.remove(localPath)
	return doc, nil
}

func (f *fakeRemote) AddDocumentToFolder(ctx context.Context, doc, folder *types.Document) error {
	return f.fileInto("AddDocumentToFolder", doc, folder)
}

// LinkDocumentToFolder records the link as a parent, which is how FetchDocument reports it
func (f *fakeRemote) LinkDocumentToFolder(ctx context.Context, doc, folder *types.Document) error {
	return f.fileInto("LinkDocumentToFolder", doc, folder)
}

func (f *fakeRemote) fileInto(method string, doc, folder *types.Document) error {
	if err := f.check(method, doc.ID, folder.Title); err != nil {
		return err
	}
	stored, ok := f.docs[doc.ID]
	if !ok {
		return fmt.Errorf("document %s not found", doc.ID)
	}
	stored.Parents = append(stored.Parents, types.FolderRef{ID: folder.ID})
	return nil
}

func (f *fakeRemote) GrantSharingEntry(ctx context.Context, doc *types.Document, entry sharing.Entry) error {
	if err := f.check("GrantSharingEntry", doc.ID, entry.ScopeID); err != nil {
		return err
	}
	f.entries[doc.ID] = append(f.entries[doc.ID], entry)
	if f.onGrant != nil {
		f.onGrant(doc, entry)
	}
	return nil
}

func (f *fakeRemote) UpdateMetadata(ctx context.Context, doc *types.Document) error {
	if err := f.check("UpdateMetadata", doc.ID, doc.Title); err != nil {
		return err
	}
	stored, ok := f.docs[doc.ID]
	if !ok {
		return fmt.Errorf("document %s not found", doc.ID)
	}
	stored.Title = doc.Title
	stored.Starred = doc.Starred
	stored.Hidden = doc.Hidden
	stored.WritersCanInvite = doc.WritersCanInvite
	return nil
}

func (f *fakeRemote) DownloadExport(ctx context.Context, doc *types.Document, format types.ExportFormat) (string, error) {
	if err := f.check("DownloadExport", doc.ID, doc.Title); err != nil {
		return "", err
	}
	return f.temps.put(f.content[doc.ID], format.Extension()), nil
}

func (f *fakeRemote) FindDocumentByExactTitle(ctx context.Context, title string) (*types.Document, bool, error) {
	if err := f.check("FindDocumentByExactTitle", title); err != nil {
		return nil, false, err
	}
	var match *types.Document
	count := 0
	for _, d := range f.nonFolders() {
		if d.Title == title {
			match = d
			count++
		}
	}
	if count != 1 {
		return nil, false, nil
	}
	return match, true, nil
}

var _ Remote = (*fakeRemote)(nil)
