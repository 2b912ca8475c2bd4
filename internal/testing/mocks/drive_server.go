// Package mocks provides an in-memory Drive v3 server for tests. It speaks
// enough of the REST surface for the file, folder, permission and about calls
// the migration makes, and holds them to Drive v3's rules: exports only to
// the formats Drive offers per Workspace type, and at most one parent per file.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dl-alexandre/gdm/internal/api"
	"github.com/dl-alexandre/gdm/internal/logging"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType   = "application/vnd.google-apps.folder"
	shortcutMimeType = "application/vnd.google-apps.shortcut"
)

// exportFormats lists what files.export accepts for each Workspace type
var exportFormats = map[string][]string{
	"application/vnd.google-apps.spreadsheet": {
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/x-vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/pdf",
		"text/csv",
		"text/tab-separated-values",
		"application/zip",
	},
	"application/vnd.google-apps.document": {
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
		"application/rtf",
		"application/pdf",
		"text/plain",
		"text/html",
		"application/zip",
		"application/epub+zip",
		"text/markdown",
	},
	"application/vnd.google-apps.presentation": {
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.presentation",
		"application/pdf",
		"text/plain",
	},
}

// Call is one request received by the server
type Call struct {
	Method string
	Path   string
	Query  string
}

// DriveServer fakes one account's view of Drive
type DriveServer struct {
	Account string
	RootID  string
	// PageSize caps list responses when the request does not ask for less
	PageSize int
	// FailFunc, when set, may fail a request before it is served
	FailFunc func(r *http.Request) *googleapi.Error

	server *httptest.Server

	mu      sync.Mutex
	files   map[string]*drive.File
	order   []string
	perms   map[string][]*drive.Permission
	content map[string][]byte
	nextID  int
	calls   []Call
}

// NewDriveServer starts a server for account and registers its shutdown with t
func NewDriveServer(t *testing.T, account string) *DriveServer {
	t.Helper()
	s := &DriveServer{
		Account: account,
		RootID:  "root-" + strings.SplitN(account, "@", 2)[0],
		files:   make(map[string]*drive.File),
		perms:   make(map[string][]*drive.Permission),
		content: make(map[string][]byte),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.server.Close)
	return s
}

// Service returns a Drive service talking to the server
func (s *DriveServer) Service(t *testing.T) *drive.Service {
	t.Helper()
	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(s.server.URL+"/drive/v3/"),
		option.WithHTTPClient(s.server.Client()),
	)
	if err != nil {
		t.Fatalf("drive.NewService: %v", err)
	}
	return svc
}

// Client returns an api.Client without retries talking to the server
func (s *DriveServer) Client(t *testing.T) *api.Client {
	t.Helper()
	return api.NewClient(s.Service(t), 0, 1, logging.NewNoOpLogger())
}

// AddFile stores a file. Missing IDs are assigned. Files without parents are placed in the root.
func (s *DriveServer) AddFile(f *drive.File) *drive.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(f)
}

// AddFolder stores an owned folder named title
func (s *DriveServer) AddFolder(id, title string) *drive.File {
	return s.AddFile(&drive.File{Id: id, Name: title, MimeType: folderMimeType, OwnedByMe: true})
}

// SetContent sets what downloads and exports of id return
func (s *DriveServer) SetContent(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[id] = data
}

// AddPermission stores a permission on fileID
func (s *DriveServer) AddPermission(fileID string, p *drive.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Id == "" {
		s.nextID++
		p.Id = fmt.Sprintf("perm-%d", s.nextID)
	}
	s.perms[fileID] = append(s.perms[fileID], p)
}

// File returns a copy of the stored file, or nil
func (s *DriveServer) File(id string) *drive.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

// FilesNamed returns the stored files with exactly the given name
func (s *DriveServer) FilesNamed(name string) []*drive.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*drive.File
	for _, id := range s.order {
		if f := s.files[id]; f.Name == name {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out
}

// Content returns the stored content of id
func (s *DriveServer) Content(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[id]
}

// Permissions returns the permissions stored on fileID
func (s *DriveServer) Permissions(fileID string) []*drive.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*drive.Permission, len(s.perms[fileID]))
	copy(out, s.perms[fileID])
	return out
}

// Calls returns every request received so far
func (s *DriveServer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// MutatingCalls counts received POST, PATCH and DELETE requests
func (s *DriveServer) MutatingCalls() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			n++
		}
	}
	return n
}

func (s *DriveServer) addLocked(f *drive.File) *drive.File {
	if f.Id == "" {
		s.nextID++
		f.Id = fmt.Sprintf("file-%d", s.nextID)
	}
	if len(f.Parents) == 0 {
		f.Parents = []string{s.RootID}
	}
	if _, exists := s.files[f.Id]; !exists {
		s.order = append(s.order, f.Id)
	}
	s.files[f.Id] = f
	return f
}

func (s *DriveServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
	s.mu.Unlock()

	if s.FailFunc != nil {
		if apiErr := s.FailFunc(r); apiErr != nil {
			writeError(w, apiErr.Code, apiErr.Message, reasonOf(apiErr))
			return
		}
	}

	path := r.URL.Path
	upload := strings.HasPrefix(path, "/upload/drive/v3/")
	path = strings.TrimPrefix(path, "/upload")
	path = strings.TrimPrefix(path, "/drive/v3/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case parts[0] == "about" && r.Method == http.MethodGet:
		writeJSON(w, &drive.About{User: &drive.User{EmailAddress: s.Account, DisplayName: s.Account}})
	case parts[0] == "files" && len(parts) == 1 && r.Method == http.MethodGet:
		s.listFiles(w, r)
	case parts[0] == "files" && len(parts) == 1 && r.Method == http.MethodPost:
		s.createFile(w, r, upload)
	case parts[0] == "files" && len(parts) == 2 && r.Method == http.MethodGet:
		s.getFile(w, r, parts[1])
	case parts[0] == "files" && len(parts) == 2 && r.Method == http.MethodPatch:
		s.updateFile(w, r, parts[1])
	case parts[0] == "files" && len(parts) == 3 && parts[2] == "export":
		s.exportFile(w, r, parts[1])
	case parts[0] == "files" && len(parts) == 3 && parts[2] == "permissions" && r.Method == http.MethodGet:
		s.listPermissions(w, r, parts[1])
	case parts[0] == "files" && len(parts) == 3 && parts[2] == "permissions" && r.Method == http.MethodPost:
		s.createPermission(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "unknown route "+r.Method+" "+r.URL.Path, "notFound")
	}
}

func (s *DriveServer) resolveID(id string) string {
	if id == "root" {
		return s.RootID
	}
	return id
}

func (s *DriveServer) listFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	match, err := parseQuery(q.Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalidQuery")
		return
	}

	s.mu.Lock()
	var matched []*drive.File
	for _, id := range s.order {
		if f := s.files[id]; match(f) {
			cp := *f
			matched = append(matched, &cp)
		}
	}
	s.mu.Unlock()

	offset, _ := strconv.Atoi(q.Get("pageToken"))
	size := s.PageSize
	if ps, err := strconv.Atoi(q.Get("pageSize")); err == nil && ps > 0 && (size == 0 || ps < size) {
		size = ps
	}
	end := len(matched)
	next := ""
	if size > 0 && offset+size < len(matched) {
		end = offset + size
		next = strconv.Itoa(end)
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	writeJSON(w, &drive.FileList{Files: matched[offset:end], NextPageToken: next})
}

func (s *DriveServer) getFile(w http.ResponseWriter, r *http.Request, id string) {
	id = s.resolveID(id)
	s.mu.Lock()
	f, ok := s.files[id]
	var cp drive.File
	if ok {
		cp = *f
	}
	data := s.content[id]
	s.mu.Unlock()

	if !ok {
		if id == s.RootID {
			writeJSON(w, &drive.File{Id: s.RootID, Name: "My Drive", MimeType: folderMimeType, OwnedByMe: true})
			return
		}
		writeError(w, http.StatusNotFound, "File not found: "+id, "notFound")
		return
	}
	if r.URL.Query().Get("alt") == "media" {
		w.Header().Set("Content-Type", cp.MimeType)
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, &cp)
}

func (s *DriveServer) exportFile(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	f, ok := s.files[id]
	var sourceMime string
	if ok {
		sourceMime = f.MimeType
	}
	data := s.content[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id, "notFound")
		return
	}

	formats, exportable := exportFormats[sourceMime]
	if !exportable {
		writeError(w, http.StatusForbidden, "Export only supports Docs Editors files.", "fileNotExportable")
		return
	}
	target := r.URL.Query().Get("mimeType")
	if !contains(formats, target) {
		writeError(w, http.StatusBadRequest, "The requested conversion is not supported.", "badRequest")
		return
	}
	w.Header().Set("Content-Type", target)
	_, _ = w.Write(data)
}

func (s *DriveServer) createFile(w http.ResponseWriter, r *http.Request, upload bool) {
	var meta drive.File
	var data []byte
	if upload {
		var err error
		meta, data, err = readMultipart(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "badRequest")
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "badRequest")
		return
	}

	if len(meta.Parents) > 1 {
		writeError(w, http.StatusForbidden, "Increasing the number of parents is not allowed.", "cannotAddParent")
		return
	}

	s.mu.Lock()
	if meta.MimeType == shortcutMimeType {
		if meta.ShortcutDetails == nil {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Shortcut target is required.", "required")
			return
		}
		target, ok := s.files[meta.ShortcutDetails.TargetId]
		if !ok {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "File not found: "+meta.ShortcutDetails.TargetId, "notFound")
			return
		}
		meta.ShortcutDetails.TargetMimeType = target.MimeType
	}
	for i, p := range meta.Parents {
		meta.Parents[i] = s.resolveID(p)
	}
	meta.OwnedByMe = true
	f := s.addLocked(&meta)
	if upload {
		s.content[f.Id] = data
	}
	cp := *f
	s.mu.Unlock()
	writeJSON(w, &cp)
}

func (s *DriveServer) updateFile(w http.ResponseWriter, r *http.Request, id string) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err.Error(), "badRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+id, "notFound")
		return
	}

	parents, apiErr := s.reparent(f, r.URL.Query())
	if apiErr != nil {
		writeError(w, apiErr.Code, apiErr.Message, reasonOf(apiErr))
		return
	}

	for key, raw := range patch {
		var err error
		switch key {
		case "name":
			err = json.Unmarshal(raw, &f.Name)
		case "starred":
			err = json.Unmarshal(raw, &f.Starred)
		case "writersCanShare":
			err = json.Unmarshal(raw, &f.WritersCanShare)
		case "appProperties":
			var props map[string]string
			if err = json.Unmarshal(raw, &props); err == nil {
				if f.AppProperties == nil {
					f.AppProperties = map[string]string{}
				}
				for k, v := range props {
					f.AppProperties[k] = v
				}
			}
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "badRequest")
			return
		}
	}

	f.Parents = parents

	cp := *f
	writeJSON(w, &cp)
}

// reparent applies removeParents and addParents to f's parents. Adding a
// parent is refused when the file would end up with more than one, as Drive
// v3 does; files seeded with several parents keep them until moved.
func (s *DriveServer) reparent(f *drive.File, q url.Values) ([]string, *googleapi.Error) {
	parents := append([]string(nil), f.Parents...)
	if remove := q.Get("removeParents"); remove != "" {
		removed := make([]string, 0)
		for _, p := range strings.Split(remove, ",") {
			removed = append(removed, s.resolveID(p))
		}
		kept := parents[:0]
		for _, p := range parents {
			if !contains(removed, p) {
				kept = append(kept, p)
			}
		}
		parents = kept
	}

	add := q.Get("addParents")
	if add == "" {
		return parents, nil
	}
	for _, p := range strings.Split(add, ",") {
		p = s.resolveID(p)
		if !contains(parents, p) {
			parents = append(parents, p)
		}
	}
	if len(parents) > 1 {
		return nil, &googleapi.Error{
			Code:    http.StatusForbidden,
			Message: "Increasing the number of parents is not allowed.",
			Errors:  []googleapi.ErrorItem{{Reason: "cannotAddParent"}},
		}
	}
	return parents, nil
}

func (s *DriveServer) listPermissions(w http.ResponseWriter, r *http.Request, fileID string) {
	s.mu.Lock()
	_, ok := s.files[fileID]
	perms := make([]*drive.Permission, len(s.perms[fileID]))
	copy(perms, s.perms[fileID])
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "File not found: "+fileID, "notFound")
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
	end := len(perms)
	next := ""
	if s.PageSize > 0 && offset+s.PageSize < len(perms) {
		end = offset + s.PageSize
		next = strconv.Itoa(end)
	}
	if offset > len(perms) {
		offset = len(perms)
	}
	writeJSON(w, &drive.PermissionList{Permissions: perms[offset:end], NextPageToken: next})
}

func (s *DriveServer) createPermission(w http.ResponseWriter, r *http.Request, fileID string) {
	var p drive.Permission
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "badRequest")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[fileID]; !ok {
		writeError(w, http.StatusNotFound, "File not found: "+fileID, "notFound")
		return
	}
	if p.Role == "owner" && r.URL.Query().Get("transferOwnership") != "true" {
		writeError(w, http.StatusForbidden, "The transferOwnership parameter must be enabled when the permission role is 'owner'.", "forbidden")
		return
	}
	s.nextID++
	p.Id = fmt.Sprintf("perm-%d", s.nextID)
	s.perms[fileID] = append(s.perms[fileID], &p)
	cp := p
	writeJSON(w, &cp)
}

func readMultipart(r *http.Request) (drive.File, []byte, error) {
	var meta drive.File
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return meta, nil, err
	}
	reader := multipart.NewReader(r.Body, params["boundary"])

	part, err := reader.NextPart()
	if err != nil {
		return meta, nil, err
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return meta, nil, err
	}

	part, err = reader.NextPart()
	if err != nil {
		return meta, nil, err
	}
	data, err := io.ReadAll(part)
	return meta, data, err
}

// parseQuery understands the clause forms the migration sends, joined by "and"
func parseQuery(q string) (func(*drive.File) bool, error) {
	if strings.TrimSpace(q) == "" {
		return func(*drive.File) bool { return true }, nil
	}

	var preds []func(*drive.File) bool
	for _, clause := range splitAnd(q) {
		clause = strings.TrimSpace(clause)
		switch {
		case clause == "'me' in owners":
			preds = append(preds, func(f *drive.File) bool { return f.OwnedByMe })
		case clause == "sharedWithMe":
			preds = append(preds, func(f *drive.File) bool { return !f.OwnedByMe })
		case clause == "trashed = false":
			preds = append(preds, func(f *drive.File) bool { return !f.Trashed })
		case clause == "trashed = true":
			preds = append(preds, func(f *drive.File) bool { return f.Trashed })
		case strings.HasPrefix(clause, "mimeType != "):
			v := unquote(strings.TrimPrefix(clause, "mimeType != "))
			preds = append(preds, func(f *drive.File) bool { return f.MimeType != v })
		case strings.HasPrefix(clause, "mimeType = "):
			v := unquote(strings.TrimPrefix(clause, "mimeType = "))
			preds = append(preds, func(f *drive.File) bool { return f.MimeType == v })
		case strings.HasPrefix(clause, "name = "):
			v := unquote(strings.TrimPrefix(clause, "name = "))
			preds = append(preds, func(f *drive.File) bool { return strings.EqualFold(f.Name, v) })
		case strings.HasSuffix(clause, " in parents"):
			v := unquote(strings.TrimSuffix(clause, " in parents"))
			preds = append(preds, func(f *drive.File) bool { return contains(f.Parents, v) })
		default:
			return nil, fmt.Errorf("unsupported query clause %q", clause)
		}
	}

	return func(f *drive.File) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}
		return true
	}, nil
}

// splitAnd splits on " and " outside quoted literals
func splitAnd(q string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(q):
			cur.WriteByte(c)
			cur.WriteByte(q[i+1])
			i++
			continue
		case c == '\'':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(q[i:], " and "):
			out = append(out, cur.String())
			cur.Reset()
			i += len(" and ") - 1
			continue
		}
		cur.WriteByte(c)
	}
	return append(out, cur.String())
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `\\`, `\`)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func reasonOf(err *googleapi.Error) string {
	if len(err.Errors) > 0 {
		return err.Errors[0].Reason
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"errors": []map[string]string{
				{"reason": reason, "message": message, "domain": "global"},
			},
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

// SortedNames returns the names of files, sorted
func SortedNames(files []*drive.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
