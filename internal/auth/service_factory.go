package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ServiceType is what a Drive service built for a session is used for
type ServiceType string

const (
	// ServiceDrive reads and writes documents, folders and permissions
	ServiceDrive ServiceType = "drive"
	// ServiceSpreadsheetExport downloads spreadsheets in legacy formats
	ServiceSpreadsheetExport ServiceType = "spreadsheet_export"
)

// RequiredScopesForService returns the scopes a service type is built with
func RequiredScopesForService(svcType ServiceType) []string {
	switch svcType {
	case ServiceDrive:
		return utils.ScopesMigration
	case ServiceSpreadsheetExport:
		return utils.ScopesSpreadsheetExport
	default:
		return nil
	}
}

// Session is an established connection to one account
type Session struct {
	Account string
	Drive   *drive.Service
	// Export is used for spreadsheet exports
	Export *drive.Service
}

// ServiceFactory builds sessions from stored profiles or a service account key
type ServiceFactory struct {
	manager   *Manager
	fs        afero.Fs
	transport func(http.RoundTripper) http.RoundTripper
	options   []option.ClientOption
}

// NewServiceFactory creates a factory reading key files from the OS filesystem
func NewServiceFactory(manager *Manager) *ServiceFactory {
	return &ServiceFactory{manager: manager, fs: afero.NewOsFs()}
}

// WithFs reads key files from fs
func (f *ServiceFactory) WithFs(fs afero.Fs) *ServiceFactory {
	f.fs = fs
	return f
}

// WithTransport wraps the transport of every client the factory builds
func (f *ServiceFactory) WithTransport(wrap func(http.RoundTripper) http.RoundTripper) *ServiceFactory {
	f.transport = wrap
	return f
}

// WithClientOptions adds options to every service the factory builds
func (f *ServiceFactory) WithClientOptions(opts ...option.ClientOption) *ServiceFactory {
	f.options = append(f.options, opts...)
	return f
}

// ProfileSession opens account with the OAuth tokens stored for profile.
// Both services share the profile's token.
func (f *ServiceFactory) ProfileSession(ctx context.Context, account, profile string) (*Session, error) {
	creds, err := f.manager.GetValidCredentials(ctx, profile)
	if err != nil {
		return nil, err
	}
	if err := f.manager.ValidateScopes(creds, RequiredScopesForService(ServiceDrive)); err != nil {
		return nil, err
	}

	ts := f.manager.TokenSource(ctx, creds)
	svc, err := f.CreateDriveService(ctx, ts)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Drive: svc, Export: svc}, nil
}

// ServiceAccountSession opens account by impersonating it with the key in
// keyFile. The export service gets its own spreadsheet-scoped token.
func (f *ServiceFactory) ServiceAccountSession(ctx context.Context, account, keyFile string) (*Session, error) {
	keyData, err := afero.ReadFile(f.fs, keyFile)
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to read service account key: %v", err)).
			WithContext("keyFile", keyFile).
			Err()
	}

	sessions := make(map[ServiceType]*drive.Service, 2)
	for _, svcType := range []ServiceType{ServiceDrive, ServiceSpreadsheetExport} {
		ts, err := ImpersonatedTokenSource(ctx, keyData, account, RequiredScopesForService(svcType))
		if err != nil {
			return nil, err
		}
		svc, err := f.CreateDriveService(ctx, ts)
		if err != nil {
			return nil, err
		}
		sessions[svcType] = svc
	}
	return &Session{Account: account, Drive: sessions[ServiceDrive], Export: sessions[ServiceSpreadsheetExport]}, nil
}

// CreateDriveService builds a Drive service authenticated by ts
func (f *ServiceFactory) CreateDriveService(ctx context.Context, ts oauth2.TokenSource) (*drive.Service, error) {
	var base http.RoundTripper = http.DefaultTransport
	if f.transport != nil {
		base = f.transport(base)
	}
	client := &http.Client{Transport: &oauth2.Transport{Source: ts, Base: base}}

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, f.options...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("Failed to create Drive service: %v", err)).Err()
	}
	return svc, nil
}
