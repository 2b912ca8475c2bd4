// Package auth establishes the per-account sessions a migration runs with:
// stored OAuth tokens per profile, or a service account impersonating the
// account.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	serviceName        = "gdm"
	tokenRefreshBuffer = 5 * time.Minute
)

// Manager handles authentication operations
type Manager struct {
	configDir      string
	useKeyring     bool
	useEncryption  bool
	storage        StorageBackend
	oauthConfig    *oauth2.Config
	storageWarning string
}

// NewManager creates a new auth manager
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// ManagerOptions configures the auth manager
type ManagerOptions struct {
	ForceEncryptedFile bool
	ForcePlainFile     bool // insecure, tests and development only
	// Fs holds file-backed credentials; nil means the OS filesystem
	Fs afero.Fs
}

// NewManagerWithOptions creates a new auth manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		configDir: configDir,
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	switch {
	case opts.ForcePlainFile:
		mgr.storage = NewPlainFileStorageFs(fs, configDir)
		mgr.storageWarning = "WARNING: Using unencrypted file storage. Credentials are stored in plain text."
	case opts.ForceEncryptedFile || !checkKeyringAvailable():
		storage, err := NewEncryptedFileStorageFs(fs, configDir)
		if err != nil {
			mgr.storage = NewPlainFileStorageFs(fs, configDir)
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Using plain file storage.", err)
			break
		}
		mgr.storage = storage
		mgr.useEncryption = true
		if !opts.ForceEncryptedFile {
			mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
		}
	default:
		mgr.storage = NewKeyringStorage(serviceName)
		mgr.useKeyring = true
	}

	return mgr
}

// SetOAuthConfig sets the OAuth2 configuration
func (m *Manager) SetOAuthConfig(clientID, clientSecret string, scopes []string) {
	m.oauthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://localhost:8085/callback",
	}
}

// GetOAuthConfig returns the current OAuth2 configuration
func (m *Manager) GetOAuthConfig() *oauth2.Config {
	return m.oauthConfig
}

// LoadCredentials loads stored credentials for a profile
func (m *Manager) LoadCredentials(profile string) (*types.Credentials, error) {
	stored, err := m.loadStoredCredentials(profile)
	if err != nil {
		return nil, err
	}

	expiryDate, err := time.Parse(time.RFC3339, stored.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry date: %w", err)
	}

	return &types.Credentials{
		AccessToken:         stored.AccessToken,
		RefreshToken:        stored.RefreshToken,
		ExpiryDate:          expiryDate,
		Scopes:              stored.Scopes,
		Type:                stored.Type,
		ServiceAccountEmail: stored.ServiceAccountEmail,
		ImpersonatedUser:    stored.ImpersonatedUser,
	}, nil
}

// SaveCredentials saves credentials for a profile
func (m *Manager) SaveCredentials(profile string, creds *types.Credentials) error {
	stored := types.StoredCredentials{
		Profile:             profile,
		AccessToken:         creds.AccessToken,
		RefreshToken:        creds.RefreshToken,
		ExpiryDate:          creds.ExpiryDate.Format(time.RFC3339),
		Scopes:              creds.Scopes,
		Type:                creds.Type,
		ServiceAccountEmail: creds.ServiceAccountEmail,
		ImpersonatedUser:    creds.ImpersonatedUser,
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := m.storage.Save(profile, data); err != nil {
		return err
	}

	if err := m.addProfileToList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// DeleteCredentials removes credentials for a profile
func (m *Manager) DeleteCredentials(profile string) error {
	if err := m.storage.Delete(profile); err != nil {
		return err
	}

	if err := m.removeProfileFromList(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to update profile list: %v\n", err)
	}

	return nil
}

// NeedsRefresh checks if credentials need refreshing
func (m *Manager) NeedsRefresh(creds *types.Credentials) bool {
	return time.Now().Add(tokenRefreshBuffer).After(creds.ExpiryDate)
}

// RefreshCredentials refreshes OAuth2 tokens
func (m *Manager) RefreshCredentials(ctx context.Context, creds *types.Credentials) (*types.Credentials, error) {
	if creds.Type != types.AuthTypeOAuth {
		return nil, fmt.Errorf("refresh only supported for OAuth credentials")
	}
	if m.oauthConfig == nil {
		return nil, fmt.Errorf("OAuth config not set")
	}

	newToken, err := m.oauthConfig.TokenSource(ctx, toToken(creds)).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	refreshToken := newToken.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.RefreshToken
	}
	return &types.Credentials{
		AccessToken:  newToken.AccessToken,
		RefreshToken: refreshToken,
		ExpiryDate:   newToken.Expiry,
		Scopes:       creds.Scopes,
		Type:         types.AuthTypeOAuth,
	}, nil
}

// GetValidCredentials returns valid credentials, refreshing if necessary
func (m *Manager) GetValidCredentials(ctx context.Context, profile string) (*types.Credentials, error) {
	creds, err := m.LoadCredentials(profile)
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("No credentials found for profile %q. Run 'gdm auth login --profile %s' first.", profile, profile)).
			WithContext("profile", profile).
			Err()
	}

	if creds.Type == types.AuthTypeServiceAccount || creds.Type == types.AuthTypeImpersonated {
		if time.Now().After(creds.ExpiryDate) {
			return nil, utils.NewCLIError(utils.ErrCodeAuthExpired,
				"Service account token expired. Use --key-file to authenticate with the key directly.").
				WithContext("profile", profile).
				Err()
		}
		return creds, nil
	}

	if m.NeedsRefresh(creds) {
		newCreds, err := m.RefreshCredentials(ctx, creds)
		if err != nil {
			return nil, utils.NewCLIError(utils.ErrCodeAuthExpired,
				fmt.Sprintf("Token refresh failed. Run 'gdm auth login --profile %s' to re-authenticate.", profile)).
				WithContext("profile", profile).
				Err()
		}
		if err := m.SaveCredentials(profile, newCreds); err != nil {
			return nil, fmt.Errorf("failed to save refreshed credentials: %w", err)
		}
		return newCreds, nil
	}

	return creds, nil
}

// TokenSource returns a token source for creds. OAuth credentials refresh
// through the configured client when one is set.
func (m *Manager) TokenSource(ctx context.Context, creds *types.Credentials) oauth2.TokenSource {
	token := toToken(creds)
	if m.oauthConfig == nil || creds.Type != types.AuthTypeOAuth {
		return oauth2.StaticTokenSource(token)
	}
	return m.oauthConfig.TokenSource(ctx, token)
}

func toToken(creds *types.Credentials) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       creds.ExpiryDate,
	}
}

func (m *Manager) loadStoredCredentials(profile string) (*types.StoredCredentials, error) {
	data, err := m.storage.Load(profile)
	if err != nil {
		return nil, err
	}

	var stored types.StoredCredentials
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return &stored, nil
}

// ValidateScopes checks if credentials have required scopes
func (m *Manager) ValidateScopes(creds *types.Credentials, required []string) error {
	scopeSet := make(map[string]bool)
	for _, s := range creds.Scopes {
		scopeSet[s] = true
	}
	for _, req := range required {
		if !scopeSet[req] {
			return utils.NewCLIError(utils.ErrCodeScopeInsufficient,
				fmt.Sprintf("Missing required scope: %s. Re-authenticate with 'gdm auth login'.", req)).
				WithContext("scope", req).
				Err()
		}
	}
	return nil
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// ConfigDir returns the configuration directory
func (m *Manager) ConfigDir() string {
	return m.configDir
}

// GetStorageBackend returns the name of the storage backend being used
func (m *Manager) GetStorageBackend() string {
	return m.storage.Name()
}

// GetStorageWarning returns any warning message about the storage backend
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}
