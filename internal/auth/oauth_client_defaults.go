package auth

import (
	"os"

	"github.com/dl-alexandre/gdm/internal/utils"
)

// BundledOAuthClientID and BundledOAuthClientSecret can be set at build time
// via -ldflags.
var (
	BundledOAuthClientID     string
	BundledOAuthClientSecret string
)

// ResolveOAuthClient picks the OAuth client: the given values, then
// GDM_CLIENT_ID and GDM_CLIENT_SECRET, then the bundled client.
func ResolveOAuthClient(clientID, clientSecret string) (string, string, error) {
	if clientID != "" {
		return clientID, clientSecret, nil
	}
	if id := os.Getenv("GDM_CLIENT_ID"); id != "" {
		return id, os.Getenv("GDM_CLIENT_SECRET"), nil
	}
	if BundledOAuthClientID != "" {
		return BundledOAuthClientID, BundledOAuthClientSecret, nil
	}
	return "", "", utils.NewCLIError(utils.ErrCodeAuthClientMissing,
		"No OAuth client configured. Pass --client-id or set GDM_CLIENT_ID and GDM_CLIENT_SECRET.").Err()
}
