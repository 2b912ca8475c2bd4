package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dl-alexandre/gdm/internal/utils"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ServiceAccountKey is the JSON key of a service account
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// Validate checks that the key can be used for domain-wide delegation
func (k ServiceAccountKey) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.Type, validation.Required, validation.In("service_account")),
		validation.Field(&k.ClientEmail, validation.Required, is.EmailFormat),
		validation.Field(&k.PrivateKey, validation.Required),
	)
}

// ParseServiceAccountKey decodes and validates a key file's content
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Failed to parse service account key: %v", err)).Err()
	}
	if err := key.Validate(); err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Invalid service account key: %v", err)).Err()
	}
	return &key, nil
}

// ImpersonatedTokenSource returns a token source acting as user through the
// service account in keyData. Tokens are minted lazily and refreshed as they expire.
func ImpersonatedTokenSource(ctx context.Context, keyData []byte, user string, scopes []string) (oauth2.TokenSource, error) {
	if _, err := ParseServiceAccountKey(keyData); err != nil {
		return nil, err
	}
	if err := validation.Validate(user, validation.Required, is.EmailFormat); err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("Impersonated user must be an email address: %v", err)).Err()
	}
	if len(scopes) == 0 {
		return nil, utils.NewCLIError(utils.ErrCodeInvalidArgument, "At least one scope is required").Err()
	}

	creds, err := google.CredentialsFromJSONWithParams(ctx, keyData, google.CredentialsParams{
		Scopes:  scopes,
		Subject: user,
	})
	if err != nil {
		return nil, utils.NewCLIError(utils.ErrCodeAuthInvalid,
			fmt.Sprintf("Failed to load service account key: %v", err)).
			WithContext("user", user).
			Err()
	}
	return creds.TokenSource, nil
}
