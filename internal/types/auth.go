package types

import "time"

// AuthType identifies how a set of credentials was obtained
type AuthType string

const (
	AuthTypeOAuth          AuthType = "oauth"
	AuthTypeServiceAccount AuthType = "service_account"
	AuthTypeImpersonated   AuthType = "impersonated"
)

// Credentials are the in-memory form of a profile's tokens
type Credentials struct {
	AccessToken         string
	RefreshToken        string
	ExpiryDate          time.Time
	Scopes              []string
	Type                AuthType
	ServiceAccountEmail string
	ImpersonatedUser    string
}

// StoredCredentials is the persisted form of Credentials
type StoredCredentials struct {
	Profile             string   `json:"profile"`
	AccessToken         string   `json:"accessToken"`
	RefreshToken        string   `json:"refreshToken,omitempty"`
	ExpiryDate          string   `json:"expiryDate"`
	Scopes              []string `json:"scopes"`
	Type                AuthType `json:"type"`
	ServiceAccountEmail string   `json:"serviceAccountEmail,omitempty"`
	ImpersonatedUser    string   `json:"impersonatedUser,omitempty"`
}
