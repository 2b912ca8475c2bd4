package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"github.com/spf13/afero"
)

func newTestManager() *Manager {
	return NewManagerWithOptions("/config", ManagerOptions{ForcePlainFile: true, Fs: afero.NewMemMapFs()})
}

func TestManager_NeedsRefresh(t *testing.T) {
	mgr := newTestManager()

	tests := []struct {
		name     string
		expiry   time.Time
		expected bool
	}{
		{"Expired credentials", time.Now().Add(-1 * time.Hour), true},
		{"Expiring soon (within 5 min)", time.Now().Add(3 * time.Minute), true},
		{"Valid credentials", time.Now().Add(1 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mgr.NeedsRefresh(&types.Credentials{ExpiryDate: tt.expiry})
			if got != tt.expected {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestManager_ValidateScopes(t *testing.T) {
	mgr := newTestManager()
	creds := &types.Credentials{Scopes: []string{utils.ScopeReadonly}}

	if err := mgr.ValidateScopes(creds, []string{utils.ScopeReadonly}); err != nil {
		t.Errorf("ValidateScopes should pass for existing scope: %v", err)
	}
	err := mgr.ValidateScopes(creds, RequiredScopesForService(ServiceDrive))
	if !utils.HasCode(err, utils.ErrCodeScopeInsufficient) {
		t.Errorf("expected SCOPE_INSUFFICIENT, got %v", err)
	}
}

func TestRequiredScopesForService(t *testing.T) {
	tests := []struct {
		svcType ServiceType
		want    []string
	}{
		{ServiceDrive, utils.ScopesMigration},
		{ServiceSpreadsheetExport, utils.ScopesSpreadsheetExport},
		{ServiceType("unknown"), nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.svcType), func(t *testing.T) {
			if got := RequiredScopesForService(tt.svcType); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RequiredScopesForService(%s) = %v, want %v", tt.svcType, got, tt.want)
			}
		})
	}
}

func TestManager_GetValidCredentials(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","expires_in":3600,"token_type":"Bearer"}`)
	}))
	defer srv.Close()

	mgr := newTestManager()
	mgr.SetOAuthConfig("id", "secret", utils.ScopesMigration)
	mgr.oauthConfig.Endpoint.TokenURL = srv.URL

	if _, err := mgr.GetValidCredentials(context.Background(), "missing"); !utils.HasCode(err, utils.ErrCodeAuthRequired) {
		t.Errorf("expected AUTH_REQUIRED, got %v", err)
	}

	valid := &types.Credentials{AccessToken: "current", RefreshToken: "r", ExpiryDate: time.Now().Add(time.Hour), Type: types.AuthTypeOAuth}
	if err := mgr.SaveCredentials("source", valid); err != nil {
		t.Fatal(err)
	}
	creds, err := mgr.GetValidCredentials(context.Background(), "source")
	if err != nil || creds.AccessToken != "current" || refreshes != 0 {
		t.Errorf("valid credentials: %+v, %v, %d refreshes", creds, err, refreshes)
	}

	expiring := &types.Credentials{AccessToken: "old", RefreshToken: "r", ExpiryDate: time.Now().Add(time.Minute), Type: types.AuthTypeOAuth}
	if err := mgr.SaveCredentials("dest", expiring); err != nil {
		t.Fatal(err)
	}
	creds, err = mgr.GetValidCredentials(context.Background(), "dest")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if creds.AccessToken != "fresh" || creds.RefreshToken != "r" {
		t.Errorf("unexpected refreshed credentials %+v", creds)
	}
	stored, err := mgr.LoadCredentials("dest")
	if err != nil || stored.AccessToken != "fresh" {
		t.Errorf("refreshed credentials not stored: %+v, %v", stored, err)
	}

	expired := &types.Credentials{AccessToken: "sa", ExpiryDate: time.Now().Add(-time.Minute), Type: types.AuthTypeImpersonated}
	if err := mgr.SaveCredentials("robot", expired); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.GetValidCredentials(context.Background(), "robot"); !utils.HasCode(err, utils.ErrCodeAuthExpired) {
		t.Errorf("expected AUTH_EXPIRED, got %v", err)
	}
}
