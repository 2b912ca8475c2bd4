package auth

import (
	"reflect"
	"testing"
	"time"

	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/spf13/afero"
)

func TestEncryptedFileStorage(t *testing.T) {
	fs := afero.NewMemMapFs()
	storage, err := NewEncryptedFileStorageFs(fs, "/config")
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testData := []byte(`{"profile":"source","accessToken":"test-token"}`)

	if err := storage.Save("source", testData); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	credFile := "/config/credentials/source.enc"
	encryptedData, err := afero.ReadFile(fs, credFile)
	if err != nil {
		t.Fatalf("Failed to read encrypted file: %v", err)
	}
	if string(encryptedData) == string(testData) {
		t.Error("Data was not encrypted")
	}

	loaded, err := storage.Load("source")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match original. Got: %s, Want: %s", loaded, testData)
	}

	if err := storage.Delete("source"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if exists, _ := afero.Exists(fs, credFile); exists {
		t.Error("File was not deleted")
	}
	if _, err := storage.Load("source"); err == nil {
		t.Error("expected an error loading a deleted profile")
	}
}

func TestEncryptedFileStorage_KeyIsReused(t *testing.T) {
	fs := afero.NewMemMapFs()
	first, err := NewEncryptedFileStorageFs(fs, "/config")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save("dest", []byte("secret")); err != nil {
		t.Fatal(err)
	}

	second, err := NewEncryptedFileStorageFs(fs, "/config")
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := second.Load("dest")
	if err != nil {
		t.Fatalf("Load with a reopened storage failed: %v", err)
	}
	if string(loaded) != "secret" {
		t.Errorf("got %q", loaded)
	}
}

func TestPlainFileStorage(t *testing.T) {
	fs := afero.NewMemMapFs()
	storage := NewPlainFileStorageFs(fs, "/config")
	testData := []byte(`{"profile":"source","accessToken":"test-token"}`)

	if err := storage.Save("source", testData); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, err := afero.ReadFile(fs, "/config/credentials/source.json")
	if err != nil || string(raw) != string(testData) {
		t.Errorf("unexpected file content %q (%v)", raw, err)
	}

	loaded, err := storage.Load("source")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match. Got: %s, Want: %s", loaded, testData)
	}

	if err := storage.Delete("source"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	storage, err := NewEncryptedFileStorageFs(afero.NewMemMapFs(), "/config")
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testCases := []string{
		"simple text",
		`{"complex":"json","with":"values"}`,
		"text with special characters: üöä@#$%^&*()",
		"",
	}

	for i, testData := range testCases {
		encrypted, err := storage.encrypt([]byte(testData))
		if err != nil {
			t.Errorf("Test case %d: encrypt failed: %v", i, err)
			continue
		}
		decrypted, err := storage.decrypt(encrypted)
		if err != nil {
			t.Errorf("Test case %d: decrypt failed: %v", i, err)
			continue
		}
		if string(decrypted) != testData {
			t.Errorf("Test case %d: roundtrip failed. Got: %s, Want: %s", i, decrypted, testData)
		}
	}

	if _, err := storage.decrypt([]byte("short")); err == nil {
		t.Error("expected an error for a truncated ciphertext")
	}
}

func TestGetOrCreateEncryptionKey(t *testing.T) {
	fs := afero.NewMemMapFs()

	key1, err := getOrCreateEncryptionKey(fs, "/config")
	if err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	if len(key1) != 32 {
		t.Errorf("Key length is %d, expected 32", len(key1))
	}

	key2, err := getOrCreateEncryptionKey(fs, "/config")
	if err != nil {
		t.Fatalf("Failed to load key: %v", err)
	}
	if string(key1) != string(key2) {
		t.Error("Loaded key doesn't match created key")
	}
}

func TestManagerCredentialsRoundTrip(t *testing.T) {
	mgr := NewManagerWithOptions("/config", ManagerOptions{ForcePlainFile: true, Fs: afero.NewMemMapFs()})
	if mgr.GetStorageBackend() != "plain-file" || mgr.GetStorageWarning() == "" {
		t.Errorf("unexpected backend %s (%q)", mgr.GetStorageBackend(), mgr.GetStorageWarning())
	}

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	creds := &types.Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiryDate:   expiry,
		Scopes:       []string{"https://www.googleapis.com/auth/drive"},
		Type:         types.AuthTypeOAuth,
	}
	if err := mgr.SaveCredentials("source", creds); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	loaded, err := mgr.LoadCredentials("source")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if loaded.AccessToken != "access" || loaded.RefreshToken != "refresh" || !loaded.ExpiryDate.Equal(expiry) {
		t.Errorf("unexpected credentials %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.Scopes, creds.Scopes) {
		t.Errorf("scopes = %v", loaded.Scopes)
	}

	if err := mgr.DeleteCredentials("source"); err != nil {
		t.Fatalf("DeleteCredentials: %v", err)
	}
	if _, err := mgr.LoadCredentials("source"); err == nil {
		t.Error("expected deleted credentials to be gone")
	}
}

func TestManagerListProfiles(t *testing.T) {
	mgr := NewManagerWithOptions("/config", ManagerOptions{ForcePlainFile: true, Fs: afero.NewMemMapFs()})

	profiles, err := mgr.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("Expected 0 profiles, got %d", len(profiles))
	}

	for _, p := range []string{"dest", "source"} {
		if err := mgr.storage.Save(p, []byte(`{}`)); err != nil {
			t.Fatalf("Failed to save credentials: %v", err)
		}
	}

	profiles, err = mgr.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if !reflect.DeepEqual(profiles, []string{"dest", "source"}) {
		t.Errorf("profiles = %v", profiles)
	}
}
