package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// StorageBackend defines the interface for credential storage
type StorageBackend interface {
	Save(profile string, data []byte) error
	Load(profile string) ([]byte, error)
	Delete(profile string) error
	Name() string
}

// KeyringStorage uses system keyring for credential storage
type KeyringStorage struct {
	serviceName string
}

// NewKeyringStorage creates a keyring storage backend
func NewKeyringStorage(serviceName string) *KeyringStorage {
	return &KeyringStorage{
		serviceName: serviceName,
	}
}

func (s *KeyringStorage) Save(profile string, data []byte) error {
	return saveToKeyring(s.serviceName, profile, string(data))
}

func (s *KeyringStorage) Load(profile string) ([]byte, error) {
	data, err := loadFromKeyring(s.serviceName, profile)
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *KeyringStorage) Delete(profile string) error {
	return deleteFromKeyring(s.serviceName, profile)
}

func (s *KeyringStorage) Name() string {
	return "system-keyring"
}

// fileStorage keeps one file per profile under baseDir/credentials
type fileStorage struct {
	fs      afero.Fs
	baseDir string
	ext     string
	seal    func([]byte) ([]byte, error)
	open    func([]byte) ([]byte, error)
}

func (s *fileStorage) path(profile string) string {
	return filepath.Join(s.baseDir, "credentials", profile+s.ext)
}

func (s *fileStorage) Save(profile string, data []byte) error {
	sealed, err := s.seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	credFile := s.path(profile)
	if err := s.fs.MkdirAll(filepath.Dir(credFile), 0700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, credFile, sealed, 0600)
}

func (s *fileStorage) Load(profile string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(profile))
	if err != nil {
		return nil, fmt.Errorf("credentials not found for profile '%s'", profile)
	}
	return s.open(data)
}

func (s *fileStorage) Delete(profile string) error {
	return s.fs.Remove(s.path(profile))
}

// EncryptedFileStorage stores credentials AES-GCM encrypted, keyed by a
// random key kept next to them
type EncryptedFileStorage struct {
	fileStorage
	key []byte
}

// NewEncryptedFileStorage creates an encrypted file storage backend on the OS filesystem
func NewEncryptedFileStorage(baseDir string) (*EncryptedFileStorage, error) {
	return NewEncryptedFileStorageFs(afero.NewOsFs(), baseDir)
}

// NewEncryptedFileStorageFs creates an encrypted file storage backend on fs
func NewEncryptedFileStorageFs(fs afero.Fs, baseDir string) (*EncryptedFileStorage, error) {
	key, err := getOrCreateEncryptionKey(fs, baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}

	s := &EncryptedFileStorage{key: key}
	s.fileStorage = fileStorage{fs: fs, baseDir: baseDir, ext: ".enc", seal: s.encrypt, open: s.decrypt}
	return s, nil
}

func (s *EncryptedFileStorage) Name() string {
	return "encrypted-file"
}

func (s *EncryptedFileStorage) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *EncryptedFileStorage) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *EncryptedFileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("invalid ciphertext")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	return plaintext, nil
}

// PlainFileStorage stores credentials in plain JSON files (development only)
type PlainFileStorage struct {
	fileStorage
}

// NewPlainFileStorage creates a plain file storage backend on the OS filesystem
func NewPlainFileStorage(baseDir string) *PlainFileStorage {
	return NewPlainFileStorageFs(afero.NewOsFs(), baseDir)
}

// NewPlainFileStorageFs creates a plain file storage backend on fs
func NewPlainFileStorageFs(fs afero.Fs, baseDir string) *PlainFileStorage {
	same := func(b []byte) ([]byte, error) { return b, nil }
	return &PlainFileStorage{fileStorage{fs: fs, baseDir: baseDir, ext: ".json", seal: same, open: same}}
}

func (s *PlainFileStorage) Name() string {
	return "plain-file"
}

func getOrCreateEncryptionKey(fs afero.Fs, baseDir string) ([]byte, error) {
	keyFile := filepath.Join(baseDir, ".keyfile")

	if data, err := afero.ReadFile(fs, keyFile); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err == nil && len(key) == 32 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := afero.WriteFile(fs, keyFile, []byte(encoded), 0600); err != nil {
		return nil, err
	}
	return key, nil
}

// ListProfiles lists all stored credential profiles, sorted
func (m *Manager) ListProfiles() ([]string, error) {
	if m.useKeyring {
		// The keyring cannot be enumerated, so profiles are tracked in a file
		return m.readProfileList()
	}

	entries, err := afero.ReadDir(m.fs(), filepath.Join(m.configDir, "credentials"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	profiles := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext := filepath.Ext(name); ext == ".json" || ext == ".enc" {
			profiles = append(profiles, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

func (m *Manager) fs() afero.Fs {
	switch s := m.storage.(type) {
	case *EncryptedFileStorage:
		return s.fs
	case *PlainFileStorage:
		return s.fs
	}
	return afero.NewOsFs()
}

func (m *Manager) profileListPath() string {
	return filepath.Join(m.configDir, "profiles.json")
}

func (m *Manager) readProfileList() ([]string, error) {
	data, err := afero.ReadFile(m.fs(), m.profileListPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var profiles []string
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, err
	}
	sort.Strings(profiles)
	return profiles, nil
}

func (m *Manager) writeProfileList(profiles []string) error {
	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	if err := m.fs().MkdirAll(m.configDir, 0700); err != nil {
		return err
	}
	return afero.WriteFile(m.fs(), m.profileListPath(), data, 0600)
}

// addProfileToList records a keyring profile
func (m *Manager) addProfileToList(profile string) error {
	if !m.useKeyring {
		return nil
	}
	profiles, err := m.readProfileList()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p == profile {
			return nil
		}
	}
	return m.writeProfileList(append(profiles, profile))
}

// removeProfileFromList forgets a keyring profile
func (m *Manager) removeProfileFromList(profile string) error {
	if !m.useKeyring {
		return nil
	}
	profiles, err := m.readProfileList()
	if err != nil {
		return err
	}
	updated := []string{}
	for _, p := range profiles {
		if p != profile {
			updated = append(updated, p)
		}
	}
	return m.writeProfileList(updated)
}
