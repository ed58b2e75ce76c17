package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "fairaudit"
	keyringUser    = "github_token"
	tokenFileName  = "github_token"
	fileMode       = 0600
)

// ErrNoToken is returned when no token is stored.
var ErrNoToken = errors.New("no access token stored")

// TokenStore keeps the GitHub access token in the OS keychain and falls
// back to a file in Dir when the keychain is unavailable.
type TokenStore struct {
	Dir string
}

func (s *TokenStore) filePath() string {
	return filepath.Join(s.Dir, tokenFileName)
}

// Save stores the token.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		if err := os.WriteFile(s.filePath(), []byte(token), fileMode); err != nil {
			return fmt.Errorf("writing token file: %w", err)
		}
		return nil
	}

	// keychain wins, drop any file copy
	os.Remove(s.filePath())
	return nil
}

// Get returns the stored token, preferring the keychain.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading token file %s: %w", s.filePath(), err)
	}

	token = strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Clear removes the token from both the keychain and the file.
func (s *TokenStore) Clear() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
