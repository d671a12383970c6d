package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the system keyring.
const keyringService = "penf-ner"

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// PasswordProvider looks up and stores a database password for an account.
type PasswordProvider interface {
	// Get returns the password for account, or ErrNoPassword.
	Get(account string) (string, error)

	// Set stores password for account.
	Set(account, password string) error

	// Delete removes the stored password. Deleting a missing one is not an error.
	Delete(account string) error

	// Description returns a human-readable description of the storage mechanism.
	Description() string
}

// KeyringProvider stores passwords in the system keyring
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringProvider struct {
	mu      sync.Mutex
	service string
}

// NewKeyringProvider creates a new KeyringProvider.
func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{service: keyringService}
}

// Get retrieves the password from the system keyring.
func (p *KeyringProvider) Get(account string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	password, err := keyring.Get(p.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoPassword
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return password, nil
}

// Set stores the password in the system keyring.
func (p *KeyringProvider) Set(account, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := keyring.Set(p.service, account, password); err != nil {
		return fmt.Errorf("%w: storing password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Delete removes the password from the system keyring.
func (p *KeyringProvider) Delete(account string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := keyring.Delete(p.service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: deleting password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description returns a description of this provider.
func (p *KeyringProvider) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// EnvProvider reads the password from an environment variable. It ignores the
// account and cannot store anything.
// This is primarily for containers and CI environments.
type EnvProvider struct {
	envVar string
}

// NewEnvProvider creates a new EnvProvider that reads the given env var.
func NewEnvProvider(envVar string) *EnvProvider {
	return &EnvProvider{envVar: envVar}
}

// Get returns the value of the environment variable.
func (p *EnvProvider) Get(string) (string, error) {
	v, ok := os.LookupEnv(p.envVar)
	if !ok {
		return "", ErrNoPassword
	}
	return v, nil
}

// Set is not supported for environment-based passwords.
func (p *EnvProvider) Set(string, string) error {
	return fmt.Errorf("cannot store a password in %s", p.envVar)
}

// Delete is not supported for environment-based passwords.
func (p *EnvProvider) Delete(string) error {
	return fmt.Errorf("cannot delete the password in %s", p.envVar)
}

// Description returns a description of this provider.
func (p *EnvProvider) Description() string {
	return fmt.Sprintf("Environment variable (%s)", p.envVar)
}

// IsKeyringAvailable checks if the system keyring is accessible.
func IsKeyringAvailable() bool {
	_, err := NewKeyringProvider().Get("availability-check")
	return err == nil || errors.Is(err, ErrNoPassword)
}
