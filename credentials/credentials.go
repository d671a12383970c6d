// Package credentials resolves the knowledge base database password for penf-ner.
// Passwords never live in the config file. PENF_NER_KB_DB_PASSWORD is checked
// first (containers and CI), then the system keyring under the service
// "penf-ner" and the account "user@host:port/database":
//   - macOS: Keychain
//   - Windows: Credential Manager
//   - Linux: Secret Service (libsecret)
package credentials

import (
	"errors"
	"fmt"

	"github.com/otherjamesbrown/penf-ner/pkg/db"
)

// EnvPassword is the environment variable checked before the keyring.
const EnvPassword = db.EnvPrefix + "PASSWORD"

// ErrNoPassword is returned when no provider holds a password.
var ErrNoPassword = errors.New("no database password stored")

// Account returns the keyring account name for a database.
func Account(cfg *db.Config) string {
	return fmt.Sprintf("%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
}

// Store looks passwords up through a chain of providers. The first provider
// that has one wins; writes go to the last provider.
type Store struct {
	providers []PasswordProvider
}

// NewStore creates a Store over providers, in lookup order.
func NewStore(providers ...PasswordProvider) *Store {
	return &Store{providers: providers}
}

// DefaultStore checks the environment variable, then the system keyring.
func DefaultStore() *Store {
	return NewStore(NewEnvProvider(EnvPassword), NewKeyringProvider())
}

// Password returns the password for account and the provider that held it.
// A keyring that cannot be reached is skipped if an earlier provider answered;
// otherwise its error is returned.
func (s *Store) Password(account string) (string, string, error) {
	var lastErr error
	for _, p := range s.providers {
		password, err := p.Get(account)
		if err == nil {
			return password, p.Description(), nil
		}
		if !errors.Is(err, ErrNoPassword) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", "", lastErr
	}
	return "", "", fmt.Errorf("%w for %s", ErrNoPassword, account)
}

// Save stores password for account in the writable provider.
func (s *Store) Save(account, password string) error {
	p, err := s.writable()
	if err != nil {
		return err
	}
	return p.Set(account, password)
}

// Delete removes the stored password for account.
func (s *Store) Delete(account string) error {
	p, err := s.writable()
	if err != nil {
		return err
	}
	return p.Delete(account)
}

func (s *Store) writable() (PasswordProvider, error) {
	if len(s.providers) == 0 {
		return nil, errors.New("no password provider configured")
	}
	return s.providers[len(s.providers)-1], nil
}

// ApplyPassword fills cfg.Password from the store. A missing password is not
// an error: the server may trust the connection.
func ApplyPassword(s *Store, cfg *db.Config) (string, error) {
	password, source, err := s.Password(Account(cfg))
	if err != nil {
		if errors.Is(err, ErrNoPassword) {
			return "", nil
		}
		return "", err
	}
	cfg.Password = password
	return source, nil
}

// MaskCredential masks a secret for display, keeping the first and last two characters.
func MaskCredential(cred string) string {
	if len(cred) <= 6 {
		return "****"
	}
	return cred[:2] + "****" + cred[len(cred)-2:]
}
