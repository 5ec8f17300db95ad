package secret

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	Service = "copytoask"
	Account = "openai_api_key"
)

// Store persists the API key outside of config files.
type Store interface {
	Get() (string, error)
	Set(key string) error
	Delete() error
}

// ErrNotFound is returned by Get when no key has been saved.
var ErrNotFound = errors.New("api key not found in keyring")

// Keyring stores the key in the OS credential store.
type Keyring struct {
	Service string
	Account string
}

func NewKeyring() Keyring {
	return Keyring{Service: Service, Account: Account}
}

func (k Keyring) Get() (string, error) {
	v, err := keyring.Get(k.Service, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring read failed: %w", err)
	}
	return strings.TrimSpace(v), nil
}

func (k Keyring) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	if err := keyring.Set(k.Service, k.Account, key); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}
	return nil
}

func (k Keyring) Delete() error {
	err := keyring.Delete(k.Service, k.Account)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("keyring delete failed: %w", err)
}
