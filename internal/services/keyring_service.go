package services

import (
	"errors"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const keyringServiceName = "stepweave"

// KeyringService stores provider API keys in the OS credential store.
type KeyringService struct {
	mu   sync.Mutex
	ring keyring.Keyring

	// openRing is swappable so tests can back the service with an
	// in-memory keyring.
	openRing func() (keyring.Keyring, error)
}

func NewKeyringService() *KeyringService {
	return &KeyringService{
		openRing: func() (keyring.Keyring, error) {
			return keyring.Open(keyring.Config{ServiceName: keyringServiceName})
		},
	}
}

func (s *KeyringService) getRing() (keyring.Keyring, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring != nil {
		return s.ring, nil
	}
	ring, err := s.openRing()
	if err != nil {
		return nil, err
	}
	s.ring = ring
	return ring, nil
}

func (s *KeyringService) StoreApiKey(provider string, apiKey string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("API key is empty")
	}

	ring, err := s.getRing()
	if err != nil {
		return err
	}
	return ring.Set(keyring.Item{
		Key:         provider,
		Data:        []byte(apiKey),
		Label:       provider + " API key",
		Description: "API key for " + provider + " used by Stepweave",
	})
}

// GetApiKey returns the stored key for a provider, or "" when none is stored.
func (s *KeyringService) GetApiKey(provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("provider is required")
	}

	ring, err := s.getRing()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(provider)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(item.Data), nil
}

func (s *KeyringService) DeleteApiKey(provider string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return errors.New("provider is required")
	}

	ring, err := s.getRing()
	if err != nil {
		return err
	}
	if err := ring.Remove(provider); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// ListApiKeys enumerates providers with a stored key. Values never leave the
// credential store; only provider metadata is returned.
func (s *KeyringService) ListApiKeys() ([]map[string]string, error) {
	ring, err := s.getRing()
	if err != nil {
		return nil, err
	}
	keys, err := ring.Keys()
	if err != nil {
		return nil, err
	}

	var results []map[string]string
	for _, provider := range keys {
		results = append(results, map[string]string{
			"provider":    provider,
			"label":       provider + " API key",
			"description": "API key for " + provider + " used by Stepweave",
		})
	}
	return results, nil
}
