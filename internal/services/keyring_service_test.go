package services

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringService_StoreAndGetRoundTrip(t *testing.T) {
	service := apiKeyring(nil)

	require.NoError(t, service.StoreApiKey("anthropic", "sk-ant-test"))

	key, err := service.GetApiKey("anthropic")
	assert.NoError(t, err)
	assert.Equal(t, "sk-ant-test", key)
}

func TestKeyringService_GetApiKey_MissingKeyIsNotAnError(t *testing.T) {
	service := apiKeyring(nil)

	key, err := service.GetApiKey("openai")
	assert.NoError(t, err)
	assert.Empty(t, key)
}

func TestKeyringService_StoreApiKey_Validation(t *testing.T) {
	service := apiKeyring(nil)

	assert.EqualError(t, service.StoreApiKey("  ", "sk-test"), "provider is required")
	assert.EqualError(t, service.StoreApiKey("anthropic", "   "), "API key is empty")
}

func TestKeyringService_DeleteApiKey(t *testing.T) {
	service := apiKeyring(map[string]string{"anthropic": "sk-ant-test"})

	assert.NoError(t, service.DeleteApiKey("anthropic"))

	key, err := service.GetApiKey("anthropic")
	assert.NoError(t, err)
	assert.Empty(t, key)

	assert.NoError(t, service.DeleteApiKey("anthropic"), "deleting an absent key is tolerated")
}

func TestKeyringService_ListApiKeys_NeverExposesValues(t *testing.T) {
	service := apiKeyring(map[string]string{
		"anthropic": "sk-ant-test",
		"google":    "AIza-test",
	})

	entries, err := service.ListApiKeys()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var providers []string
	for _, e := range entries {
		providers = append(providers, e["provider"])
		for _, v := range e {
			assert.NotContains(t, v, "sk-ant-test")
			assert.NotContains(t, v, "AIza-test")
		}
	}
	assert.ElementsMatch(t, []string{"anthropic", "google"}, providers)
}

func TestKeyringService_OpenFailurePropagates(t *testing.T) {
	service := &KeyringService{openRing: func() (keyring.Keyring, error) {
		return nil, assert.AnError
	}}

	_, err := service.GetApiKey("anthropic")
	assert.ErrorIs(t, err, assert.AnError)
}
