package kms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewMemoryKMSUsesMaxKEKID verifies the largest KEK ID is used for new encryptions.
func TestNewMemoryKMSUsesMaxKEKID(t *testing.T) {
	client, err := NewMemoryKMS(Settings{KEKs: map[uint16]string{
		2: "this-is-a-long-secret-for-kek-id-2",
		7: "this-is-a-long-secret-for-kek-id-7",
	}})
	require.NoError(t, err)

	encrypted, err := client.Encrypt(context.Background(), []byte(`{"colors":["navy"]}`), []byte("henk:memory:abc"))
	require.NoError(t, err)
	require.Equal(t, uint16(7), encrypted.KekID)

	plaintext, err := client.Decrypt(context.Background(), encrypted, []byte("henk:memory:abc"))
	require.NoError(t, err)
	require.Equal(t, `{"colors":["navy"]}`, string(plaintext))
}

func TestParseKEKs(t *testing.T) {
	settings, err := parseKEKs(map[string]any{
		"1": "this-is-a-long-secret-for-kek-id-1",
		"3": "this-is-a-long-secret-for-kek-id-3",
	})
	require.NoError(t, err)
	require.True(t, settings.Enabled())
	require.Equal(t, "this-is-a-long-secret-for-kek-id-3", settings.KEKs[3])

	settings, err = parseKEKs(nil)
	require.NoError(t, err)
	require.False(t, settings.Enabled())

	_, err = parseKEKs(map[string]any{"primary": "this-is-a-long-secret"})
	require.Error(t, err)
	_, err = parseKEKs(map[string]any{"0": "this-is-a-long-secret"})
	require.Error(t, err)
}

// TestNewMemoryKMSRejectsInvalidInput verifies invalid KEK input is rejected.
func TestNewMemoryKMSRejectsInvalidInput(t *testing.T) {
	_, err := NewMemoryKMS(Settings{})
	require.Error(t, err)

	_, err = NewMemoryKMS(Settings{KEKs: map[uint16]string{1: "short-key"}})
	require.Error(t, err)
}
