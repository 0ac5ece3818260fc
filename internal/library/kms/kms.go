// Package kms builds the in-memory KMS that seals conversation memory at rest.
package kms

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gkms "github.com/Laisky/go-utils/v6/crypto/kms"
	"github.com/Laisky/go-utils/v6/crypto/kms/mem"
)

// Settings describes KEK inputs for building an internal KMS instance.
type Settings struct {
	// KEKs maps KEK ID to its raw secret string.
	KEKs map[uint16]string
}

// Enabled reports whether any KEK is configured.
func (s Settings) Enabled() bool {
	return len(s.KEKs) > 0
}

// LoadSettingsFromConfig reads settings.fabric.memory_encryption.keks, a map of KEK id to secret.
func LoadSettingsFromConfig() (Settings, error) {
	raw := gconfig.Shared.GetStringMap("settings.fabric.memory_encryption.keks")
	return parseKEKs(raw)
}

func parseKEKs(raw map[string]any) (Settings, error) {
	settings := Settings{KEKs: make(map[uint16]string, len(raw))}
	for rawID, rawSecret := range raw {
		id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 16)
		if err != nil || id == 0 {
			return Settings{}, errors.Errorf("kek id %q must be an integer in 1..65535", rawID)
		}
		secret, ok := rawSecret.(string)
		if !ok {
			secret = fmt.Sprint(rawSecret)
		}
		settings.KEKs[uint16(id)] = secret
	}

	return settings, nil
}

// NewMemoryKMS constructs an in-memory KMS from multiple KEKs.
//
// Each secret is hashed to 32 bytes. New encryptions use the KEK with the
// largest ID, older ids stay readable so keys can be rotated.
func NewMemoryKMS(settings Settings) (gkms.Interface, error) {
	if !settings.Enabled() {
		return nil, errors.New("at least one kek is required")
	}

	hashedKEKs := make(map[uint16][]byte, len(settings.KEKs))
	for kekID, rawSecret := range settings.KEKs {
		secret := strings.TrimSpace(rawSecret)
		if len(secret) <= 16 {
			return nil, errors.Errorf("kek %d must be longer than 16 characters", kekID)
		}

		sum := sha256.Sum256([]byte(secret))
		hashedKEKs[kekID] = sum[:]
	}

	kmsClient, err := mem.New(hashedKEKs)
	if err != nil {
		return nil, errors.Wrap(err, "init memory kms")
	}

	return kmsClient, nil
}
