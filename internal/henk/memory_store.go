package henk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	gkms "github.com/Laisky/go-utils/v6/crypto/kms"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/library/db/redis"
	"github.com/Laisky/henk-fabric/library/db/sql/kv"
)

const memoryKeyPrefix = "henk:memory:"

// plainSessionID matches ids usable verbatim as a key suffix. It excludes ':'
// so verbatim ids never collide with the hashed "h:" namespace.
var plainSessionID = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{1,128}$`)

// MemoryStore persists conversation memory per session.
type MemoryStore interface {
	// Load returns nil without error when the session has no memory yet.
	Load(ctx context.Context, sessionID string) (*fabric.ConversationMemory, error)
	Save(ctx context.Context, sessionID string, memory fabric.ConversationMemory) error
	Reset(ctx context.Context, sessionID string) error
}

// KVMemoryStore keeps each session's memory as one JSON string with a sliding TTL.
// kv is either redis or the sql kv table.
type KVMemoryStore struct {
	kv  redis.KV
	ttl time.Duration
	kms gkms.Interface
}

// KVMemoryOption configures a KVMemoryStore.
type KVMemoryOption func(*KVMemoryStore)

// WithMemoryEncryption seals every stored memory with kms, using the storage key as AAD.
func WithMemoryEncryption(kms gkms.Interface) KVMemoryOption {
	return func(s *KVMemoryStore) {
		s.kms = kms
	}
}

// NewKVMemoryStore constructs a memory store on top of kv.
func NewKVMemoryStore(client redis.KV, ttl time.Duration, opts ...KVMemoryOption) (*KVMemoryStore, error) {
	if client == nil {
		return nil, errors.New("kv client is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	store := &KVMemoryStore{kv: client, ttl: ttl}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Load implements MemoryStore.
func (s *KVMemoryStore) Load(ctx context.Context, sessionID string) (*fabric.ConversationMemory, error) {
	key, err := memoryKey(sessionID)
	if err != nil {
		return nil, err
	}

	payload, err := s.kv.GetItem(ctx, key)
	if err != nil {
		if redis.IsNil(err) || kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load memory of session %s", sessionID)
	}

	if s.kms != nil {
		if payload, err = s.open(ctx, key, payload); err != nil {
			return nil, errors.Wrapf(err, "open memory of session %s", sessionID)
		}
	}

	memory := new(fabric.ConversationMemory)
	if err := json.Unmarshal([]byte(payload), memory); err != nil {
		return nil, errors.Wrapf(err, "decode memory of session %s", sessionID)
	}
	return memory, nil
}

// Save implements MemoryStore.
func (s *KVMemoryStore) Save(ctx context.Context, sessionID string, memory fabric.ConversationMemory) error {
	key, err := memoryKey(sessionID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(memory)
	if err != nil {
		return errors.Wrap(err, "encode memory")
	}
	value := string(payload)
	if s.kms != nil {
		encrypted, err := s.kms.Encrypt(ctx, payload, []byte(key))
		if err != nil {
			return errors.Wrap(err, "encrypt memory")
		}
		if value, err = encrypted.MarshalToString(); err != nil {
			return errors.Wrap(err, "marshal encrypted memory")
		}
	}

	if err := s.kv.SetItem(ctx, key, value, s.ttl); err != nil {
		return errors.Wrapf(err, "save memory of session %s", sessionID)
	}
	return nil
}

func (s *KVMemoryStore) open(ctx context.Context, key, payload string) (string, error) {
	var encrypted gkms.EncryptedData
	if err := encrypted.UnmarshalFromString(payload); err != nil {
		return "", errors.Wrap(err, "unmarshal encrypted memory")
	}
	plaintext, err := s.kms.Decrypt(ctx, &encrypted, []byte(key))
	if err != nil {
		return "", errors.Wrap(err, "decrypt memory")
	}
	return string(plaintext), nil
}

// Reset implements MemoryStore.
func (s *KVMemoryStore) Reset(ctx context.Context, sessionID string) error {
	key, err := memoryKey(sessionID)
	if err != nil {
		return err
	}
	if err := s.kv.DelItem(ctx, key); err != nil {
		return errors.Wrapf(err, "reset memory of session %s", sessionID)
	}
	return nil
}

func memoryKey(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	if plainSessionID.MatchString(sessionID) {
		return memoryKeyPrefix + sessionID, nil
	}

	// emails, phone handles and free-form chat ids are hashed to fit the kv key charset
	sum := sha256.Sum256([]byte(sessionID))
	return memoryKeyPrefix + "h:" + hex.EncodeToString(sum[:]), nil
}

// LocalMemoryStore keeps memory in process. It is meant for the CLI and for
// single-instance deployments without redis.
type LocalMemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	items map[string]localMemoryItem
}

type localMemoryItem struct {
	memory    fabric.ConversationMemory
	expiresAt time.Time
}

// NewLocalMemoryStore constructs an in-process memory store.
func NewLocalMemoryStore(ttl time.Duration) *LocalMemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LocalMemoryStore{
		ttl:   ttl,
		clock: func() time.Time { return time.Now().UTC() },
		items: map[string]localMemoryItem{},
	}
}

// Load implements MemoryStore.
func (s *LocalMemoryStore) Load(_ context.Context, sessionID string) (*fabric.ConversationMemory, error) {
	key, err := memoryKey(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	if s.clock().After(item.expiresAt) {
		delete(s.items, key)
		return nil, nil
	}
	memory := item.memory.Clone()
	return &memory, nil
}

// Save implements MemoryStore.
func (s *LocalMemoryStore) Save(_ context.Context, sessionID string, memory fabric.ConversationMemory) error {
	key, err := memoryKey(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for k, item := range s.items {
		if now.After(item.expiresAt) {
			delete(s.items, k)
		}
	}
	s.items[key] = localMemoryItem{memory: memory.Clone(), expiresAt: now.Add(s.ttl)}
	return nil
}

// Reset implements MemoryStore.
func (s *LocalMemoryStore) Reset(_ context.Context, sessionID string) error {
	key, err := memoryKey(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
