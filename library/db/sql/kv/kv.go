// Package kv is a small expiring key/value table on top of database/sql.
// It lets the conversation memory live in the catalog database when redis is not deployed.
package kv

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	errors "github.com/Laisky/errors/v2"
)

var (
	regexpKey       = regexp.MustCompile(`^[a-zA-Z0-9_:.\-]{1,200}$`)
	regexpTableName = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)
	errKeyNotFound  = errors.New("key not found")
	errKeyExpired   = errors.New("key expired")
)

const maxTTL = 30 * 24 * time.Hour

// KvItem is a kv doc
type KvItem struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpireAt  time.Time `json:"expire_at"`
}

// Kv is a key-value store for postgres and sqlite
type Kv struct {
	opt *option
	db  *sql.DB
}

type option struct {
	tableName string
}

// Option is a function that configures the kv
type Option func(*option) error

func applyOpts(opts ...Option) (*option, error) {
	// fill default
	o := &option{
		tableName: "henk_kv",
	}

	// apply opts
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return o, nil
}

// WithTableName is a option to set the table name
func WithTableName(tableName string) Option {
	return func(o *option) error {
		if !regexpTableName.MatchString(tableName) {
			return errors.Errorf("invalid table name: %s", tableName)
		}
		o.tableName = tableName
		return nil
	}
}

// NewKv create a new kv, creating its table when missing.
func NewKv(ctx context.Context, db *sql.DB, opts ...Option) (*Kv, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	opt, err := applyOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "apply opts")
	}

	kv := &Kv{
		opt: opt,
		db:  db,
	}

	if err := kv.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setup kv")
	}

	return kv, nil
}

func (kv *Kv) setup(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS ` + kv.opt.tableName + ` (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  expire_at TIMESTAMP NOT NULL
)`

	if _, err := kv.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "create kv table")
	}

	return nil
}

func validKey(key string) error {
	if !regexpKey.MatchString(key) {
		return errors.Errorf("invalid key: %s", key)
	}
	return nil
}

// IsNotFound reports whether err means the key is missing or expired.
func IsNotFound(err error) bool {
	return errors.Is(err, errKeyNotFound) || errors.Is(err, errKeyExpired)
}

// SetItem stores the key-value pair with a time-to-live duration.
func (kv *Kv) SetItem(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.Errorf("ttl must be greater than 0: %s", ttl)
	}
	if ttl > maxTTL {
		return errors.Errorf("ttl is too far in the future: %s", ttl)
	}
	if err := validKey(key); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now().UTC()
	stmt := `
INSERT INTO ` + kv.opt.tableName + ` (key, value, created_at, expire_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT(key)
DO UPDATE SET value = EXCLUDED.value, expire_at = EXCLUDED.expire_at`

	if _, err := kv.db.ExecContext(ctx, stmt, key, value, now, now.Add(ttl)); err != nil {
		return errors.Wrap(err, "upsert kv item")
	}

	return nil
}

// Get retrieves the key's document. An expired record is deleted and reported as not found.
func (kv *Kv) Get(ctx context.Context, key string) (*KvItem, error) {
	var doc KvItem
	stmt := `SELECT key, value, created_at, expire_at FROM ` + kv.opt.tableName + ` WHERE key = $1 LIMIT 1`
	err := kv.db.QueryRowContext(ctx, stmt, key).Scan(&doc.Key, &doc.Value, &doc.CreatedAt, &doc.ExpireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errKeyNotFound, "key %s", key)
		}
		return nil, errors.Wrap(err, "failed to get key")
	}

	if !doc.ExpireAt.IsZero() && time.Now().After(doc.ExpireAt) {
		_ = kv.DelItem(ctx, key)
		return nil, errors.Wrapf(errKeyExpired, "key %s", key)
	}
	return &doc, nil
}

// GetItem returns the stored value of key.
func (kv *Kv) GetItem(ctx context.Context, key string) (string, error) {
	doc, err := kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return doc.Value, nil
}

// DelItem removes the key from the store.
func (kv *Kv) DelItem(ctx context.Context, key string) error {
	stmt := `DELETE FROM ` + kv.opt.tableName + ` WHERE key = $1`
	if _, err := kv.db.ExecContext(ctx, stmt, key); err != nil {
		return errors.Wrap(err, "failed to delete key")
	}
	return nil
}

// PurgeExpired deletes every expired record and returns how many were removed.
func (kv *Kv) PurgeExpired(ctx context.Context) (int64, error) {
	stmt := `DELETE FROM ` + kv.opt.tableName + ` WHERE expire_at < $1`
	result, err := kv.db.ExecContext(ctx, stmt, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge expired keys")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count purged keys")
	}
	return n, nil
}
