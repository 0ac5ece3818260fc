package kv

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func setupTestKv(t *testing.T) *Kv {
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", t.Name(), time.Now().UTC().UnixNano())
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "failed to connect to in-memory db")
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	kvInstance, err := NewKv(context.Background(), db, WithTableName("test_kv"))
	require.NoError(t, err, "failed to create kv instance")
	return kvInstance
}

func TestSetAndGet(t *testing.T) {
	kvInstance := setupTestKv(t)
	ctx := context.Background()

	key, value := "henk:memory:0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60", `{"colors":["navy"]}`
	require.NoError(t, kvInstance.SetItem(ctx, key, value, 5*time.Second))

	got, err := kvInstance.GetItem(ctx, key)
	require.NoError(t, err)
	require.Equal(t, value, got)

	require.NoError(t, kvInstance.SetItem(ctx, key, `{"colors":["grey"]}`, 5*time.Second))
	got, err = kvInstance.GetItem(ctx, key)
	require.NoError(t, err)
	require.Equal(t, `{"colors":["grey"]}`, got)
}

func TestKeyExpiration(t *testing.T) {
	kvInstance := setupTestKv(t)
	ctx := context.Background()

	key := "expirekey"
	require.NoError(t, kvInstance.SetItem(ctx, key, "expirevalue", 1*time.Second))

	// Wait for the key to expire.
	time.Sleep(2 * time.Second)
	_, err := kvInstance.GetItem(ctx, key)
	require.Error(t, err, "key should be expired")
	require.True(t, IsNotFound(err))
}

func TestDelAndMissing(t *testing.T) {
	kvInstance := setupTestKv(t)
	ctx := context.Background()

	_, err := kvInstance.GetItem(ctx, "missing")
	require.True(t, IsNotFound(err))

	require.NoError(t, kvInstance.SetItem(ctx, "existkey", "existvalue", 10*time.Second))
	require.NoError(t, kvInstance.DelItem(ctx, "existkey"))
	_, err = kvInstance.GetItem(ctx, "existkey")
	require.True(t, IsNotFound(err))
}

func TestSetItemValidation(t *testing.T) {
	kvInstance := setupTestKv(t)
	ctx := context.Background()

	require.Error(t, kvInstance.SetItem(ctx, "key with spaces", "v", time.Second))
	require.Error(t, kvInstance.SetItem(ctx, "k", "v", 0))
	require.Error(t, kvInstance.SetItem(ctx, "k", "v", 31*24*time.Hour))
	_, err := NewKv(ctx, nil)
	require.Error(t, err)
	_, err = NewKv(ctx, &sql.DB{}, WithTableName("bad-name"))
	require.Error(t, err)
}
