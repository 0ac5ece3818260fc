package henk

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/library/kms"
	"github.com/Laisky/henk-fabric/library/db/sql/kv"
)

func TestKVMemoryStoreOnSQLTable(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:henk-memory?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	table, err := kv.NewKv(ctx, db, kv.WithTableName("henk_memory"))
	require.NoError(t, err)

	store, err := NewKVMemoryStore(table, time.Hour)
	require.NoError(t, err)

	memory, err := store.Load(ctx, "0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60")
	require.NoError(t, err)
	require.Nil(t, memory)

	require.NoError(t, store.Save(ctx, "0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60", fabric.ConversationMemory{
		Colors:    []string{"grey", "navy"},
		Materials: []string{"wool"},
	}))

	memory, err = store.Load(ctx, "0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60")
	require.NoError(t, err)
	require.Equal(t, []string{"grey", "navy"}, memory.Colors)
	require.Equal(t, []string{"wool"}, memory.Materials)

	require.NoError(t, store.Reset(ctx, "0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60"))
	memory, err = store.Load(ctx, "0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60")
	require.NoError(t, err)
	require.Nil(t, memory)
}

func TestKVMemoryStoreEncrypted(t *testing.T) {
	t.Parallel()

	sealer, err := kms.NewMemoryKMS(kms.Settings{KEKs: map[uint16]string{
		1: "conversation-memory-secret-1",
	}})
	require.NoError(t, err)

	client := newMemoryKV()
	store, err := NewKVMemoryStore(client, time.Hour, WithMemoryEncryption(sealer))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", fabric.ConversationMemory{Colors: []string{"navy"}}))
	require.NotContains(t, client.items["henk:memory:abc"], "navy")

	memory, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, []string{"navy"}, memory.Colors)

	client.items["henk:memory:broken"] = "not sealed"
	_, err = store.Load(ctx, "broken")
	require.Error(t, err)
}

func TestKVMemoryStoreOnSQLTableWithFreeFormSessionIDs(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:henk-memory-free-form?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	table, err := kv.NewKv(ctx, db, kv.WithTableName("henk_memory"))
	require.NoError(t, err)

	store, err := NewKVMemoryStore(table, time.Hour)
	require.NoError(t, err)

	sessions := map[string]string{
		"anna@example.com":     "navy",
		"chat 42":              "grey",
		"whatsapp/+4917612345": "olive",
	}
	for sessionID, color := range sessions {
		require.NoError(t, store.Save(ctx, sessionID, fabric.ConversationMemory{Colors: []string{color}}), sessionID)
	}
	for sessionID, color := range sessions {
		memory, err := store.Load(ctx, sessionID)
		require.NoError(t, err, sessionID)
		require.NotNil(t, memory, sessionID)
		require.Equal(t, []string{color}, memory.Colors, sessionID)
	}

	require.NoError(t, store.Reset(ctx, "chat 42"))
	memory, err := store.Load(ctx, "chat 42")
	require.NoError(t, err)
	require.Nil(t, memory)

	memory, err = store.Load(ctx, "anna@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"navy"}, memory.Colors)
}

func TestMemoryKey(t *testing.T) {
	t.Parallel()

	key, err := memoryKey(" abc ")
	require.NoError(t, err)
	require.Equal(t, "henk:memory:abc", key)

	key, err = memoryKey("0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60")
	require.NoError(t, err)
	require.Equal(t, "henk:memory:0190c9a2-7d1e-7c4e-9f5a-3b1d2c4e5f60", key)

	hashed, err := memoryKey("anna@example.com")
	require.NoError(t, err)
	require.Regexp(t, `^henk:memory:h:[0-9a-f]{64}$`, hashed)

	other, err := memoryKey("anna@example.org")
	require.NoError(t, err)
	require.NotEqual(t, hashed, other)

	_, err = memoryKey("  ")
	require.Error(t, err)
}
