package throttle

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewClientThrottleValidation(t *testing.T) {
	_, err := NewClientThrottle(ClientThrottleCfg{})
	require.Error(t, err)

	_, err = NewClientThrottle(ClientThrottleCfg{
		TotalNPerSec: 10, TotalBurst: 5,
		EachClientNPerSec: 1, EachClientBurst: 1,
	})
	require.ErrorContains(t, err, "burst")
}

func TestClientThrottleAllow(t *testing.T) {
	th, err := NewClientThrottle(ClientThrottleCfg{
		TotalNPerSec: 3, TotalBurst: 3,
		EachClientNPerSec: 1, EachClientBurst: 2,
	})
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	require.True(t, th.Allow("10.0.0.1"))
	require.True(t, th.Allow("10.0.0.1"))
	require.False(t, th.Allow("10.0.0.1"), "client burst is spent")

	require.True(t, th.Allow("10.0.0.2"))
	require.False(t, th.Allow("10.0.0.3"), "total burst is spent")

	now = now.Add(time.Second)
	require.True(t, th.Allow("10.0.0.1"))
}

func TestClientThrottlePrunesIdleClients(t *testing.T) {
	th, err := NewClientThrottle(ClientThrottleCfg{
		TotalNPerSec: 1e6, TotalBurst: 1e6,
		EachClientNPerSec: 1, EachClientBurst: 1,
	})
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	th.Allow("idle")
	now = now.Add(clientIdleTTL + time.Second)
	th.pruneLocked(now)
	require.NotContains(t, th.clients, "idle")
}

func TestClientThrottleEvictsOldestWhenNoneIdle(t *testing.T) {
	th, err := NewClientThrottle(ClientThrottleCfg{
		TotalNPerSec: 1e6, TotalBurst: 1e6,
		EachClientNPerSec: 1, EachClientBurst: 1,
	})
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	for i := 0; i < clientPruneAfter; i++ {
		th.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		now = now.Add(time.Millisecond)
	}
	require.Len(t, th.clients, clientPruneAfter)

	require.True(t, th.Allow("192.168.1.1"))
	require.Len(t, th.clients, clientPruneAfter)
	require.NotContains(t, th.clients, "10.0.0.0", "least recently seen client is evicted")
	require.Contains(t, th.clients, "10.0.0.1")
	require.Contains(t, th.clients, "192.168.1.1")
}
