// Package throttle limits request rates in total and per client.
package throttle

import (
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"golang.org/x/time/rate"
)

const (
	clientIdleTTL    = 10 * time.Minute
	clientPruneAfter = 4096
)

// ClientThrottleCfg configuration for ClientThrottle
type ClientThrottleCfg struct {
	TotalNPerSec, TotalBurst           float64
	EachClientNPerSec, EachClientBurst float64
}

// ClientThrottle throttles requests globally and for each client key
type ClientThrottle struct {
	sync.Mutex
	cfg     ClientThrottleCfg
	total   *rate.Limiter
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientThrottle create new ClientThrottle
func NewClientThrottle(cfg ClientThrottleCfg) (*ClientThrottle, error) {
	if cfg.TotalNPerSec <= 0 || cfg.EachClientNPerSec <= 0 {
		return nil, errors.New("NPerSec must bigger than 0")
	}
	if cfg.TotalBurst < cfg.TotalNPerSec || cfg.EachClientBurst < cfg.EachClientNPerSec {
		return nil, errors.New("burst must not be smaller than NPerSec")
	}

	return &ClientThrottle{
		cfg:     cfg,
		total:   rate.NewLimiter(rate.Limit(cfg.TotalNPerSec), int(cfg.TotalBurst)),
		clients: map[string]*clientLimiter{},
		now:     time.Now,
	}, nil
}

// Allow reports whether client may send one more request now.
// A request rejected by the client's own limit does not consume the total budget.
func (t *ClientThrottle) Allow(client string) bool {
	t.Lock()
	now := t.now()
	cl, ok := t.clients[client]
	if !ok {
		if len(t.clients) >= clientPruneAfter {
			t.pruneLocked(now)
		}
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(t.cfg.EachClientNPerSec), int(t.cfg.EachClientBurst)),
		}
		t.clients[client] = cl
	}
	cl.lastSeen = now
	t.Unlock()

	if !cl.limiter.AllowN(now, 1) {
		return false
	}
	return t.total.AllowN(now, 1)
}

// pruneLocked drops idle clients. When none are idle it evicts the least
// recently seen one, so the map never exceeds clientPruneAfter entries.
func (t *ClientThrottle) pruneLocked(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
	)
	for key, cl := range t.clients {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(t.clients, key)
			continue
		}
		if oldestKey == "" || cl.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen = key, cl.lastSeen
		}
	}

	if len(t.clients) >= clientPruneAfter {
		delete(t.clients, oldestKey)
	}
}
