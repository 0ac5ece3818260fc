package henk

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/library/log"
)

// Searcher is the subset of fabric.Engine the advisor needs.
type Searcher interface {
	Search(ctx context.Context, criteria fabric.FabricSearchCriteria, topK int) ([]fabric.ScoredFabric, error)
}

const sessionLockStripes = 64

// Advisor runs one conversation turn: remember, search, pick a pair.
type Advisor struct {
	builder  *fabric.CriteriaBuilder
	searcher Searcher
	selector fabric.PairSelector
	memory   MemoryStore
	logger   logSDK.Logger

	// turns of one session run one at a time so memory updates are not lost
	locks [sessionLockStripes]sync.Mutex
}

// NewAdvisor wires the advisor dependencies.
func NewAdvisor(builder *fabric.CriteriaBuilder, searcher Searcher, selector fabric.PairSelector, memory MemoryStore, logger logSDK.Logger) (*Advisor, error) {
	if builder == nil {
		return nil, errors.New("criteria builder is required")
	}
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if memory == nil {
		return nil, errors.New("memory store is required")
	}
	if selector.Scale == (fabric.TierScale{}) {
		selector.Scale = fabric.DefaultTierScale
	}
	if logger == nil {
		logger = log.Logger.Named("henk_advisor")
	}

	return &Advisor{
		builder:  builder,
		searcher: searcher,
		selector: selector,
		memory:   memory,
		logger:   logger,
	}, nil
}

type turnOptions struct {
	topK      int
	startOver bool
}

// TurnOption customizes a single HandleTurn call.
type TurnOption func(*turnOptions)

// WithTopK overrides how many ranked fabrics the search returns. 0 uses the engine default.
func WithTopK(topK int) TurnOption {
	return func(o *turnOptions) {
		o.topK = topK
	}
}

// WithStartOver forgets the session memory before the statement is merged.
func WithStartOver(startOver bool) TurnOption {
	return func(o *turnOptions) {
		o.startOver = startOver
	}
}

func (a *Advisor) loggerFromContext(ctx context.Context) logSDK.Logger {
	if ctx != nil {
		if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	return a.logger
}

func (a *Advisor) lockSession(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &a.locks[h.Sum32()%sessionLockStripes]
	mu.Lock()
	return mu.Unlock
}

// HandleTurn merges the customer's statement into the session memory, searches and
// picks a pair to present.
//
// Memory store failures are logged and never fail the turn. Search infrastructure
// failures become SearchUnavailable. An error is returned only when ctx is done or
// the search rejected the criteria as invalid.
func (a *Advisor) HandleTurn(ctx context.Context, sessionID, query string, hints fabric.Hints, opts ...TurnOption) (NextAction, error) {
	var options turnOptions
	for _, opt := range opts {
		opt(&options)
	}

	logger := a.loggerFromContext(ctx).With(zap.String("session_id", sessionID))
	startAt := time.Now()

	unlock := a.lockSession(sessionID)
	defer unlock()

	var remembered *fabric.ConversationMemory
	if options.startOver {
		if err := a.memory.Reset(ctx, sessionID); err != nil {
			logger.Warn("reset conversation memory", zap.Error(err))
		}
	} else {
		var err error
		if remembered, err = a.memory.Load(ctx, sessionID); err != nil {
			logger.Warn("load conversation memory, continue with empty memory", zap.Error(err))
			remembered = nil
		}
	}

	criteria, updated := a.builder.Build(query, hints, remembered)
	if err := a.memory.Save(ctx, sessionID, updated); err != nil {
		logger.Warn("save conversation memory", zap.Error(err))
	}

	ranked, err := a.searcher.Search(ctx, criteria, options.topK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "turn abandoned")
		}
		if fabric.IsCode(err, fabric.ErrCodeInvalidCriteria) {
			return nil, errors.WithStack(err)
		}

		retryable := true
		if typed, ok := fabric.AsError(err); ok {
			retryable = typed.Retryable
		}
		logger.Warn("fabric search unavailable", zap.Error(err))
		return SearchUnavailable{Message: MessageSearchUnavailable, Retryable: retryable}, nil
	}

	filters := DescribeFilters(criteria)
	pair := a.selector.Select(ranked)
	logger.Info("fabric turn handled",
		zap.Int("ranked", len(ranked)),
		zap.Bool("mid_tier", pair.MidTier != nil),
		zap.Bool("luxury_tier", pair.LuxuryTier != nil),
		zap.Duration("cost", time.Since(startAt)))

	if pair.Empty() {
		return NoMatches{Criteria: criteria, Filters: filters, Message: MessageNoMatches}, nil
	}
	return PresentPair{
		Pair:     pair,
		Ranked:   ranked,
		Criteria: criteria,
		Filters:  filters,
		Message:  pairMessage(pair),
	}, nil
}
