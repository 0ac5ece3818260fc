package fabric

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Laisky/henk-fabric/library/log"
)

// Engine embeds search criteria, retrieves matching chunks from the catalog
// and ranks them into distinct fabrics. It is safe for concurrent use.
type Engine struct {
	embedder Embedder
	catalog  Catalog
	settings Settings
	logger   logSDK.Logger
	vocab    vocabulary

	cache ResultCache
	group singleflight.Group
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithResultCache enables result caching and coalescing of identical concurrent searches.
func WithResultCache(cache ResultCache) EngineOption {
	return func(e *Engine) {
		e.cache = cache
	}
}

// NewEngine wires the engine dependencies.
func NewEngine(embedder Embedder, catalog Catalog, settings Settings, logger logSDK.Logger, opts ...EngineOption) (*Engine, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if logger == nil {
		logger = log.Logger.Named("fabric_engine")
	}

	e := &Engine{
		embedder: embedder,
		catalog:  catalog,
		settings: settings.Sanitize(),
		logger:   logger,
		vocab:    defaultVocabulary,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the sanitized settings the engine runs with.
func (e *Engine) Settings() Settings {
	return e.settings
}

func (e *Engine) loggerFromContext(ctx context.Context) logSDK.Logger {
	if ctx != nil {
		if ctxLogger := gmw.GetLogger(ctx); ctxLogger != nil {
			return ctxLogger
		}
	}
	return e.logger
}

// Search returns up to topK distinct fabrics ranked by similarity to criteria.
//
// topK 0 uses the configured default, values above the configured maximum are clamped
// and negative values are rejected with INVALID_CRITERIA. An empty result is not an error.
// Embedding failures return EMBEDDING_UNAVAILABLE and catalog failures CATALOG_UNAVAILABLE,
// both retryable and never with partial results.
func (e *Engine) Search(ctx context.Context, criteria FabricSearchCriteria, topK int) ([]ScoredFabric, error) {
	switch {
	case topK < 0:
		return nil, NewError(ErrCodeInvalidCriteria, fmt.Sprintf("top_k must not be negative, got %d", topK), false)
	case topK == 0:
		topK = e.settings.TopKDefault
	case topK > e.settings.TopKMax:
		topK = e.settings.TopKMax
	}

	if e.cache == nil {
		return e.search(ctx, criteria, topK)
	}

	logger := e.loggerFromContext(ctx)
	key, err := searchKey(criteria, topK, e.settings.EmbeddingModel)
	if err != nil {
		logger.Warn("build fabric search cache key", zap.Error(err))
		return e.search(ctx, criteria, topK)
	}
	if cached, ok := e.cache.Get(ctx, key); ok {
		logger.Debug("fabric search served from cache", zap.String("key", key), zap.Int("count", len(cached)))
		return cached, nil
	}

	// the shared flight ignores caller cancellation, embed and catalog timeouts still bound it
	flight := e.group.DoChan(key, func() (any, error) {
		sharedCtx := context.WithoutCancel(ctx)
		results, err := e.search(sharedCtx, criteria, topK)
		if err != nil {
			return nil, err
		}
		e.cache.Set(sharedCtx, key, results)
		return results, nil
	})

	var shared any
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "wait for fabric search")
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		shared = res.Val
	}
	return cloneResults(shared.([]ScoredFabric)), nil
}

func (e *Engine) search(ctx context.Context, criteria FabricSearchCriteria, topK int) ([]ScoredFabric, error) {
	logger := e.loggerFromContext(ctx)
	startAt := time.Now()
	queryText := criteria.QueryText()

	embedCtx, cancelEmbed := context.WithTimeout(ctx, e.settings.EmbedTimeout)
	vector, err := e.embedder.Embed(embedCtx, queryText)
	cancelEmbed()
	if err != nil {
		logger.Warn("embed fabric query", zap.String("query", queryText), zap.Error(err))
		return nil, wrapError(ErrCodeEmbeddingUnavailable, err, "embedding provider unavailable", true)
	}

	catalogCtx, cancelCatalog := context.WithTimeout(ctx, e.settings.CatalogTimeout)
	defer cancelCatalog()

	limit := e.settings.candidateLimit(topK)
	matches, err := e.catalog.NearestNeighbors(catalogCtx, vector, limit, criteria.Filters())
	if err != nil {
		logger.Warn("query fabric catalog", zap.Int("limit", limit), zap.Error(err))
		return nil, wrapError(ErrCodeCatalogUnavailable, err, "fabric catalog unavailable", true)
	}

	codes := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.Chunk.FabricCode]; ok {
			continue
		}
		seen[m.Chunk.FabricCode] = struct{}{}
		codes = append(codes, m.Chunk.FabricCode)
	}
	fabrics, err := e.catalog.GetFabrics(catalogCtx, codes)
	if err != nil {
		logger.Warn("load fabrics", zap.Int("codes", len(codes)), zap.Error(err))
		return nil, wrapError(ErrCodeCatalogUnavailable, err, "fabric catalog unavailable", true)
	}

	results := e.rank(criteria, matches, fabrics, topK)
	logger.Debug("fabric search finished",
		zap.String("query", queryText),
		zap.Int("chunks", len(matches)),
		zap.Int("fabrics", len(results)),
		zap.Duration("cost", time.Since(startAt)))
	return results, nil
}

// rank keeps the best chunk per admissible fabric, orders by score then fabric code and truncates to topK.
func (e *Engine) rank(criteria FabricSearchCriteria, matches []ChunkMatch, fabrics map[string]FabricRecord, topK int) []ScoredFabric {
	admissible := make(map[string]bool, len(fabrics))
	best := make(map[string]ScoredFabric, len(fabrics))
	for _, m := range matches {
		code := m.Chunk.FabricCode
		record, ok := fabrics[code]
		if !ok {
			continue
		}
		allowed, checked := admissible[code]
		if !checked {
			allowed = e.admits(criteria, record)
			admissible[code] = allowed
		}
		if !allowed {
			continue
		}

		score := clampScore(1 - m.Distance)
		current, exists := best[code]
		if exists && (score < current.SimilarityScore ||
			(score == current.SimilarityScore && m.Chunk.ChunkType >= current.ChunkType)) {
			continue
		}
		best[code] = ScoredFabric{
			Fabric:          record,
			ChunkType:       m.Chunk.ChunkType,
			SimilarityScore: score,
		}
	}

	results := make([]ScoredFabric, 0, len(best))
	for _, scored := range best {
		results = append(results, scored)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore == results[j].SimilarityScore {
			return results[i].Fabric.FabricCode < results[j].Fabric.FabricCode
		}
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > topK {
		results = results[:topK]
	}

	for i := range results {
		results[i].PriceTier = e.settings.TierScale.Classify(results[i].Fabric.PriceCategory)
		results[i].MatchReasons = e.matchReasons(criteria, results[i].Fabric)
	}
	return results
}

// admits applies the post-retrieval filters to one fabric.
func (e *Engine) admits(criteria FabricSearchCriteria, record FabricRecord) bool {
	if containsAny(record.Composition, criteria.ExcludedMaterials) {
		return false
	}
	if len(criteria.ExcludedColors) > 0 &&
		len(intersect(e.vocab.colors.canonicalSet(record.Color), criteria.ExcludedColors)) > 0 {
		return false
	}
	if criteria.InStockOnly && !record.StockStatus.Available() {
		return false
	}
	if criteria.WeightMax > 0 && record.Weight != nil && *record.Weight > criteria.WeightMax {
		return false
	}
	if criteria.Season != "" {
		seasons := record.SeasonList()
		if len(seasons) > 0 && !slices.Contains(seasons, criteria.Season) && !slices.Contains(seasons, SeasonFourSeason) {
			return false
		}
	}
	return true
}

// matchReasons explains in short phrases which requested attributes the fabric carries.
func (e *Engine) matchReasons(criteria FabricSearchCriteria, record FabricRecord) []string {
	var reasons []string
	if hit := intersect(e.vocab.colors.canonicalSet(record.Color), criteria.Colors); len(hit) > 0 {
		reasons = append(reasons, "color: "+strings.Join(hit, ", "))
	}
	if hit := intersect(e.vocab.patterns.canonicalSet(record.Pattern), criteria.Patterns); len(hit) > 0 {
		reasons = append(reasons, "pattern: "+strings.Join(hit, ", "))
	}
	if hit := intersect(e.vocab.materials.canonicalSet(record.Composition), criteria.Materials); len(hit) > 0 {
		reasons = append(reasons, "material: "+strings.Join(hit, ", "))
	}
	if criteria.WeightMax > 0 && record.Weight != nil && *record.Weight <= criteria.WeightMax {
		reasons = append(reasons, fmt.Sprintf("weight: %d g/m²", *record.Weight))
	}
	if criteria.Season != "" && slices.Contains(record.SeasonList(), criteria.Season) {
		reasons = append(reasons, "season: "+string(criteria.Season))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "semantic match")
	}
	return reasons
}

func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// intersect returns the sorted tokens present in both sets.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(b))
	for _, v := range b {
		want[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := want[v]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return normalizeSet(out)
}

// cloneResults copies results shared between coalesced callers.
func cloneResults(results []ScoredFabric) []ScoredFabric {
	out := make([]ScoredFabric, len(results))
	for i, r := range results {
		r.MatchReasons = slices.Clone(r.MatchReasons)
		r.Fabric.ImageURLs = slices.Clone(r.Fabric.ImageURLs)
		out[i] = r
	}
	return out
}
