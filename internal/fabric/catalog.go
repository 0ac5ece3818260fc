package fabric

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/Laisky/henk-fabric/library/log"
)

// StructuredFilters are constraints applied inside the nearest-neighbour query.
type StructuredFilters struct {
	InStockOnly bool
	// WeightMax in g/m², 0 disables the filter. Fabrics without a weight always pass.
	WeightMax int
	Category  string
}

// ChunkMatch is one chunk hit with its cosine distance to the query vector.
type ChunkMatch struct {
	Chunk    FabricChunk
	Distance float64
}

// Catalog is the read-only fabric store the engine searches.
type Catalog interface {
	// NearestNeighbors returns up to limit chunks ordered by ascending cosine distance.
	NearestNeighbors(ctx context.Context, vector pgvector.Vector, limit int, filters StructuredFilters) ([]ChunkMatch, error)
	// GetFabric returns FABRIC_NOT_FOUND when code is unknown.
	GetFabric(ctx context.Context, code string) (*FabricRecord, error)
	// GetFabrics loads fabrics keyed by fabric_code. Unknown codes are absent from the map.
	GetFabrics(ctx context.Context, codes []string) (map[string]FabricRecord, error)
}

// GormCatalog reads fabrics and chunks through gorm.
// On postgres it ranks with pgvector, on other dialects it ranks in memory.
type GormCatalog struct {
	db         *gorm.DB
	dimensions int
	logger     logSDK.Logger
}

// NewGormCatalog wraps db. dimensions is the expected embedding length, 0 accepts any.
func NewGormCatalog(db *gorm.DB, dimensions int, logger logSDK.Logger) (*GormCatalog, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if logger == nil {
		logger = log.Logger.Named("fabric_catalog")
	}
	return &GormCatalog{db: db, dimensions: dimensions, logger: logger}, nil
}

// SQLDB returns the connection pool behind the catalog.
func (c *GormCatalog) SQLDB() (*sql.DB, error) {
	db, err := c.db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	return db, nil
}

// Migrate creates the vector extension on postgres and the two read-model tables.
func (c *GormCatalog) Migrate(ctx context.Context) error {
	c.logger.Debug("ensuring pgvector extension for fabric catalog")
	if err := ensureVectorExtension(ctx, c.db, c.logger); err != nil {
		return errors.Wrap(err, "ensure pgvector extension")
	}

	if err := c.db.WithContext(ctx).AutoMigrate(&FabricRecord{}, &FabricChunk{}); err != nil {
		return errors.Wrap(err, "auto migrate fabric tables")
	}
	c.logger.Debug("fabric catalog migrations finished")
	return nil
}

func ensureVectorExtension(ctx context.Context, db *gorm.DB, logger logSDK.Logger) error {
	if db == nil {
		return errors.New("gorm db is nil")
	}
	if !isPostgresDialect(db) {
		return nil
	}

	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		if !shouldFallbackToPgvector(err) {
			return errors.Wrap(err, "create vector extension")
		}
		if logger != nil {
			logger.Debug("pgvector extension unavailable under name 'vector', retrying with legacy name")
		}
		if execErr := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS pgvector").Error; execErr != nil {
			return errors.Wrap(execErr, "create pgvector extension")
		}
	}
	return nil
}

func isPostgresDialect(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	return strings.EqualFold(db.Dialector.Name(), "postgres")
}

func shouldFallbackToPgvector(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "58P01", "42704":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "extension \"vector\"") && strings.Contains(msg, "not") && strings.Contains(msg, "available")
}

type chunkMatchRow struct {
	ChunkID        string          `gorm:"column:chunk_id"`
	FabricCode     string          `gorm:"column:fabric_code"`
	ChunkType      string          `gorm:"column:chunk_type"`
	Content        string          `gorm:"column:content"`
	EmbeddingModel string          `gorm:"column:embedding_model"`
	Distance       sql.NullFloat64 `gorm:"column:distance"`
}

// NearestNeighbors implements Catalog.
func (c *GormCatalog) NearestNeighbors(ctx context.Context, vector pgvector.Vector, limit int, filters StructuredFilters) ([]ChunkMatch, error) {
	if limit <= 0 {
		return []ChunkMatch{}, nil
	}
	if c.dimensions > 0 && len(vector.Slice()) != c.dimensions {
		return nil, errors.Errorf("query vector has %d dimensions, want %d", len(vector.Slice()), c.dimensions)
	}

	where, args := filterClause(filters)
	if !isPostgresDialect(c.db) {
		return c.nearestInMemory(ctx, vector, limit, where, args)
	}

	query := `SELECT c.chunk_id, c.fabric_code, c.chunk_type, c.content, c.embedding_model,
		       c.embedding <=> ? AS distance
		FROM fabric_chunks c
		JOIN fabrics f ON f.fabric_code = c.fabric_code` + where + `
		ORDER BY c.embedding <=> ? ASC, c.chunk_id ASC
		LIMIT ?`
	queryArgs := make([]any, 0, len(args)+3)
	queryArgs = append(queryArgs, vector)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, vector, limit)

	rows := make([]chunkMatchRow, 0, limit)
	if err := c.db.WithContext(ctx).Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "query nearest fabric chunks")
	}

	matches := make([]ChunkMatch, 0, len(rows))
	for _, row := range rows {
		// a chunk without a usable embedding has no distance and must not rank
		if !row.Distance.Valid || math.IsNaN(row.Distance.Float64) {
			c.logger.Debug("skip chunk without comparable embedding", zap.String("chunk_id", row.ChunkID))
			continue
		}
		matches = append(matches, ChunkMatch{
			Chunk: FabricChunk{
				ChunkID:        row.ChunkID,
				FabricCode:     row.FabricCode,
				ChunkType:      ChunkType(row.ChunkType),
				Content:        row.Content,
				EmbeddingModel: row.EmbeddingModel,
			},
			Distance: row.Distance.Float64,
		})
	}
	c.logger.Debug("fabric chunks fetched", zap.Int("limit", limit), zap.Int("count", len(matches)))
	return matches, nil
}

func filterClause(filters StructuredFilters) (string, []any) {
	conds := []string{"c.embedding IS NOT NULL"}
	var args []any
	if filters.InStockOnly {
		conds = append(conds, "f.stock_status IN (?, ?)")
		args = append(args, string(StockInStock), string(StockLowStock))
	}
	if filters.WeightMax > 0 {
		conds = append(conds, "(f.weight IS NULL OR f.weight <= ?)")
		args = append(args, filters.WeightMax)
	}
	if category := strings.TrimSpace(filters.Category); category != "" {
		conds = append(conds, "f.category = ?")
		args = append(args, category)
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

// nearestInMemory loads every candidate embedding and ranks by cosine distance in process.
func (c *GormCatalog) nearestInMemory(ctx context.Context, vector pgvector.Vector, limit int, where string, args []any) ([]ChunkMatch, error) {
	query := `SELECT c.chunk_id, c.fabric_code, c.chunk_type, c.content, c.embedding_model, c.embedding
		FROM fabric_chunks c
		JOIN fabrics f ON f.fabric_code = c.fabric_code` + where

	rows, err := c.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, errors.Wrap(err, "query fabric chunk embeddings")
	}
	defer rows.Close()

	queryVec := vector.Slice()
	var matches []ChunkMatch
	for rows.Next() {
		var (
			chunk     FabricChunk
			chunkType string
			model     *string
			raw       any
		)
		if scanErr := rows.Scan(&chunk.ChunkID, &chunk.FabricCode, &chunkType, &chunk.Content, &model, &raw); scanErr != nil {
			return nil, errors.Wrap(scanErr, "scan fabric chunk")
		}
		emb, decodeErr := decodeEmbedding(raw)
		if decodeErr != nil {
			c.logger.Debug("skip chunk with unreadable embedding",
				zap.String("chunk_id", chunk.ChunkID), zap.Error(decodeErr))
			continue
		}
		if len(emb) != len(queryVec) {
			c.logger.Debug("skip chunk with mismatched embedding dimensions",
				zap.String("chunk_id", chunk.ChunkID),
				zap.Int("dimensions", len(emb)))
			continue
		}
		chunk.ChunkType = ChunkType(chunkType)
		if model != nil {
			chunk.EmbeddingModel = *model
		}
		matches = append(matches, ChunkMatch{
			Chunk:    chunk,
			Distance: 1 - cosineSimilarity(queryVec, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate fabric chunks")
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].Chunk.ChunkID < matches[j].Chunk.ChunkID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []ChunkMatch{}
	}
	return matches, nil
}

// GetFabric implements Catalog.
func (c *GormCatalog) GetFabric(ctx context.Context, code string) (*FabricRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, NewError(ErrCodeFabricNotFound, "fabric code is empty", false)
	}

	var record FabricRecord
	err := c.db.WithContext(ctx).Where("fabric_code = ?", code).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(ErrCodeFabricNotFound, "fabric "+code+" not found", false)
		}
		return nil, wrapError(ErrCodeCatalogUnavailable, err, "load fabric "+code, true)
	}
	return &record, nil
}

// GetFabrics implements Catalog.
func (c *GormCatalog) GetFabrics(ctx context.Context, codes []string) (map[string]FabricRecord, error) {
	out := make(map[string]FabricRecord, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	var records []FabricRecord
	if err := c.db.WithContext(ctx).Where("fabric_code IN ?", codes).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "load fabrics")
	}
	for _, record := range records {
		out[record.FabricCode] = record
	}
	return out, nil
}

// decodeEmbedding parses embedding payloads from database scans.
func decodeEmbedding(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case pgvector.Vector:
		return v.Slice(), nil
	case []byte:
		return parseEmbeddingJSON(v)
	case string:
		return parseEmbeddingJSON([]byte(v))
	default:
		return nil, errors.New("unsupported embedding format")
	}
}

// parseEmbeddingJSON converts a JSON float array, which is also the pgvector text form, into float32s.
func parseEmbeddingJSON(data []byte) ([]float32, error) {
	var floats []float64
	if err := json.Unmarshal(data, &floats); err != nil {
		return nil, err
	}
	result := make([]float32, len(floats))
	for i, f := range floats {
		result[i] = float32(f)
	}
	return result, nil
}

// cosineSimilarity returns the cosine similarity between two equally sized vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
