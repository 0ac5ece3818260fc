package fabric

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	TableFabrics      = "fabrics"
	TableFabricChunks = "fabric_chunks"
)

// FabricRecord is one physical fabric SKU. Rows are written by the ingestion
// pipeline, the engine only reads them.
type FabricRecord struct {
	ID               int64          `json:"-" gorm:"primaryKey"`
	FabricCode       string         `json:"fabric_code" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name             string         `json:"name"`
	Supplier         string         `json:"supplier"`
	Composition      string         `json:"composition"`
	Weight           *int           `json:"weight,omitempty"`
	Color            string         `json:"color"`
	Pattern          string         `json:"pattern"`
	Category         string         `json:"category,omitempty" gorm:"index"`
	PriceCategory    string         `json:"price_category"`
	StockStatus      StockStatus    `json:"stock_status" gorm:"type:varchar(16);index"`
	Origin           string         `json:"origin,omitempty"`
	Description      string         `json:"description,omitempty"`
	CareInstructions string         `json:"care_instructions,omitempty"`
	Seasons          string         `json:"seasons,omitempty"`
	ImageURLs        datatypes.JSON `json:"image_urls,omitempty" gorm:"column:image_urls"`
	CreatedAt        time.Time      `json:"-"`
	UpdatedAt        time.Time      `json:"-"`
}

// TableName returns the database table name.
func (FabricRecord) TableName() string {
	return TableFabrics
}

// SeasonList parses the comma separated Seasons column, unknown entries are skipped.
func (f FabricRecord) SeasonList() []Season {
	var seasons []Season
	for _, part := range strings.Split(f.Seasons, ",") {
		if season, ok := ParseSeason(part); ok {
			seasons = append(seasons, season)
		}
	}
	return seasons
}

// ImageURLList decodes ImageURLs, a malformed column yields nil.
func (f FabricRecord) ImageURLList() []string {
	if len(f.ImageURLs) == 0 {
		return nil
	}
	var urls []string
	if err := json.Unmarshal(f.ImageURLs, &urls); err != nil {
		return nil
	}
	return urls
}

// FabricChunk is one independently embedded text facet of a fabric.
type FabricChunk struct {
	ChunkID        string          `json:"chunk_id" gorm:"type:varchar(128);primaryKey"`
	FabricCode     string          `json:"fabric_code" gorm:"type:varchar(64);index;not null"`
	ChunkType      ChunkType       `json:"chunk_type" gorm:"type:varchar(32)"`
	Content        string          `json:"content"`
	Embedding      pgvector.Vector `json:"-" gorm:"type:vector"`
	EmbeddingModel string          `json:"embedding_model,omitempty"`
	CreatedAt      time.Time       `json:"-"`
	UpdatedAt      time.Time       `json:"-"`
}

// TableName returns the database table name.
func (FabricChunk) TableName() string {
	return TableFabricChunks
}

// ChunkIDFor builds the chunk id the ingestion pipeline uses, e.g. "AB-1001_visual".
func ChunkIDFor(fabricCode string, chunkType ChunkType) string {
	return fabricCode + "_" + string(chunkType)
}
