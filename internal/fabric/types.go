// Package fabric implements fabric retrieval and ranking for the HENK sales assistant.
//
// The package has three entry points that the conversation layer calls in order:
// CriteriaBuilder.Build merges a new customer statement into the remembered
// preferences, Engine.Search runs the vector search over the fabric catalog, and
// SelectPair picks one mid-tier and one luxury fabric from the ranked list.
package fabric

import (
	"strconv"
	"strings"
	"unicode"
)

// GarmentType names the garment a fabric is being chosen for.
type GarmentType string

const (
	GarmentSuit     GarmentType = "suit"
	GarmentJacket   GarmentType = "jacket"
	GarmentTrousers GarmentType = "trousers"
	GarmentVest     GarmentType = "vest"
	GarmentCoat     GarmentType = "coat"
	GarmentShirt    GarmentType = "shirt"
)

// DefaultGarmentType is used when neither the customer nor the memory names a garment.
const DefaultGarmentType = GarmentSuit

// ParseGarmentType normalizes an English or German garment name.
func ParseGarmentType(raw string) (GarmentType, bool) {
	tokens := defaultVocabulary.garments.extract(strings.ToLower(strings.TrimSpace(raw)))
	if len(tokens) == 0 {
		return "", false
	}
	return GarmentType(tokens[0].canonical), true
}

// ChunkType identifies which facet of a fabric a chunk describes.
type ChunkType string

const (
	ChunkCharacteristics ChunkType = "characteristics"
	ChunkVisual          ChunkType = "visual"
	ChunkUsage           ChunkType = "usage"
	ChunkTechnical       ChunkType = "technical"
)

// StockStatus is the availability of a fabric at the supplier.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockLowStock   StockStatus = "low_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockOnOrder    StockStatus = "on_order"
)

// Available reports whether the fabric can be ordered right now.
func (s StockStatus) Available() bool {
	return s == StockInStock || s == StockLowStock
}

// Season is a fabric season tag.
type Season string

const (
	SeasonWedding    Season = "wedding"
	SeasonSummer     Season = "summer"
	SeasonFourSeason Season = "4season"
	SeasonWinter     Season = "winter"
)

// ParseSeason accepts the canonical names plus common German and English spellings.
func ParseSeason(raw string) (Season, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wedding", "hochzeit":
		return SeasonWedding, true
	case "summer", "sommer":
		return SeasonSummer, true
	case "4season", "4 season", "four season", "all season", "all-season", "ganzjährig", "ganzjahr":
		return SeasonFourSeason, true
	case "winter":
		return SeasonWinter, true
	default:
		return "", false
	}
}

// PriceTier is the coarse price bracket used for pair selection.
type PriceTier string

const (
	TierUnknown  PriceTier = "unknown"
	TierEntry    PriceTier = "entry"
	TierStandard PriceTier = "standard"
	TierPremium  PriceTier = "premium"
	TierLuxury   PriceTier = "luxury"
)

// IsMid reports whether the tier belongs to the mid bucket.
func (t PriceTier) IsMid() bool {
	return t == TierStandard || t == TierPremium
}

// IsLuxury reports whether the tier belongs to the luxury bucket.
func (t PriceTier) IsLuxury() bool {
	return t == TierLuxury
}

// TierScale maps the supplier's 1-9 price categories onto price tiers.
// A category at or above LuxuryMin is luxury, at or above PremiumMin premium,
// at or above StandardMin standard, anything lower is entry.
type TierScale struct {
	StandardMin int
	PremiumMin  int
	LuxuryMin   int
}

// DefaultTierScale is 1-2 entry, 3-4 standard, 5-6 premium, 7-9 luxury.
var DefaultTierScale = TierScale{StandardMin: 3, PremiumMin: 5, LuxuryMin: 7}

var namedTiers = map[string]PriceTier{
	"entry":    TierEntry,
	"basic":    TierEntry,
	"einstieg": TierEntry,
	"standard": TierStandard,
	"mid":      TierStandard,
	"mittel":   TierStandard,
	"premium":  TierPremium,
	"gehoben":  TierPremium,
	"luxury":   TierLuxury,
	"luxus":    TierLuxury,
	"lux":      TierLuxury,
}

// Classify converts a raw price_category value such as "7", "Kat. 4" or "Luxury".
func (s TierScale) Classify(priceCategory string) PriceTier {
	raw := strings.ToLower(strings.TrimSpace(priceCategory))
	if raw == "" {
		return TierUnknown
	}
	if tier, ok := namedTiers[raw]; ok {
		return tier
	}

	n, ok := firstInt(raw)
	if !ok || n < 1 || n > 9 {
		return TierUnknown
	}
	switch {
	case n >= s.LuxuryMin:
		return TierLuxury
	case n >= s.PremiumMin:
		return TierPremium
	case n >= s.StandardMin:
		return TierStandard
	default:
		return TierEntry
	}
}

// firstInt returns the first run of ASCII digits in s.
func firstInt(s string) (int, bool) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ScoredFabric is one ranked fabric with the chunk that scored best for it.
type ScoredFabric struct {
	Fabric          FabricRecord `json:"fabric"`
	ChunkType       ChunkType    `json:"chunk_type"`
	SimilarityScore float64      `json:"similarity_score"`
	PriceTier       PriceTier    `json:"price_tier"`
	MatchReasons    []string     `json:"match_reasons,omitempty"`
}

// FabricSuggestionPair is what the customer gets to compare: one mid-tier and one luxury fabric.
// Either slot may be nil when no ranked fabric falls into that tier.
type FabricSuggestionPair struct {
	MidTier    *ScoredFabric `json:"mid_tier"`
	LuxuryTier *ScoredFabric `json:"luxury_tier"`
}

// Empty reports whether neither slot is filled.
func (p FabricSuggestionPair) Empty() bool {
	return p.MidTier == nil && p.LuxuryTier == nil
}
