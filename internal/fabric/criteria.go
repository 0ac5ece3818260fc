package fabric

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jinzhu/copier"
)

// Fields that Hints.Replace may name.
const (
	FieldColors    = "colors"
	FieldPatterns  = "patterns"
	FieldMaterials = "materials"
)

// DefaultLightweightMaxGSM is the weight cap applied when the customer asks for light fabrics.
const DefaultLightweightMaxGSM = 250

// Hints are structured preferences supplied by the conversation layer next to the raw text.
// Values may be English or German, anything outside the vocabulary is ignored.
type Hints struct {
	Colors      []string `json:"colors,omitempty"`
	Patterns    []string `json:"patterns,omitempty"`
	Materials   []string `json:"materials,omitempty"`
	GarmentType string   `json:"garment_type,omitempty"`
	Occasion    string   `json:"occasion,omitempty"`
	Season      string   `json:"season,omitempty"`
	WeightMax   int      `json:"weight_max,omitempty"`
	InStockOnly *bool    `json:"in_stock_only,omitempty"`
	// Replace lists fields whose remembered values the customer explicitly withdrew,
	// e.g. "actually I meant grey instead".
	Replace []string `json:"replace,omitempty"`
}

func (h Hints) replaces(field string) bool {
	for _, f := range h.Replace {
		if strings.EqualFold(strings.TrimSpace(f), field) {
			return true
		}
	}
	return false
}

// ConversationMemory is the preference state remembered across turns of one conversation.
// The builder never mutates it, callers persist the copy Build returns.
type ConversationMemory struct {
	Colors         []string    `json:"colors,omitempty"`
	Patterns       []string    `json:"patterns,omitempty"`
	Materials      []string    `json:"materials,omitempty"`
	ExcludedColors []string    `json:"excluded_colors,omitempty"`
	GarmentType    GarmentType `json:"garment_type,omitempty"`
	Occasion       string      `json:"occasion,omitempty"`
	Season         Season      `json:"season,omitempty"`
	WeightMax      int         `json:"weight_max,omitempty"`
	InStockOnly    *bool       `json:"in_stock_only,omitempty"`
}

// Clone returns a deep copy that shares no slices or pointers with m.
func (m *ConversationMemory) Clone() ConversationMemory {
	var out ConversationMemory
	if m == nil {
		return out
	}
	if err := copier.CopyWithOption(&out, m, copier.Option{DeepCopy: true}); err != nil {
		out = *m
		out.Colors = slices.Clone(m.Colors)
		out.Patterns = slices.Clone(m.Patterns)
		out.Materials = slices.Clone(m.Materials)
		out.ExcludedColors = slices.Clone(m.ExcludedColors)
		if m.InStockOnly != nil {
			v := *m.InStockOnly
			out.InStockOnly = &v
		}
	}
	return out
}

// FabricSearchCriteria is the canonical, caller-agnostic search request.
type FabricSearchCriteria struct {
	Colors               []string    `json:"colors"`
	Patterns             []string    `json:"patterns"`
	Materials            []string    `json:"materials"`
	ExcludedColors       []string    `json:"excluded_colors"`
	GarmentType          GarmentType `json:"garment_type"`
	ExcludedMaterials    []string    `json:"excluded_materials"`
	RawQuery             string      `json:"raw_query"`
	Occasion             string      `json:"occasion,omitempty"`
	Season               Season      `json:"season,omitempty"`
	WeightMax            int         `json:"weight_max,omitempty"`
	InStockOnly          bool        `json:"in_stock_only"`
	AlternativeRequested bool        `json:"alternative_requested,omitempty"`
}

// HasStructuredSignal reports whether colors, patterns or materials are known.
// The garment type alone does not count because it always has a default.
func (c FabricSearchCriteria) HasStructuredSignal() bool {
	return len(c.Colors) > 0 || len(c.Patterns) > 0 || len(c.Materials) > 0
}

var garmentNouns = map[GarmentType]string{
	GarmentSuit:     "suiting",
	GarmentJacket:   "jacketing",
	GarmentTrousers: "trousering",
	GarmentVest:     "suiting",
	GarmentCoat:     "coating",
	GarmentShirt:    "shirting",
}

// QueryText is the text that gets embedded for this search.
func (c FabricSearchCriteria) QueryText() string {
	noun, ok := garmentNouns[c.GarmentType]
	if !ok {
		noun = garmentNouns[DefaultGarmentType]
	}

	if !c.HasStructuredSignal() {
		if raw := strings.TrimSpace(c.RawQuery); raw != "" {
			return raw + ", " + noun + " fabric"
		}
	}
	head := strings.Join(slices.DeleteFunc([]string{
		strings.Join(c.Colors, " or "),
		strings.Join(c.Materials, " and "),
		noun,
		"fabric",
	}, func(s string) bool { return s == "" }), " ")

	parts := []string{head}
	if len(c.Patterns) > 0 {
		parts = append(parts, strings.Join(c.Patterns, " or ")+" pattern")
	}
	if c.WeightMax > 0 {
		parts = append(parts, "lightweight")
	}
	if c.Occasion != "" {
		parts = append(parts, "for "+c.Occasion)
	}
	if c.Season != "" {
		parts = append(parts, fmt.Sprintf("%s season", c.Season))
	}
	return strings.Join(parts, ", ")
}

// Filters returns the query-time constraints the catalog applies before ranking.
func (c FabricSearchCriteria) Filters() StructuredFilters {
	return StructuredFilters{
		InStockOnly: c.InStockOnly,
		WeightMax:   c.WeightMax,
	}
}

// CriteriaBuilder turns a customer statement into search criteria.
type CriteriaBuilder struct {
	vocab             vocabulary
	exclusions        ExclusionPolicy
	lightweightMaxGSM int
}

// NewCriteriaBuilder builds a criteria builder. lightweightMaxGSM <= 0 uses DefaultLightweightMaxGSM.
func NewCriteriaBuilder(exclusions ExclusionPolicy, lightweightMaxGSM int) *CriteriaBuilder {
	if exclusions.garments == nil {
		exclusions = DefaultExclusionPolicy()
	}
	if lightweightMaxGSM <= 0 {
		lightweightMaxGSM = DefaultLightweightMaxGSM
	}
	return &CriteriaBuilder{
		vocab:             defaultVocabulary,
		exclusions:        exclusions,
		lightweightMaxGSM: lightweightMaxGSM,
	}
}

// Build merges rawQuery and hints into remembered and returns the criteria for this turn
// together with the memory to persist. Newly stated colors, patterns and materials are
// added to the remembered ones unless hints.Replace names the field.
//
// Build has no side effects and never fails: on unexpected input it returns default
// criteria and an unchanged copy of remembered.
func (b *CriteriaBuilder) Build(rawQuery string, hints Hints, remembered *ConversationMemory) (criteria FabricSearchCriteria, memory ConversationMemory) {
	defer func() {
		if recover() != nil {
			memory = remembered.Clone()
			criteria = b.fallbackCriteria(rawQuery)
		}
	}()

	mem := remembered.Clone()
	said := b.vocab.parse(rawQuery)

	hintColors := b.vocab.colors.normalizeAll(hints.Colors)
	positiveColors := union(said.colors, hintColors)
	colors := mem.Colors
	if hints.replaces(FieldColors) {
		colors = nil
	}
	excludedColors := union(subtract(mem.ExcludedColors, positiveColors), said.excludedColors)
	colors = subtract(union(colors, positiveColors), excludedColors)

	patterns := mem.Patterns
	if hints.replaces(FieldPatterns) {
		patterns = nil
	}
	patterns = union(patterns, said.patterns, b.vocab.patterns.normalizeAll(hints.Patterns))

	materials := mem.Materials
	if hints.replaces(FieldMaterials) {
		materials = nil
	}
	materials = union(materials, said.materials, b.vocab.materials.normalizeAll(hints.Materials))

	garment := DefaultGarmentType
	if g, ok := ParseGarmentType(hints.GarmentType); ok {
		garment = g
	} else if said.garment != "" {
		garment = said.garment
	} else if mem.GarmentType != "" {
		garment = mem.GarmentType
	}

	occasion := mem.Occasion
	if said.occasion != "" {
		occasion = said.occasion
	}
	if o, ok := b.vocab.occasions.normalize(hints.Occasion); ok {
		occasion = o
	}

	season := mem.Season
	if said.season != "" {
		season = said.season
	}
	if s, ok := ParseSeason(hints.Season); ok {
		season = s
	}

	weightMax := mem.WeightMax
	switch {
	case hints.WeightMax > 0:
		weightMax = hints.WeightMax
	case said.lightweight:
		weightMax = b.lightweightMaxGSM
	}

	inStockOnly := true
	switch {
	case hints.InStockOnly != nil:
		inStockOnly = *hints.InStockOnly
	case mem.InStockOnly != nil:
		inStockOnly = *mem.InStockOnly
	}

	memory = ConversationMemory{
		Colors:         colors,
		Patterns:       patterns,
		Materials:      materials,
		ExcludedColors: excludedColors,
		GarmentType:    garment,
		Occasion:       occasion,
		Season:         season,
		WeightMax:      weightMax,
	}
	if hints.InStockOnly != nil || mem.InStockOnly != nil {
		memory.InStockOnly = &inStockOnly
	}

	criteria = FabricSearchCriteria{
		Colors:            slices.Clone(colors),
		Patterns:          slices.Clone(patterns),
		Materials:         slices.Clone(materials),
		ExcludedColors:    slices.Clone(excludedColors),
		GarmentType:       garment,
		ExcludedMaterials: b.exclusions.For(garment),
		RawQuery:          strings.TrimSpace(rawQuery),
		Occasion:          occasion,
		Season:            season,
		WeightMax:         weightMax,
		InStockOnly:       inStockOnly,
	}

	// asking for "other fabrics" widens this one search, it is not a lasting preference
	if said.alternative {
		criteria.AlternativeRequested = true
		if len(criteria.Materials) == 0 {
			criteria.Materials = []string{"wool"}
		}
		criteria.Patterns = union(criteria.Patterns, []string{"twill"})
	}

	return criteria, memory
}

func (b *CriteriaBuilder) fallbackCriteria(rawQuery string) FabricSearchCriteria {
	return FabricSearchCriteria{
		Colors:            []string{},
		Patterns:          []string{},
		Materials:         []string{},
		ExcludedColors:    []string{},
		GarmentType:       DefaultGarmentType,
		ExcludedMaterials: b.exclusions.For(DefaultGarmentType),
		RawQuery:          strings.TrimSpace(rawQuery),
		InStockOnly:       true,
	}
}
