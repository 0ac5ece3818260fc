package fabric

import (
	"strings"
)

// DefaultExcludedMaterials disqualifies coated outerwear fabrics from tailored garments.
var DefaultExcludedMaterials = []string{
	"polyurethane",
	"polyurethan",
	"poly-urethane",
	"polyuréthane",
	"polyuretano",
}

// DefaultTailoredGarments are the garments the excluded materials apply to.
var DefaultTailoredGarments = []GarmentType{
	GarmentSuit,
	GarmentJacket,
	GarmentTrousers,
	GarmentVest,
}

// ExclusionPolicy is the static garment to excluded-materials table.
// It is derived from configuration only, never from what the customer says.
type ExclusionPolicy struct {
	materials []string
	garments  map[GarmentType]struct{}
}

// NewExclusionPolicy builds a policy. Empty arguments fall back to the defaults.
func NewExclusionPolicy(materials []string, garments []GarmentType) ExclusionPolicy {
	materials = normalizeSet(materials)
	if len(materials) == 0 {
		materials = normalizeSet(DefaultExcludedMaterials)
	}
	if len(garments) == 0 {
		garments = DefaultTailoredGarments
	}

	p := ExclusionPolicy{
		materials: materials,
		garments:  make(map[GarmentType]struct{}, len(garments)),
	}
	for _, g := range garments {
		p.garments[g] = struct{}{}
	}
	return p
}

// DefaultExclusionPolicy excludes polyurethane from suits, jackets, trousers and vests.
func DefaultExclusionPolicy() ExclusionPolicy {
	return NewExclusionPolicy(nil, nil)
}

// For returns the excluded composition markers for garment. The slice is a fresh copy.
func (p ExclusionPolicy) For(garment GarmentType) []string {
	if _, ok := p.garments[garment]; !ok {
		return []string{}
	}
	return append([]string{}, p.materials...)
}

// containsAny reports whether text contains any marker, case-insensitively.
func containsAny(text string, markers []string) bool {
	if text == "" || len(markers) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
