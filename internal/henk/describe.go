package henk

import (
	"fmt"
	"strings"

	"github.com/Laisky/henk-fabric/internal/fabric"
)

var garmentLabels = map[fabric.GarmentType]string{
	fabric.GarmentSuit:     "Anzug",
	fabric.GarmentJacket:   "Sakko",
	fabric.GarmentTrousers: "Hose",
	fabric.GarmentVest:     "Weste",
	fabric.GarmentCoat:     "Mantel",
	fabric.GarmentShirt:    "Hemd",
}

var seasonLabels = map[fabric.Season]string{
	fabric.SeasonSummer:     "Sommer",
	fabric.SeasonWinter:     "Winter",
	fabric.SeasonWedding:    "Hochzeit",
	fabric.SeasonFourSeason: "Ganzjährig",
}

// DescribeFilters lists the active filters of criteria as short German texts
// the advisor can read back to the customer.
func DescribeFilters(criteria fabric.FabricSearchCriteria) []string {
	filters := []string{}
	if label, ok := garmentLabels[criteria.GarmentType]; ok {
		filters = append(filters, "Kleidungsstück: "+label)
	}
	if len(criteria.Colors) > 0 {
		filters = append(filters, "Farben: "+strings.Join(criteria.Colors, ", "))
	}
	if len(criteria.Patterns) > 0 {
		filters = append(filters, "Muster: "+strings.Join(criteria.Patterns, ", "))
	}
	if len(criteria.Materials) > 0 {
		filters = append(filters, "Materialien: "+strings.Join(criteria.Materials, ", "))
	}
	if len(criteria.ExcludedColors) > 0 {
		filters = append(filters, "Ausgeschlossen: "+strings.Join(criteria.ExcludedColors, ", "))
	}
	if criteria.Occasion != "" {
		filters = append(filters, "Anlass: "+criteria.Occasion)
	}
	if criteria.Season != "" {
		label, ok := seasonLabels[criteria.Season]
		if !ok {
			label = string(criteria.Season)
		}
		filters = append(filters, "Saison: "+label)
	}
	if criteria.WeightMax > 0 {
		filters = append(filters, fmt.Sprintf("Leichte Stoffe (≤ %d g/m²)", criteria.WeightMax))
	}
	if criteria.InStockOnly {
		filters = append(filters, "Nur lagernde Stoffe")
	}
	return filters
}
