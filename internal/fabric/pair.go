package fabric

// PairSelector picks the mid-tier and luxury suggestion from a ranked list.
type PairSelector struct {
	Scale TierScale
}

// Select returns the highest ranked standard or premium fabric and the highest ranked
// luxury fabric. Entry and unknown tiers fill neither slot. ranked must already be
// ordered best first, Select keeps that order and never re-ranks.
func (s PairSelector) Select(ranked []ScoredFabric) FabricSuggestionPair {
	var pair FabricSuggestionPair
	for i := range ranked {
		if pair.MidTier != nil && pair.LuxuryTier != nil {
			break
		}

		tier := s.Scale.Classify(ranked[i].Fabric.PriceCategory)
		switch {
		case tier.IsMid() && pair.MidTier == nil:
			picked := ranked[i]
			picked.PriceTier = tier
			pair.MidTier = &picked
		case tier.IsLuxury() && pair.LuxuryTier == nil:
			picked := ranked[i]
			picked.PriceTier = tier
			pair.LuxuryTier = &picked
		}
	}
	return pair
}

// SelectPair selects with DefaultTierScale.
func SelectPair(ranked []ScoredFabric) FabricSuggestionPair {
	return PairSelector{Scale: DefaultTierScale}.Select(ranked)
}
