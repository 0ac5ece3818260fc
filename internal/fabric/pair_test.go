package fabric

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scored(code, priceCategory string, score float64) ScoredFabric {
	return ScoredFabric{
		Fabric:          woolFabric(code, priceCategory),
		ChunkType:       ChunkVisual,
		SimilarityScore: score,
	}
}

func TestSelectPairPicksBestOfEachTier(t *testing.T) {
	t.Parallel()

	ranked := []ScoredFabric{
		scored("ENTRY-1", "1", 0.95),
		scored("LUX-1", "8", 0.9),
		scored("MID-1", "5", 0.85),
		scored("MID-2", "3", 0.8),
		scored("LUX-2", "Luxury", 0.7),
	}

	pair := SelectPair(ranked)
	require.NotNil(t, pair.MidTier)
	require.NotNil(t, pair.LuxuryTier)
	require.Equal(t, "MID-1", pair.MidTier.Fabric.FabricCode)
	require.Equal(t, TierPremium, pair.MidTier.PriceTier)
	require.Equal(t, "LUX-1", pair.LuxuryTier.Fabric.FabricCode)
	require.Equal(t, TierLuxury, pair.LuxuryTier.PriceTier)
	require.NotEqual(t, pair.MidTier.Fabric.FabricCode, pair.LuxuryTier.Fabric.FabricCode)
	require.False(t, pair.Empty())
}

func TestSelectPairEmptyLuxuryBucket(t *testing.T) {
	t.Parallel()

	ranked := []ScoredFabric{
		scored("MID-1", "4", 0.9),
		scored("MID-2", "6", 0.8),
	}

	pair := SelectPair(ranked)
	require.NotNil(t, pair.MidTier)
	require.Equal(t, "MID-1", pair.MidTier.Fabric.FabricCode)
	require.Nil(t, pair.LuxuryTier)
}

func TestSelectPairFullEmpty(t *testing.T) {
	t.Parallel()

	pair := SelectPair(nil)
	require.Nil(t, pair.MidTier)
	require.Nil(t, pair.LuxuryTier)
	require.True(t, pair.Empty())

	pair = SelectPair([]ScoredFabric{})
	require.True(t, pair.Empty())
}

func TestSelectPairIgnoresEntryAndUnknownTiers(t *testing.T) {
	t.Parallel()

	pair := SelectPair([]ScoredFabric{
		scored("ENTRY-1", "2", 0.9),
		scored("UNKNOWN-1", "", 0.8),
		scored("UNKNOWN-2", "12", 0.7),
	})
	require.True(t, pair.Empty())
}

func TestSelectPairIsDeterministic(t *testing.T) {
	t.Parallel()

	ranked := []ScoredFabric{
		scored("MID-1", "5", 0.9),
		scored("LUX-1", "9", 0.9),
	}
	first := SelectPair(ranked)
	second := SelectPair(ranked)
	require.Equal(t, first, second)
}

func TestPairSelectorCustomLuxuryThreshold(t *testing.T) {
	t.Parallel()

	selector := PairSelector{Scale: TierScale{StandardMin: 3, PremiumMin: 5, LuxuryMin: 6}}
	pair := selector.Select([]ScoredFabric{
		scored("SIX-1", "6", 0.9),
		scored("FOUR-1", "4", 0.8),
	})
	require.Equal(t, "SIX-1", pair.LuxuryTier.Fabric.FabricCode)
	require.Equal(t, "FOUR-1", pair.MidTier.Fabric.FabricCode)
}

func TestTierScaleClassify(t *testing.T) {
	t.Parallel()

	cases := map[string]PriceTier{
		"":          TierUnknown,
		"1":         TierEntry,
		"3":         TierStandard,
		"Kat. 4":    TierStandard,
		"5":         TierPremium,
		"7":         TierLuxury,
		"9":         TierLuxury,
		"0":         TierUnknown,
		"10":        TierUnknown,
		"Luxus":     TierLuxury,
		"premium":   TierPremium,
		"something": TierUnknown,
	}
	for raw, want := range cases {
		require.Equal(t, want, DefaultTierScale.Classify(raw), raw)
	}
}
