package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newSearchFlagsCMD(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	registerSearchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestSearchHintsInStockIsTriState(t *testing.T) {
	hints, err := searchHints(newSearchFlagsCMD(t))
	require.NoError(t, err)
	require.Nil(t, hints.InStockOnly, "unset flag leaves the builder default")

	hints, err = searchHints(newSearchFlagsCMD(t, "--in-stock=false"))
	require.NoError(t, err)
	require.NotNil(t, hints.InStockOnly)
	require.False(t, *hints.InStockOnly)

	hints, err = searchHints(newSearchFlagsCMD(t, "--in-stock"))
	require.NoError(t, err)
	require.NotNil(t, hints.InStockOnly)
	require.True(t, *hints.InStockOnly)
}

func TestSearchHintsReadsFlags(t *testing.T) {
	hints, err := searchHints(newSearchFlagsCMD(t,
		"--colors", "navy,grey",
		"--materials", "wool",
		"--garment", " suit ",
		"--season", "winter",
	))
	require.NoError(t, err)
	require.Equal(t, []string{"navy", "grey"}, hints.Colors)
	require.Equal(t, []string{"wool"}, hints.Materials)
	require.Equal(t, "suit", hints.GarmentType)
	require.Equal(t, "winter", hints.Season)
}
