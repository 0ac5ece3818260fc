package cmd

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/henk"
	"github.com/Laisky/henk-fabric/library/log"
)

// searchCMD runs one stateless search and prints the ranking as JSON. Handy for
// checking catalog contents and ranking changes without an MCP client.
var searchCMD = &cobra.Command{
	Use:   "search [query]",
	Short: "search",
	Long:  `rank fabrics for a free text query and print the result as JSON`,
	Args:  cobra.MaximumNArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		svc, err := newServices(ctx)
		if err != nil {
			log.Logger.Panic("setup services", zap.Error(err))
		}

		var query string
		if len(args) > 0 {
			query = args[0]
		}
		hints, err := searchHints(cmd)
		if err != nil {
			log.Logger.Panic("read search flags", zap.Error(err))
		}

		criteria, _ := svc.builder.Build(query, hints, nil)
		ranked, err := svc.engine.Search(ctx, criteria, gconfig.Shared.GetInt("top-k"))
		if err != nil {
			log.Logger.Panic("search", zap.Error(err))
		}

		out := map[string]any{
			"criteria": criteria,
			"filters":  henk.DescribeFilters(criteria),
			"ranked":   ranked,
			"pair":     fabric.PairSelector{Scale: svc.settings.TierScale}.Select(ranked),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			log.Logger.Panic("encode result", zap.Error(err))
		}
	},
}

// searchHints reads the hint flags. --in-stock is tri-state: left unset the
// builder default applies, --in-stock=false also admits out of stock fabrics.
func searchHints(cmd *cobra.Command) (fabric.Hints, error) {
	flags := cmd.Flags()
	colors, err := flags.GetStringSlice("colors")
	if err != nil {
		return fabric.Hints{}, errors.Wrap(err, "read colors")
	}
	materials, err := flags.GetStringSlice("materials")
	if err != nil {
		return fabric.Hints{}, errors.Wrap(err, "read materials")
	}
	garment, err := flags.GetString("garment")
	if err != nil {
		return fabric.Hints{}, errors.Wrap(err, "read garment")
	}
	season, err := flags.GetString("season")
	if err != nil {
		return fabric.Hints{}, errors.Wrap(err, "read season")
	}

	hints := fabric.Hints{
		Colors:      colors,
		Materials:   materials,
		GarmentType: strings.TrimSpace(garment),
		Season:      strings.TrimSpace(season),
	}
	if flags.Changed("in-stock") {
		inStock, err := flags.GetBool("in-stock")
		if err != nil {
			return fabric.Hints{}, errors.Wrap(err, "read in-stock")
		}
		hints.InStockOnly = &inStock
	}
	return hints, nil
}

func registerSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("colors", []string{}, "colors, like `navy,grey`")
	cmd.Flags().StringSlice("materials", []string{}, "materials, like `wool,linen`")
	cmd.Flags().String("garment", "", "suit/jacket/trousers/vest/coat/shirt")
	cmd.Flags().String("season", "", "summer/winter/wedding/4season")
	cmd.Flags().Bool("in-stock", true, "only fabrics that can be ordered now, --in-stock=false includes out of stock")
	cmd.Flags().Int("top-k", 0, "number of ranked fabrics, 0 uses the configured default")
}

func init() {
	rootCMD.AddCommand(searchCMD)
	registerSearchFlags(searchCMD)
}
