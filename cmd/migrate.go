package cmd

import (
	"context"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/library/log"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "migrate",
	Long:  `create the fabrics and fabric_chunks tables and the vector extension for development`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		settings := fabric.LoadSettingsFromConfig().Sanitize()
		catalog, err := openCatalog(ctx, settings, log.Logger)
		if err != nil {
			log.Logger.Panic("open catalog", zap.Error(err))
		}
		if err := catalog.Migrate(ctx); err != nil {
			log.Logger.Panic("migrate", zap.Error(err))
		}
		log.Logger.Info("catalog migrated")
	},
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
