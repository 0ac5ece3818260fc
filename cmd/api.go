package cmd

import (
	"context"
	"math"

	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/henk-fabric/internal/mcp"
	"github.com/Laisky/henk-fabric/internal/web"
	"github.com/Laisky/henk-fabric/library/log"
	"github.com/Laisky/henk-fabric/library/throttle"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `serve the fabric MCP tools over streamable HTTP`,
	Args:  gcmd.NoExtraArgs,
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

		mcpServer, err := mcp.NewServer(mcp.Deps{
			Advisor:  svc.advisor,
			Searcher: svc.engine,
			Builder:  svc.builder,
			Catalog:  svc.catalog,
			Scale:    svc.settings.TierScale,
		}, mcp.LoadToolsSettingsFromConfig(), log.Logger.Named("mcp"))
		if err != nil {
			log.Logger.Panic("new mcp server", zap.Error(err))
		}

		routerOpts := []web.RouterOption{
			web.WithAllowedOrigins(gconfig.Shared.GetStringSlice("settings.web.allowed_origins")),
			web.WithReleaseMode(!gconfig.Shared.GetBool("debug")),
		}
		th, err := newRequestThrottle()
		if err != nil {
			log.Logger.Panic("new request throttle", zap.Error(err))
		}
		if th != nil {
			routerOpts = append(routerOpts, web.WithThrottle(th))
		}

		router := web.NewRouter(mcpServer.Handler(), log.Logger, routerOpts...)
		log.Logger.Panic("http server exit",
			zap.Error(web.RunServer(gconfig.Shared.GetString("listen"), router, log.Logger)))
	},
}

// newRequestThrottle returns nil when settings.web.rate_limit.total_rps is not set.
func newRequestThrottle() (*throttle.ClientThrottle, error) {
	totalRPS := configFloat("settings.web.rate_limit.total_rps", 0)
	if totalRPS <= 0 {
		return nil, nil
	}

	clientRPS := configFloat("settings.web.rate_limit.client_rps", totalRPS/10)
	cfg := throttle.ClientThrottleCfg{
		TotalNPerSec:      totalRPS,
		TotalBurst:        configFloat("settings.web.rate_limit.total_burst", math.Max(totalRPS, 1)),
		EachClientNPerSec: clientRPS,
		EachClientBurst:   configFloat("settings.web.rate_limit.client_burst", math.Max(clientRPS, 1)),
	}
	log.Logger.Info("request throttle enabled",
		zap.Float64("total_rps", cfg.TotalNPerSec),
		zap.Float64("client_rps", cfg.EachClientNPerSec))
	return throttle.NewClientThrottle(cfg)
}

func configFloat(key string, def float64) float64 {
	raw := gconfig.S.Get(key)
	if raw == nil {
		return def
	}
	value, err := parseStrictFloat(raw)
	if err != nil {
		return def
	}
	return value
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
