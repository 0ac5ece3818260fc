package cmd

import (
	"context"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Laisky/henk-fabric/internal/fabric"
	"github.com/Laisky/henk-fabric/internal/henk"
	"github.com/Laisky/henk-fabric/internal/library/kms"
	"github.com/Laisky/henk-fabric/library/db/postgres"
	"github.com/Laisky/henk-fabric/library/db/redis"
	"github.com/Laisky/henk-fabric/library/db/sql/kv"
	"github.com/Laisky/henk-fabric/library/log"
)

// services holds everything a command needs to serve fabric searches.
type services struct {
	settings fabric.Settings
	catalog  *fabric.GormCatalog
	builder  *fabric.CriteriaBuilder
	engine   *fabric.Engine
	advisor  *henk.Advisor
}

func openCatalog(ctx context.Context, settings fabric.Settings, logger logSDK.Logger) (*fabric.GormCatalog, error) {
	logLevel := gormLogger.Warn
	if gconfig.Shared.GetBool("debug") {
		logLevel = gormLogger.Info
	}

	db, err := postgres.NewGormDB(ctx, postgres.DialInfo{
		Addr:    gconfig.Shared.GetString("settings.db.postgres.addr"),
		Port:    gconfig.Shared.GetInt("settings.db.postgres.port"),
		DBName:  gconfig.Shared.GetString("settings.db.postgres.db"),
		User:    gconfig.Shared.GetString("settings.db.postgres.user"),
		Pwd:     gconfig.Shared.GetString("settings.db.postgres.pwd"),
		SSLMode: gconfig.Shared.GetString("settings.db.postgres.sslmode"),
	}, logLevel)
	if err != nil {
		return nil, errors.Wrap(err, "connect catalog database")
	}

	return fabric.NewGormCatalog(db, settings.EmbeddingDimensions, logger.Named("catalog"))
}

// openRedis returns nil without error when redis is not configured.
func openRedis(ctx context.Context) (*redis.DB, error) {
	addr := gconfig.Shared.GetString("settings.db.redis.addr")
	if addr == "" {
		return nil, nil
	}

	rdb, err := redis.NewDB(ctx, redis.DialInfo{
		Addr: addr,
		Pwd:  gconfig.Shared.GetString("settings.db.redis.pwd"),
		DB:   gconfig.Shared.GetInt("settings.db.redis.db"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	return rdb, nil
}

// openMemoryStore picks where conversation memory lives.
func openMemoryStore(ctx context.Context,
	settings fabric.Settings,
	catalog *fabric.GormCatalog,
	rdb *redis.DB,
	logger logSDK.Logger,
) (henk.MemoryStore, error) {
	backend := settings.MemoryBackend
	if backend == "" {
		backend = "database"
		if rdb != nil {
			backend = "redis"
		}
	}

	kmsSettings, err := kms.LoadSettingsFromConfig()
	if err != nil {
		return nil, errors.Wrap(err, "load memory encryption settings")
	}
	var storeOpts []henk.KVMemoryOption
	if kmsSettings.Enabled() {
		sealer, err := kms.NewMemoryKMS(kmsSettings)
		if err != nil {
			return nil, errors.Wrap(err, "new memory kms")
		}
		storeOpts = append(storeOpts, henk.WithMemoryEncryption(sealer))
	}

	switch backend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("memory backend redis needs settings.db.redis.addr")
		}
		return henk.NewKVMemoryStore(rdb, settings.MemoryTTL, storeOpts...)
	case "database":
		db, err := catalog.SQLDB()
		if err != nil {
			return nil, err
		}
		table, err := kv.NewKv(ctx, db, kv.WithTableName("henk_memory"))
		if err != nil {
			return nil, errors.Wrap(err, "new memory table")
		}
		if purged, err := table.PurgeExpired(ctx); err != nil {
			logger.Warn("purge expired memory", zap.Error(err))
		} else if purged > 0 {
			logger.Info("purged expired memory", zap.Int64("sessions", purged))
		}
		return henk.NewKVMemoryStore(table, settings.MemoryTTL, storeOpts...)
	case "local":
		logger.Warn("conversation memory is kept in process")
		return henk.NewLocalMemoryStore(settings.MemoryTTL), nil
	default:
		return nil, errors.Errorf("unknown memory backend %q", backend)
	}
}

func newServices(ctx context.Context) (*services, error) {
	logger := log.Logger.Named("henk_fabric")
	settings := fabric.LoadSettingsFromConfig().Sanitize()

	catalog, err := openCatalog(ctx, settings, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := fabric.NewOpenAIEmbedder(
		settings.OpenAIBaseURL,
		settings.OpenAIAPIKey,
		settings.EmbeddingModel,
		settings.EmbeddingDimensions,
		fabric.WithEmbedderRateLimit(settings.RateLimitRPS, settings.RateLimitBurst),
		fabric.WithEmbedderLogger(logger.Named("embedder")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new embedder")
	}

	rdb, err := openRedis(ctx)
	if err != nil {
		return nil, err
	}

	var engineOpts []fabric.EngineOption
	if rdb != nil && settings.CacheEnabled {
		cache, err := fabric.NewRedisResultCache(rdb, settings.CacheTTL, logger.Named("search_cache"))
		if err != nil {
			return nil, errors.Wrap(err, "new result cache")
		}
		engineOpts = append(engineOpts, fabric.WithResultCache(cache))
	}

	memory, err := openMemoryStore(ctx, settings, catalog, rdb, logger)
	if err != nil {
		return nil, err
	}

	engine, err := fabric.NewEngine(embedder, catalog, settings, logger.Named("engine"), engineOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "new engine")
	}

	builder := fabric.NewCriteriaBuilder(settings.ExclusionPolicy(), settings.LightweightMaxGSM)
	advisor, err := henk.NewAdvisor(builder, engine, fabric.PairSelector{Scale: settings.TierScale}, memory, logger.Named("advisor"))
	if err != nil {
		return nil, errors.Wrap(err, "new advisor")
	}

	logger.Info("fabric services ready",
		zap.String("embedding_model", settings.EmbeddingModel),
		zap.Int("embedding_dimensions", settings.EmbeddingDimensions),
		zap.Bool("redis", rdb != nil),
		zap.String("memory_backend", settings.MemoryBackend),
		zap.Bool("cache", len(engineOpts) > 0))

	return &services{
		settings: settings,
		catalog:  catalog,
		builder:  builder,
		engine:   engine,
		advisor:  advisor,
	}, nil
}
