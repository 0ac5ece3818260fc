// Package web gin server
package web

import (
	"net/http"
	"net/url"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/henk-fabric/library/throttle"
)

// RouterOption customizes NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	allowedOrigins []string
	release        bool
	throttle       *throttle.ClientThrottle
}

// WithThrottle rejects /mcp requests over the rate limit with 429, keyed by client IP.
func WithThrottle(th *throttle.ClientThrottle) RouterOption {
	return func(o *routerOptions) {
		o.throttle = th
	}
}

// WithAllowedOrigins sets the browser origins allowed to call the API.
// An entry ".example.com" matches example.com and every subdomain of it.
func WithAllowedOrigins(origins []string) RouterOption {
	return func(o *routerOptions) {
		for _, origin := range origins {
			origin = strings.ToLower(strings.TrimSpace(origin))
			if origin != "" {
				o.allowedOrigins = append(o.allowedOrigins, origin)
			}
		}
	}
}

// WithReleaseMode switches gin into release mode.
func WithReleaseMode(release bool) RouterOption {
	return func(o *routerOptions) {
		o.release = release
	}
}

// NewRouter builds the HTTP surface: /health and the MCP endpoint at /mcp.
func NewRouter(mcpHandler http.Handler, logger logSDK.Logger, opts ...RouterOption) *gin.Engine {
	var options routerOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.release {
		gin.SetMode(gin.ReleaseMode)
	}

	server := gin.New()
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLogger(logger.Named("gin")),
		),
		allowCORS(options.allowedOrigins),
	)

	server.Any("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})
	if mcpHandler != nil {
		handlers := []gin.HandlerFunc{}
		if options.throttle != nil {
			handlers = append(handlers, throttleByClient(options.throttle))
		}
		handlers = append(handlers, gin.WrapH(mcpHandler))
		server.Any("/mcp", handlers...)
	}

	return server
}

// RunServer blocks serving router on addr.
func RunServer(addr string, router *gin.Engine, logger logSDK.Logger) error {
	logger.Info("listening on http", zap.String("addr", addr))
	return router.Run(addr)
}

func throttleByClient(th *throttle.ClientThrottle) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodOptions || th.Allow(ctx.ClientIP()) {
			ctx.Next()
			return
		}

		gmw.GetLogger(ctx).Warn("request throttled", zap.String("client", ctx.ClientIP()))
		ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}

func originAllowed(origin string, allowed []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, rule := range allowed {
		if strings.HasPrefix(rule, ".") {
			if host == rule[1:] || strings.HasSuffix(host, rule) {
				return true
			}
			continue
		}
		if host == rule || strings.ToLower(origin) == rule {
			return true
		}
	}
	return false
}

func allowCORS(allowed []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := strings.TrimSpace(ctx.Request.Header.Get("Origin"))

		if origin != "" && originAllowed(origin, allowed) {
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, Mcp-Session-Id, Mcp-Protocol-Version")
			ctx.Header("Access-Control-Expose-Headers", "Mcp-Session-Id")
			ctx.Header("Access-Control-Max-Age", "86400")
			ctx.Header("Vary", "Origin")

			if ctx.Request.Method == http.MethodOptions {
				ctx.AbortWithStatus(http.StatusNoContent)
				return
			}
		} else if origin != "" && ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusForbidden)
			return
		}

		ctx.Next()
	}
}
