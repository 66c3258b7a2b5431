package api

import (
	"context"
	"net/http"
	"time"

	"recipe-importer/internal/api/handlers/health"
	importHandler "recipe-importer/internal/api/handlers/importer"
	"recipe-importer/internal/api/middleware"
	coreimporter "recipe-importer/internal/core/importer"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 管理介面請求超時
const timeoutDuration = 60 * time.Second

// SetupRouter 設置管理介面路由
func SetupRouter(cfg *config.Config, orchestrator *coreimporter.Orchestrator, store coreimporter.RecipeStore) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 全局中間件：設置超時和配置
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Set("config", cfg)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  "REQUEST_TIMEOUT",
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		handler := importHandler.NewHandler(orchestrator, store)

		importGroup := api.Group("/import")
		{
			// 活動進度與排程器狀態
			importGroup.GET("/status", handler.HandleStatus)

			// 觸發當日排程匯入（背景執行）
			importGroup.POST("/run", handler.HandleRunDaily)

			// 以指定策略手動匯入
			importGroup.POST("/manual", handler.HandleManualImport)

			// 最近一次場次報告
			importGroup.GET("/report", handler.HandleLatestReport)

			// 可用策略清單
			importGroup.GET("/strategies", handler.HandleStrategies)
		}

		api.GET("/recipes/stats", handler.HandleStats)
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	return router, nil
}
