package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-importer/internal/api"
	"recipe-importer/internal/core/dedup"
	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/core/source"
	"recipe-importer/internal/infrastructure/config"
	"recipe-importer/internal/infrastructure/store"
	"recipe-importer/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "daily", "執行模式: daily | manual | serve")
	strategy := flag.String("strategy", "", "manual 模式使用的策略名稱")
	count := flag.Int("count", 0, "manual 模式的接受上限（0 表示使用策略目標數）")
	flag.Parse()

	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("mode", *mode),
		zap.String("source_api_key", config.MaskAPIKey(cfg.Source.APIKey)),
		zap.String("campaign_start", cfg.Campaign.StartDate),
		zap.Int("daily_quota", cfg.Campaign.DailyQuota),
	)

	// 初始化儲存層
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		common.LogFatal("Failed to open recipe store", zap.Error(err))
	}
	defer db.Close()

	// 初始化跨場次 id 快取（未啟用時為 nil）
	idCache, err := dedup.NewRedisIDSet(cfg.Dedup)
	if err != nil {
		// 快取不可用只降級，不阻止匯入
		common.LogWarn("external id 快取初始化失敗", zap.Error(err))
		idCache = nil
	}
	defer idCache.Close()

	deduplicator := dedup.NewDeduplicator(cfg.Dedup, idCache)
	sourceClient := source.NewClient(cfg)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	orchestrator := importer.NewOrchestrator(cfg, sourceClient, db, deduplicator, rng)

	switch *mode {
	case "daily":
		runOnce(orchestrator, func(ctx context.Context) (*importer.ImportReport, error) {
			return orchestrator.ExecuteDailyImport(ctx)
		})
	case "manual":
		if *strategy == "" {
			fmt.Println("manual mode requires -strategy")
			os.Exit(1)
		}
		runOnce(orchestrator, func(ctx context.Context) (*importer.ImportReport, error) {
			return orchestrator.ExecuteManualImport(ctx, *strategy, *count)
		})
	case "serve":
		serve(cfg, orchestrator, db)
	default:
		fmt.Printf("unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

// runOnce 執行單一場次並輸出文字報告
func runOnce(orchestrator *importer.Orchestrator, run func(context.Context) (*importer.ImportReport, error)) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := run(ctx)
	if err != nil {
		common.LogError("匯入場次失敗", zap.Error(err))
		os.Exit(1)
	}

	fmt.Println(report.Render())
}

// serve 啟動管理介面伺服器
func serve(cfg *config.Config, orchestrator *importer.Orchestrator, db *store.DB) {
	router, err := api.SetupRouter(cfg, orchestrator, db)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
