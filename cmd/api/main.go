package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nemonet1337/tanaoroshiGo/internal/config"
	"github.com/nemonet1337/tanaoroshiGo/pkg/stock"
	"github.com/nemonet1337/tanaoroshiGo/pkg/stock/storage"
)

func main() {
	// .envがあれば読み込む（なくてもよい）
	_ = godotenv.Load()

	// 設定読み込み（CONFIG_FILE指定時はYAMLを重ねる）
	var cfg *config.Config
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// データベース接続
	store, err := storage.NewPostgreSQLStore(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// メトリクス初期化
	var metrics *stock.Metrics
	if cfg.API.EnableMetrics {
		metrics = stock.NewMetrics(prometheus.DefaultRegisterer)
	}

	// エンジン初期化
	stockConfig := &stock.Config{
		MaxOpenStockTakes: cfg.Stock.MaxOpenStockTakes,
		DefaultListLimit:  cfg.Stock.DefaultListLimit,
	}

	engine := stock.NewEngine(store, logger, metrics, stockConfig)
	stockTakes := stock.NewStockTakeEngine(store, logger, metrics, stockConfig)
	replayer := stock.NewReplayer(store, logger)
	reporter := stock.NewReporter(store, logger)

	// HTTPハンドラー設定
	handlers := NewHandlers(engine, stockTakes, replayer, reporter, store, logger)
	router := setupRouter(handlers, cfg)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("在庫管理APIサーバーを開始します", zap.Int("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// newLogger builds a zap logger from logging configuration
// ログ設定からzapロガーを構築
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("無効なログレベル: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, cfg *config.Config) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// メトリクス
	if cfg.API.EnableMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 在庫操作
	api.HandleFunc("/stock/reserve", handlers.Reserve).Methods("POST")
	api.HandleFunc("/stock/release", handlers.Release).Methods("POST")
	api.HandleFunc("/stock/commit", handlers.Commit).Methods("POST")
	api.HandleFunc("/stock/adjust", handlers.Adjust).Methods("POST")
	api.HandleFunc("/stock/reservations/{reservationId}", handlers.GetReservation).Methods("GET")

	// 棚卸
	api.HandleFunc("/stock-takes", handlers.StartStockTake).Methods("POST")
	api.HandleFunc("/stock-takes", handlers.ListStockTakes).Methods("GET")
	api.HandleFunc("/stock-takes/{stockTakeId}", handlers.GetStockTake).Methods("GET")
	api.HandleFunc("/stock-takes/{stockTakeId}/items", handlers.ListStockTakeItems).Methods("GET")
	api.HandleFunc("/stock-takes/{stockTakeId}/items", handlers.CountStockTakeItem).Methods("POST")
	api.HandleFunc("/stock-takes/{stockTakeId}/cancel", handlers.CancelStockTake).Methods("POST")
	api.HandleFunc("/stock-takes/{stockTakeId}/complete", handlers.CompleteStockTake).Methods("POST")

	// 商品管理
	api.HandleFunc("/items", handlers.CreateItem).Methods("POST")
	api.HandleFunc("/items", handlers.ListItems).Methods("GET")
	api.HandleFunc("/items/search", handlers.SearchItems).Methods("GET")
	api.HandleFunc("/items/{itemId}", handlers.GetItem).Methods("GET")
	api.HandleFunc("/items/{itemId}", handlers.ArchiveItem).Methods("DELETE")
	api.HandleFunc("/items/{itemId}/movements", handlers.GetItemMovements).Methods("GET")
	api.HandleFunc("/items/{itemId}/replay", handlers.ReplayItem).Methods("GET")

	// 台帳照会
	api.HandleFunc("/movements/case/{caseId}", handlers.GetCaseMovements).Methods("GET")

	// レポート
	api.HandleFunc("/reports/low-stock", handlers.LowStockReport).Methods("GET")
	api.HandleFunc("/reports/value", handlers.StockValueReport).Methods("GET")
	api.HandleFunc("/reports/stock-takes/{stockTakeId}/variance", handlers.StockTakeVarianceReport).Methods("GET")

	// CORS設定（開発用）
	if cfg.API.EnableCORS {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// リクエスト処理
			next.ServeHTTP(w, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
