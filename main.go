package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"product-studio-server/modules/batch"
	"product-studio-server/modules/common/config"
	"product-studio-server/modules/common/database"
	"product-studio-server/modules/common/logger"
	"product-studio-server/modules/common/obs"
	redisClient "product-studio-server/modules/common/redis"
	"product-studio-server/modules/common/storage"
	"product-studio-server/modules/insights"
	"product-studio-server/modules/processing"
	"product-studio-server/modules/providers/bgremoval"
	"product-studio-server/modules/providers/cdn"
	"product-studio-server/modules/providers/copywriter"
	"product-studio-server/modules/providers/pdfextract"
	"product-studio-server/modules/providers/reconstruct"
	"product-studio-server/modules/providers/vision"
	"product-studio-server/modules/realtime"
	"product-studio-server/modules/upload"
	"product-studio-server/modules/worker"
)

// version - 빌드 시 -ldflags "-X main.version=..." 로 주입
var version = "dev"

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": obs.ServiceName,
		"version": version,
	})
}

// buildProviders - 설정된 provider만 채움 (nil 포인터가 interface로 들어가지 않도록)
func buildProviders(ctx context.Context, cfg *config.Config, store storage.ObjectStore, uploader *upload.Uploader, fetcher *upload.HTTPFetcher) (processing.Providers, *copywriter.GeminiWriter) {
	p := processing.Providers{
		Objects: store,
		Assets:  uploader,
		Fetcher: fetcher,
	}

	if c := cdn.New(cdn.Config{
		BaseURL:   cfg.CDNBaseURL,
		CloudName: cfg.CDNCloudName,
		APISecret: cfg.CDNAPISecret,
		Sign:      cfg.CDNSignURLs,
	}); c.Configured() {
		p.CDN = c
	} else {
		log.Warn().Msg("⚠️  CDN_CLOUD_NAME not set, CDN operations will fail")
	}

	if c := bgremoval.New(cfg.BgRemovalURL, cfg.BgRemovalAPIKey); c.Configured() {
		p.BgRemoval = c
	}

	if cfg.VisionAPIKey != "" {
		v, err := vision.New(ctx, cfg.VisionAPIKey)
		if err != nil {
			log.Error().Err(err).Msg("❌ Vision client init failed, auto-detect disabled")
		} else {
			p.Vision = v
		}
	}

	var gemini *copywriter.GeminiWriter
	if w := copywriter.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel); w.Configured() {
		p.Copy = w
		gemini = w
	} else {
		p.Copy = copywriter.TemplateWriter{}
	}

	if s := reconstruct.NewService(cfg.ReconstructURL, cfg.ReconstructAPIKey, cfg.ReconstructPollInterval, cfg.ReconstructMaxAttempts); s.Configured() {
		p.Reconstruct = s
	}

	if c := pdfextract.New(cfg.PDFExtractURL, cfg.PDFExtractSecret); c.Configured() {
		p.PDF = c
	}

	log.Info().
		Bool("cdn", p.CDN != nil).
		Bool("bg_removal", p.BgRemoval != nil).
		Bool("vision", p.Vision != nil).
		Bool("gemini", gemini != nil).
		Bool("reconstruct", p.Reconstruct != nil).
		Bool("pdf_extract", p.PDF != nil).
		Msg("✅ Providers configured")
	return p, gemini
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log.Logger = logger.New(cfg)

	shutdownTracing := obs.Init(cfg.OTLPEndpoint, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisClient.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to Redis")
	}
	defer rdb.Close()

	db, err := database.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create database client")
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create object store")
	}

	fetcher := upload.NewHTTPFetcher(cfg.MaxUploadBytes)
	uploader := upload.NewUploader(store, db, fetcher, cfg.MaxUploadBytes)

	providers, gemini := buildProviders(ctx, cfg, store, uploader, fetcher)
	engine := processing.NewEngine(providers)

	// 배치 파이프라인 + 완료 리스너
	orchestrator := batch.NewOrchestrator(cfg, uploader, engine)
	statusStore := batch.NewStatusStore(rdb)
	hub := realtime.NewHub()

	orchestrator.OnBatchComplete(statusStore.OnComplete)
	orchestrator.OnBatchComplete(batch.RecordListener(db))
	orchestrator.OnBatchComplete(batch.MetricsListener)
	orchestrator.OnBatchComplete(hub.OnBatchComplete)

	executor := &batch.Executor{
		Submitter: orchestrator,
		Status:    statusStore,
		Sink:      hub,
	}

	// Redis Queue Worker 시작 (백그라운드)
	queue := worker.NewQueue(rdb)
	go worker.NewWorker(queue, executor, cfg.WorkerMaxJobs).Start(ctx)

	hub.StartCleanup(ctx)

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)
	r.Use(obs.MetricsMiddleware)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	batch.NewHandler(executor, queue, cfg.MaxUploadBytes).RegisterRoutes(r)
	processing.NewHandler(engine).RegisterRoutes(r)
	worker.NewHandler(queue).RegisterRoutes(r)
	hub.RegisterRoutes(r)

	// nil *GeminiWriter를 interface로 넘기지 않음 (insights가 template으로 대체)
	var writer processing.Copywriter
	if gemini != nil {
		writer = gemini
	}
	insights.NewHandler(providers.Vision, writer, providers.CDN).RegisterRoutes(r)

	if cfg.StorageDriver == "filesystem" {
		r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FSRoot))))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           obs.WrapHTTP(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("🚀 Product Studio Server starting")
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ HTTP server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ Tracer shutdown failed")
	}
	log.Info().Msg("✅ Server stopped")
}
