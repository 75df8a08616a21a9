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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/audit"
	"github.com/brainsait/pulse/internal/channel"
	"github.com/brainsait/pulse/internal/console/handler"
	"github.com/brainsait/pulse/internal/console/server"
	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
	"github.com/brainsait/pulse/internal/infra/auth"
	"github.com/brainsait/pulse/internal/notify"
	"github.com/brainsait/pulse/internal/poller"
	"github.com/brainsait/pulse/internal/repository/postgres"
	"github.com/brainsait/pulse/internal/view"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	// 2. Метрики: отдельный листенер для Prometheus
	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Fatal("metrics listener failed", zap.Error(err))
		}
	}()

	// 3. Точка склейки: единственный писатель вью-модели
	merge := view.NewMerge(logger)

	// 4. Уведомления: лог всегда, Redis — если настроен
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sinks = append(sinks, notify.NewRedisSink(rdb, infra.RedisChanNotifications))
		logger.Info("redis notification fan-out enabled", zap.String("addr", cfg.Redis.Addr))
	}
	notifier := notify.NewNotifier(logger, metrics, sinks...)

	// 5. Журнал событий (опционально, по наличию database.url)
	var trail *audit.Trail
	if cfg.Database.URL != "" {
		repo, err := postgres.NewEventRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := repo.Ping(pingCtx); err != nil {
			logger.Fatal("database unreachable", zap.Error(err))
		}
		cancel()
		trail = audit.NewTrail(repo, logger, metrics)
		trail.Start()
		logger.Info("event trail enabled")
	}

	// 6. Live-канал: оба продюсера пишут только через merge
	client := channel.NewClient(cfg.Upstream.WSURL, channel.Options{
		DialTimeout:   cfg.Upstream.DialTimeout,
		ReconnectBase: cfg.Channel.ReconnectBase,
		ReconnectMax:  cfg.Channel.ReconnectMax,
	}, logger, metrics)
	client.OnStateChange(merge.ApplyState)
	client.OnEvent(merge.ApplyEvent)
	client.OnEvent(notifier.HandleEvent)
	if trail != nil {
		client.OnEvent(trail.HandleEvent)
	}

	// 7. Поллер: у каждого ресурса свой каданс и своя цепочка надежности
	api := poller.NewUpstreamAPI(cfg.Upstream.BaseURL)
	agg := poller.NewAggregator(cfg.Upstream.FetchTimeout, logger, metrics)

	register := func(name domain.ResourceKind, fetch poller.Fetcher, interval time.Duration) {
		rf := poller.NewReliableFetcher(string(name), fetch, metrics)
		if err := agg.Register(name, rf.Fetch, interval); err != nil {
			logger.Fatal("resource registration failed", zap.Error(err))
		}
	}
	register(domain.ResourceMetrics, api.Metrics, cfg.Poller.MetricsInterval)
	register(domain.ResourceAgents, api.Agents, cfg.Poller.AgentsInterval)
	register(domain.ResourceAlerts, api.Alerts, cfg.Poller.AlertsInterval)
	register(domain.ResourceWorkflows, api.Workflows, cfg.Poller.WorkflowsInterval)
	agg.Subscribe(merge.ApplyResource)

	// 8. Локальный API
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			logger.Fatal("public key parse failed", zap.Error(err))
		}
		validator = auth.NewBaseValidator(pub)
		logger.Info("API auth enabled")
	}
	dashH := handler.NewDashboardHandler(merge, client, agg, notifier)
	consoleSrv := server.NewConsoleServer(cfg, logger, validator, dashH)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 9. Запуск
	client.Connect()
	agg.Start()

	go func() {
		logger.Info("pulse aggregator started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 10. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("pulse aggregator stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Порядок важен: сначала глушим продюсеров, потом дописываем журнал
	client.Disconnect()
	agg.Stop()
	if trail != nil {
		trail.Stop()
	}

	logger.Info("pulse aggregator exited properly")
}
