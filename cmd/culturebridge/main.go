package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/client"
	"github.com/totegamma/culturebridge/internal/config"
	"github.com/totegamma/culturebridge/internal/infra/database"
	"github.com/totegamma/culturebridge/internal/infra/gateway"
	"github.com/totegamma/culturebridge/internal/infra/metrics"
	"github.com/totegamma/culturebridge/internal/infra/repository"
	"github.com/totegamma/culturebridge/internal/present/rest"
	authmw "github.com/totegamma/culturebridge/internal/present/rest/middleware"
	"github.com/totegamma/culturebridge/internal/service"
	"github.com/totegamma/culturebridge/internal/usecase"
	"github.com/totegamma/culturebridge/nostr"
)

const serviceName = "culturebridge"

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	path := os.Getenv("CULTUREBRIDGE_CONFIG")
	if path == "" {
		path = "/etc/culturebridge/config.yaml"
	}

	conf, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()), slog.String("path", path))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			panic(err)
		}
		defer shutdown(context.Background())
	}

	signer, err := nostr.NewKeySigner(conf.NodeInfo.PrivateKeyHex)
	if err != nil {
		panic(err)
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	var revisions usecase.RevisionLog
	if conf.Server.PostgresDsn != "" {
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			panic("failed to connect database")
		}
		if err := database.MigratePostgres(db); err != nil {
			panic("failed to migrate database")
		}
		revisions = repository.NewRevisionRepository(db)
	} else {
		slog.Warn("no postgresDsn configured, revision history is disabled", slog.String("module", "main"))
	}

	var (
		signals  *service.SignalService
		notifier usecase.Notifier
	)
	if conf.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisDB)
		if err != nil {
			panic(err)
		}
		defer rdb.Close()
		signals = service.NewSignalService(rdb)
		notifier = signals
	}

	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	cl := client.New()
	relays := gateway.NewRelayGateway(cl, conf.Relays, conf.Timeouts.Query, conf.Timeouts.Publish, m)
	blossom := gateway.NewBlossomGateway(cl, conf.BlossomServers, mc, conf.Timeouts.Upload, m)

	validator := usecase.NewValidator(conf.ValidatorLimits())
	recordUsecase := usecase.NewRecordUsecase(relays, relays, blossom, validator, revisions, notifier)
	republishUsecase := usecase.NewRepublishUsecase(relays, relays, blossom, validator, revisions, notifier)
	batchUsecase := usecase.NewBatchUsecase(republishUsecase, relays, conf.Server.SessionTTL)

	info := culturebridge.NodeInfo{
		Domain:         conf.NodeInfo.FQDN,
		PubKey:         conf.NodeInfo.PubKey,
		Npub:           conf.NodeInfo.Npub,
		Relays:         relays.Relays(),
		BlossomServers: blossom.Servers(),
	}

	handler := rest.NewHandler(info, signer, recordUsecase, republishUsecase, batchUsecase, validator, relays, signals)
	auth := authmw.NewAuthMiddleware(service.NewAuthService(conf.NodeInfo.FQDN, conf.NodeInfo.PubKey))

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("256M"))
	e.Use(auth.IdentifyIdentity)

	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		if err := e.Start(conf.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
			stop()
		}
	}()

	slog.Info(
		"culturebridge node started",
		slog.String("pubkey", conf.NodeInfo.PubKey),
		slog.Int("relays", len(conf.Relays)),
		slog.Int("blossomServers", len(conf.BlossomServers)),
		slog.String("module", "main"),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()), slog.String("module", "main"))
	}
}
