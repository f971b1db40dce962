package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/inklet/inklet/client"
	"github.com/inklet/inklet/internal/config"
	"github.com/inklet/inklet/internal/infra/database"
	"github.com/inklet/inklet/internal/infra/gateway"
	"github.com/inklet/inklet/internal/infra/repository"
	"github.com/inklet/inklet/internal/present/rest"
	"github.com/inklet/inklet/internal/service"
	"github.com/inklet/inklet/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}

	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	cacheRepo := repository.NewCacheRepository(rdb)
	strokeRepo := repository.NewStrokeRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(mc)

	cl := client.New(conf.Server.LedgerEndpoint)
	ledger := gateway.NewLedgerGateway(cl)
	defer ledger.Close()

	signal := service.NewSignalService(rdb)

	allocator := usecase.NewAllocatorUsecase(cacheRepo, txRepo, ledger)
	engine := usecase.NewEngineUsecase(allocator, cacheRepo, strokeRepo, txRepo, ledger, snapshotRepo, signal)
	visibility := usecase.NewVisibilityUsecase(cacheRepo, strokeRepo, txRepo, snapshotRepo)
	clear := usecase.NewClearUsecase(allocator, cacheRepo, txRepo, ledger, snapshotRepo, signal)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
		} else {
			defer shutdown(context.Background())
			e.Use(otelecho.Middleware("inklet"))
		}
	}

	h := rest.NewHandler(allocator, engine, visibility, clear, signal)
	h.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("inklet"),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
