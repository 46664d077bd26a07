package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/event"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/log"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/relay"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/mq"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/telemetry"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/cmdutil"
	"github.com/tuanvumaihuynh/pharmacy-inventory/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running standalone application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log       config.Log
		Postgres  config.Postgres
		HTTP      config.HTTP
		Inventory config.Inventory
		Relay     config.Relay
		Kafka     config.Kafka
		Otel      config.Otel
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pgxPool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error creating pgx pool: %w", err)
	}
	defer pgxPool.Close()

	dbClient := db.NewClient(pgxPool)

	kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
	if err != nil {
		return fmt.Errorf("error creating kafka producer: %w", err)
	}
	defer kafkaProducer.Close()

	kafkaConsumer, err := mq.NewKafkaConsumer(ctx, cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("error creating kafka consumer: %w", err)
	}
	defer kafkaConsumer.Close()

	v, err := validator.NewDefaultValidator()
	if err != nil {
		return fmt.Errorf("error creating validator: %w", err)
	}

	productRepository := repository.NewProductRepository(dbClient)
	saleRepository := repository.NewSaleRepository(dbClient)
	orderLineRepository := repository.NewOrderLineRepository(dbClient)
	outboxMsgRepository := repository.NewOutboxMsgRepository(dbClient)
	operatorRepository := repository.NewOperatorRepository(dbClient)
	customerRepository := repository.NewCustomerRepository(dbClient)

	metrics := service.NewMetrics(registry)
	lowStock := service.NewLowStockMonitor(productRepository, metrics)

	inventoryService := service.NewInventoryService(service.InventoryServiceParams{
		DB:            dbClient,
		Config:        cfg.Inventory,
		Logger:        logger,
		Metrics:       metrics,
		Validator:     v,
		LowStock:      lowStock,
		ProductRepo:   productRepository,
		SaleRepo:      saleRepository,
		OrderLineRepo: orderLineRepository,
		OutboxMsgRepo: outboxMsgRepository,
	})
	saleService := service.NewSaleService(service.SaleServiceParams{
		DB:            dbClient,
		Config:        cfg.Inventory,
		Logger:        logger,
		Metrics:       metrics,
		LowStock:      lowStock,
		ProductRepo:   productRepository,
		SaleRepo:      saleRepository,
		OutboxMsgRepo: outboxMsgRepository,
	})
	directoryService := service.NewDirectoryService(service.DirectoryServiceParams{
		Logger:       logger,
		Validator:    v,
		OperatorRepo: operatorRepository,
		CustomerRepo: customerRepository,
	})

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	wg.Go(func() {
		svc := event.New(logger, kafkaConsumer, lowStock, event.NewLogSink(logger))
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running event service: %w", err))
		}
		logger.InfoContext(ctx, "event service started")

		<-interruptChan

		logger.InfoContext(ctx, "event service is shutting down")
		cleanup()

		logger.InfoContext(ctx, "event service is stopped")
	})

	wg.Go(func() {
		svc := http.New(cfg.HTTP, logger, registry, inventoryService, saleService, directoryService)
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running http service: %w", err))
		}

		logger.InfoContext(ctx, "http service started", slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)))

		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	if cfg.Relay.Enabled {
		wg.Go(func() {
			svc := relay.NewService(cfg.Relay, logger, dbClient, outboxMsgRepository, kafkaProducer)
			cleanup := svc.Run(ctx)
			logger.InfoContext(ctx, "relay service started")

			<-interruptChan

			logger.InfoContext(ctx, "relay service is shutting down")
			cleanup()

			logger.InfoContext(ctx, "relay service is stopped")
		})
	}

	wg.Wait()

	return nil
}
