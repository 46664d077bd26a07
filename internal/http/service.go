package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	apicontract "github.com/tuanvumaihuynh/pharmacy-inventory/api-contract"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/config"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/apierr"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/metric"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/middleware"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/http/swagger"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/service"
)

var tracer = otel.Tracer("internal/http")

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metric.Metrics

	inventorySvc service.InventoryService
	saleSvc      service.SaleService
	directorySvc service.DirectoryService
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	log *slog.Logger,
	registry *prometheus.Registry,
	inventorySvc service.InventoryService,
	saleSvc service.SaleService,
	directorySvc service.DirectoryService,
) *Service {
	return &Service{
		cfg:          cfg,
		logger:       log.With(slog.String("service", "http")),
		registry:     registry,
		metrics:      metric.New(registry),
		inventorySvc: inventorySvc,
		saleSvc:      saleSvc,
		directorySvc: directorySvc,
	}
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handler, err := s.Handler(ctx)
	if err != nil {
		return nil, err
	}

	return s.RunWithServer(ctx, handler)
}

// Handler builds the router with every middleware and route registered.
func (s *Service) Handler(ctx context.Context) (http.Handler, error) {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		swagger.Register(r)
	}

	if err := s.RegisterHandlers(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(ctx context.Context, r chi.Router) error {
	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
		Registry: s.registry,
	}))

	var validate func(http.Handler) http.Handler
	if s.cfg.RequestValidation {
		v, err := middleware.NewOpenAPIValidator(ctx, apicontract.GetSpecBytes())
		if err != nil {
			return fmt.Errorf("create openapi validator: %w", err)
		}
		validate = v.Middleware(s.handleRequestError)
	}

	r.Group(func(r chi.Router) {
		if validate != nil {
			r.Use(validate)
		}

		products := newProductHandler(s.inventorySvc, s.handleResponseError)
		r.Get("/products", products.ListProducts)
		r.Post("/products", products.CreateProduct)
		r.Get("/products/low-stock", products.ListLowStockProducts)
		r.Get("/products/barcode/{barcode}", products.GetProductByBarcode)
		r.Get("/products/{productID}", products.GetProduct)
		r.Put("/products/{productID}", products.UpdateProduct)
		r.Delete("/products/{productID}", products.DeleteProduct)

		sales := newSaleHandler(s.inventorySvc, s.saleSvc, s.handleResponseError)
		r.Get("/sales", sales.ListSales)
		r.Post("/sales", sales.Checkout)
		r.Get("/sales/{saleID}", sales.GetSale)

		directory := newDirectoryHandler(s.directorySvc, s.handleResponseError)
		r.Get("/operators", directory.ListOperators)
		r.Post("/operators", directory.CreateOperator)
		r.Get("/operators/{operatorID}", directory.GetOperator)
		r.Get("/customers", directory.ListCustomers)
		r.Post("/customers", directory.CreateCustomer)
		r.Get("/customers/{customerID}", directory.GetCustomer)
	})

	return nil
}

func (s *Service) handleRequestError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)
	if res.StatusCode >= http.StatusInternalServerError {
		res = apierr.New(&apierr.InvalidParamError{Name: "request", Err: err})
	}

	s.logger.WarnContext(r.Context(), "http request rejected", slog.Any("error", err))
	if err := writeJSON(w, res.StatusCode, res); err != nil {
		s.logger.WarnContext(r.Context(), "error encoding error request",
			slog.Any("error", err))
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	if err := writeJSON(w, res.StatusCode, res); err != nil {
		s.logger.ErrorContext(r.Context(), "error encoding error response",
			slog.Any("error", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
