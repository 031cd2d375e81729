package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/wfg/transaction-webhook-service/internal/core/handler"
	"github.com/wfg/transaction-webhook-service/internal/core/logger"
	middlWre "github.com/wfg/transaction-webhook-service/internal/core/middleware"
	"github.com/wfg/transaction-webhook-service/internal/core/processor"
	"github.com/wfg/transaction-webhook-service/internal/core/repository/postgres"
	"github.com/wfg/transaction-webhook-service/internal/core/usecase"
	"github.com/wfg/transaction-webhook-service/internal/events/kafka"
	"github.com/wfg/transaction-webhook-service/pkg/config"
	"github.com/wfg/transaction-webhook-service/pkg/postgresdb"
)

type Server struct {
	router             *mux.Router
	addr               string
	log                logger.Logger
	httpServer         *http.Server
	transactionHandler *handler.TransactionHandler
	healthHandler      *handler.HealthHandler
	db                 *postgresdb.Database
	publisher          *kafka.Publisher
}

func NewServer(log logger.Logger) (*Server, error) {

	cfgDB, err := config.LoadConfigDB()
	if err != nil {
		return nil, err
	}

	cfgApp, err := config.LoadConfigApp()
	if err != nil {
		return nil, err
	}

	db, err := postgresdb.NewPostgresDB(*cfgDB, log)
	if err != nil {
		return nil, err
	}

	var publisher *kafka.Publisher
	var eventPublisher processor.EventPublisher
	if len(cfgApp.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfgApp.KafkaBrokers, "transaction_processed")
		eventPublisher = publisher
	}

	transactionRepository := postgres.NewPostgresTransactionRepo(db.DB, log)
	transactionUsecase := usecase.NewTransactionUsecase(transactionRepository, log)
	deferredProcessor := processor.NewProcessor(transactionUsecase, eventPublisher, cfgApp.ProcessingDelay, log)
	transactionHandler := handler.NewTransactionHandler(transactionUsecase, deferredProcessor, log)

	server := &Server{
		log:                log,
		addr:               cfgApp.HTTPAddr,
		router:             mux.NewRouter(),
		transactionHandler: transactionHandler,
		healthHandler:      handler.NewHealthHandler(),
		db:                 db,
		publisher:          publisher,
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	s.healthHandler.RegisterRoutes(s.router)
	s.transactionHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			err := s.httpServer.Shutdown(ctx)
			if err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		// Ожидающие отложенные задачи здесь не дожидаемся: очереди нет,
		// при остановке процесса они теряются

		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				s.log.Error("failed to close kafka publisher", logger.ErrorField("error", err))
			}
		}

		if s.db != nil {
			err := s.db.Close()
			if err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
