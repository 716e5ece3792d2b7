package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fabworks/backoffice/internal/auth"
	"github.com/fabworks/backoffice/internal/config"
	handlers "github.com/fabworks/backoffice/internal/handlers/v1alpha1"
	"github.com/fabworks/backoffice/internal/ipp"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/service"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/pkg/metrics"
	"github.com/fabworks/backoffice/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	queue    *queue.Queue
	objects  objstore.ObjectStore
	listener net.Listener
}

// New returns a new instance of the back-office api server.
func New(
	cfg *config.Config,
	store store.Store,
	queue *queue.Queue,
	objects objstore.ObjectStore,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		queue:    queue,
		objects:  objects,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		authenticator.Authenticator,
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	jobService := service.NewJobService(s.store, s.queue, s.objects)
	aggregateService := service.NewAggregateService(jobService, s.objects)
	printer := ipp.NewClient(s.cfg.Print.Endpoint, s.cfg.Print.Timeout)
	printService := service.NewPrintService(jobService, s.objects, printer, s.cfg.Print.DefaultDestination)

	h := handlers.NewServiceHandler(jobService, aggregateService, printService)
	router.Route("/api/v1alpha1", h.Routes)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
