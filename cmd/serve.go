package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tcp_snm/slotpager/internal/api"
	"github.com/tcp_snm/slotpager/internal/service/browse_service"
)

var (
	apiConfig *api.Api
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the browse api",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func initBrowseService(ctx context.Context) (*browse_service.BrowseService, func()) {
	log.Info("initializing browse service")
	transport, release := initTransport(ctx, true)
	bs := &browse_service.BrowseService{
		Transport: transport,
		Defaults:  defaultConfig(),
	}
	if err := bs.Start(envInt("SESSION_CACHE_SIZE", browse_service.DefaultSessionCacheSize)); err != nil {
		panic(err)
	}
	return bs, release
}

func setCors(router *chi.Mux) {
	router.Use(
		cors.Handler(
			cors.Options{
				AllowedOrigins:   []string{"https://*", "http://*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
				ExposedHeaders:   []string{"Link"},
				MaxAge:           300,
			},
		),
	)
	log.Info("cors options has been set")
}

func serve(ctx context.Context) error {
	bs, release := initBrowseService(ctx)
	defer release()
	apiConfig = &api.Api{BrowseServiceConfig: bs}

	router := chi.NewRouter()
	setCors(router)
	router.Handle("/metrics", promhttp.Handler())

	router.Mount("/v1", NewV1Router())
	log.Info("v1 router has been mounted")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Warnf("port not found in environment. using default port %s", port)
	}
	apiAddress := os.Getenv("API_URL") + ":" + port

	srv := http.Server{
		Handler:           router,
		Addr:              apiAddress,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", apiAddress)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server cannot be started, %v", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
