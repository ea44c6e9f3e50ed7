// Package main runs the gait tracking server: HTTP API and gRPC on one port.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/DTPriya20/click-gait/internal/classifier"
	"github.com/DTPriya20/click-gait/internal/config"
	"github.com/DTPriya20/click-gait/internal/worker"
)

// Version is set at build time via ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("gait-server", pflag.ExitOnError)
	addr := fs.String("addr", "", "listen address for HTTP and gRPC (overrides GAIT_HTTP_ADDR)")
	storeKind := fs.String("store", "", "session store: memory, sqlite, postgres, redis or cookie (overrides GAIT_STORE)")
	modelPath := fs.String("model", "", "classifier model file (overrides GAIT_MODEL_PATH)")
	classifierAddr := fs.String("classifier-addr", "", "remote classifier gRPC address (overrides GAIT_CLASSIFIER_ADDR)")
	serveClassifier := fs.Bool("serve-classifier", false, "also expose the local model as the Classifier gRPC service")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[1:])

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure data directory")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if fs.Changed("addr") {
		cfg.HTTPAddr = *addr
	}
	if fs.Changed("store") {
		cfg.Store = *storeKind
	}
	if fs.Changed("model") {
		cfg.ModelPath = *modelPath
	}
	if fs.Changed("classifier-addr") {
		cfg.ClassifierAddr = *classifierAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, *serveClassifier); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, serveClassifier bool) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cls, closeClassifier, err := openClassifier(cfg)
	if err != nil {
		return err
	}
	defer closeClassifier()

	svc, err := worker.NewService(worker.Options{
		Version:    Version,
		Config:     cfg,
		Classifier: cls,
		Store:      st,
	})
	if err != nil {
		return err
	}
	defer svc.Shutdown()

	grpcServer := grpc.NewServer()
	if err := svc.RegisterGRPC(grpcServer); err != nil {
		log.Warn().Err(err).Str("store", cfg.Store).Msg("Tracker gRPC service disabled")
	}
	if local, ok := cls.(*classifier.Local); ok && serveClassifier {
		classifier.RegisterServer(grpcServer, local)
	}

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	httpServer := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopWatchers := startWatchers(cls, stop)
	defer stopWatchers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreClosed(grpcServer.Serve(grpcL))
	})
	g.Go(func() error {
		return ignoreClosed(httpServer.Serve(httpL))
	})
	g.Go(func() error {
		return ignoreClosed(mux.Serve())
	})
	g.Go(func() error {
		return purgeExpired(gctx, st)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		grpcServer.GracefulStop()
		_ = lis.Close()
		return nil
	})

	log.Info().
		Str("addr", lis.Addr().String()).
		Str("store", cfg.Store).
		Str("version", Version).
		Msg("Serving HTTP and gRPC")

	return g.Wait()
}

func ignoreClosed(err error) error {
	if err == nil ||
		errors.Is(err, http.ErrServerClosed) ||
		errors.Is(err, grpc.ErrServerStopped) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
