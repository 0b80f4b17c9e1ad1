package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/ses-client-auth/auth"
	"github.com/jrsteele09/ses-client-auth/internal/config"
	"github.com/jrsteele09/ses-client-auth/internal/metrics"
	"github.com/jrsteele09/ses-client-auth/server"
	"github.com/jrsteele09/ses-client-auth/session"
	"github.com/jrsteele09/ses-client-auth/visibility"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.Load()
	setupLogging(c)

	// Misconfigured signing keys must stop the process before it serves traffic.
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	displayAppname(c.AppName)

	ctx := context.Background()
	st, err := openStores(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	handler, err := newHandler(c, st)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newHandler(c *config.Config, st *stores) (http.Handler, error) {
	logger := log.Logger
	m := metrics.New()

	resolver, err := visibility.NewResolver(st.partnerships, st.engineers,
		visibility.WithTimeout(c.StoreTimeout),
		visibility.WithLogger(logger.With().Str("component", "visibility").Logger()),
	)
	if err != nil {
		return nil, err
	}

	codec, err := session.NewCodec(&c.Security)
	if err != nil {
		return nil, err
	}

	authenticator, err := auth.NewAuthenticator(st.credentials, resolver, codec,
		auth.WithStoreTimeout(c.StoreTimeout),
		auth.WithLogger(logger.With().Str("component", "auth").Logger()),
		auth.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	s, err := server.New(c, server.Deps{
		Auth:      authenticator,
		Resolver:  resolver,
		Engineers: st.engineers,
		Metrics:   m,
		Logger:    logger.With().Str("component", "http").Logger(),
		Health:    st.Ping,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func setupLogging(c *config.Config) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !c.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.With().Str("app", c.AppName).Logger()
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
