package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/ses-client-auth/auth"
	"github.com/jrsteele09/ses-client-auth/engineers"
	"github.com/jrsteele09/ses-client-auth/internal/config"
	"github.com/jrsteele09/ses-client-auth/internal/metrics"
	"github.com/jrsteele09/ses-client-auth/visibility"
	"github.com/rs/zerolog"
)

// EngineerCatalog is the engineer CRUD collaborator. List applies the filter it is given.
type EngineerCatalog interface {
	engineers.Directory
	List(ctx context.Context, filter visibility.Filter) ([]engineers.Engineer, error)
}

// Deps holds the services the server routes to.
type Deps struct {
	Auth      *auth.Authenticator
	Resolver  *visibility.Resolver
	Engineers EngineerCatalog
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	// Health reports backing store reachability; nil means always healthy.
	Health func(ctx context.Context) error
}

type Server struct {
	env       string
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    *config.Config
	auth      *auth.Authenticator
	resolver  *visibility.Resolver
	engineers EngineerCatalog
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	health    func(ctx context.Context) error
	limiter   *ipRateLimiter
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("[Server New] authenticator is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("[Server New] visibility resolver is required")
	}
	if deps.Engineers == nil {
		return nil, fmt.Errorf("[Server New] engineer catalog is required")
	}

	s := &Server{
		env:       cfg.Env,
		mux:       http.NewServeMux(),
		config:    cfg,
		auth:      deps.Auth,
		resolver:  deps.Resolver,
		engineers: deps.Engineers,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		health:    deps.Health,
		limiter:   newIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
	}

	s.initRoutes()
	s.handler = s.metrics.Instrument(s.mux)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDev {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			s.logger.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
