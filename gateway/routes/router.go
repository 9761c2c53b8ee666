package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftmarket/gateway/middleware"
	"nftmarket/rpc"
)

// Rate limit keys applied to the API groups.
const (
	LimitExecute = "execute"
	LimitQuery   = "query"
)

// AnonymousPaths lists the read-only prefixes that may skip authentication.
var AnonymousPaths = []string{"/v1/query", "/v1/listings", "/v1/sales", "/v1/events"}

type Config struct {
	Server        *rpc.Server
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	ServiceName   string
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Server == nil {
		return nil, errors.New("routes: server required")
	}
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", cfg.Server.HandleHealth)
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(g chi.Router) {
			if cfg.Authenticator != nil {
				g.Use(cfg.Authenticator.Middleware(middleware.ScopeExecute))
			}
			if cfg.RateLimiter != nil {
				g.Use(cfg.RateLimiter.Middleware(LimitExecute))
			}
			if obs != nil {
				g.Use(obs.Middleware("execute"))
			}
			g.Post("/execute", cfg.Server.HandleExecute)
		})
		v1.Group(func(g chi.Router) {
			if cfg.Authenticator != nil {
				g.Use(cfg.Authenticator.Middleware())
			}
			if cfg.RateLimiter != nil {
				g.Use(cfg.RateLimiter.Middleware(LimitQuery))
			}
			if obs != nil {
				g.Use(obs.Middleware("query"))
			}
			g.Post("/query", cfg.Server.HandleQuery)
			g.Get("/listings", cfg.Server.HandleListings)
			g.Get("/sales", cfg.Server.HandleSales)
			g.Get("/sales/active", cfg.Server.HandleActiveSale)
			g.Get("/events", cfg.Server.HandleEvents)
		})
	})

	name := cfg.ServiceName
	if name == "" {
		name = "marketd"
	}
	return otelhttp.NewHandler(r, name), nil
}
