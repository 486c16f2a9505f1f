package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/maruel/bibliodb/internal/circulation"
	"github.com/maruel/bibliodb/internal/config"
	apierrors "github.com/maruel/bibliodb/internal/errors"
	"github.com/maruel/bibliodb/internal/server/handlers"
	"github.com/maruel/bibliodb/internal/server/ratelimit"
	"github.com/maruel/bibliodb/internal/storage"
)

// Router is the API handler. Close releases the rate limiter.
type Router struct {
	http.Handler
	limiter *ratelimit.Limiter
}

// Close stops background work started by NewRouter.
func (r *Router) Close() {
	r.limiter.Close()
}

// NewRouter creates and configures the HTTP router.
//
// Every API call runs under a single mutex since the store is not safe for
// concurrent use.
func NewRouter(store *storage.Store, cfg *config.Config, version string) *Router {
	loans := storage.NewLoanRepository(store, storage.StrictUpdates())
	patrons := storage.NewPatronRepository(store, storage.StrictUpdates())
	svc := circulation.New(loans, patrons, cfg.Circulation)

	healthHandler := handlers.NewHealthHandler(store, version)
	loanHandler := handlers.NewLoanHandler(loans, svc)
	patronHandler := handlers.NewPatronHandler(patrons, svc)

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", Wrap(healthHandler.Health))

	mux.Handle("GET /api/patrons", Wrap(patronHandler.SearchPatrons))
	mux.Handle("GET /api/patrons/{id}", Wrap(patronHandler.GetPatron))
	mux.Handle("PUT /api/patrons/{id}", Wrap(patronHandler.UpdatePatron))
	mux.Handle("POST /api/patrons/{id}/renew", Wrap(patronHandler.RenewMembership))

	mux.Handle("GET /api/loans/{id}", Wrap(loanHandler.GetLoan))
	mux.Handle("PUT /api/loans/{id}", Wrap(loanHandler.UpdateLoan))
	mux.Handle("POST /api/loans/{id}/return", Wrap(loanHandler.ReturnLoan))
	mux.Handle("POST /api/loans/{id}/extend", Wrap(loanHandler.ExtendLoan))

	mux.Handle("/api/", Wrap(func(context.Context, struct{}) (*struct{}, error) {
		return nil, apierrors.NotFound("Endpoint")
	}))

	limiter := ratelimit.NewLimiter(cfg.Server.WriteRequestsPerMinute, time.Minute, cfg.Server.WriteBurst)
	var h http.Handler = serialize(&sync.Mutex{})(mux)
	if cfg.Auth.JWTSecret != "" {
		h = authMiddleware([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)(h)
	}
	h = rateLimitMiddleware(limiter)(h)
	h = requestLogger(h)
	return &Router{Handler: h, limiter: limiter}
}
