package router

import (
	"net/http"

	_ "pet-custody/docs"
	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/fostering"
	"pet-custody/internal/domain/handovers"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/domain/placement"
	"pet-custody/internal/domain/transfers"
	"pet-custody/internal/middleware"
	"pet-custody/internal/platform/logger"
	"pet-custody/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	Store      custody.Store
	Pets       pets.Repository
	Dispatcher custody.Dispatcher // nil = sin notificaciones
	Logger     logger.Logger
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.AccessLog(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Services por módulo
	petsSvc := pets.NewService(opts.Pets)
	placementSvc := placement.NewService(opts.Store, opts.Dispatcher)
	transfersSvc := transfers.NewService(opts.Store, opts.Dispatcher)
	handoversSvc := handovers.NewService(opts.Store, opts.Dispatcher)
	fosteringSvc := fostering.NewService(opts.Store, opts.Dispatcher)
	ownershipSvc := ownership.NewService(opts.Store)

	// Rutas autenticadas
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthContext(opts.AuthVerifier))

		pets.RegisterRoutes(r, petsSvc)
		placement.RegisterRoutes(r, placementSvc, log)
		transfers.RegisterRoutes(r, transfersSvc, log)
		handovers.RegisterRoutes(r, handoversSvc, log)
		fostering.RegisterRoutes(r, fosteringSvc, log)
		ownership.RegisterRoutes(r, ownershipSvc, log)
	})

	return r
}
