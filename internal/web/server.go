package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/web/handlers"
	"github.com/masterfloor/erp/internal/web/middleware"
)

// Server is the JSON API over the ERP stores.
type Server struct {
	cfg        config.Server
	allowedNet *net.IPNet
	router     *chi.Mux
	handlers   *handlers.Handlers
}

// NewServer creates a new web server. cfg is expected to have passed Validate.
func NewServer(conn *database.Connector, cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg.Server,
		router:   chi.NewRouter(),
		handlers: handlers.New(conn, cfg.Provisioning),
	}
	if cfg.Server.AllowedSubnet != "" {
		_, s.allowedNet, _ = net.ParseCIDR(cfg.Server.AllowedSubnet)
	}

	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	r.Use(chimiddleware.RequestID)
	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(middleware.AllowSubnet(s.allowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.AllowContentType("application/json"))

		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Get("/lookups", h.Lookups)

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.SupplierList)
			r.Post("/", h.SupplierCreate)
			r.Get("/{id}", h.SupplierGet)
			r.Put("/{id}", h.SupplierUpdate)
			r.Delete("/{id}", h.SupplierDelete)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ProductList)
			r.Post("/", h.ProductCreate)
			r.Get("/{id}", h.ProductGet)
			r.Put("/{id}", h.ProductUpdate)
			r.Delete("/{id}", h.ProductDelete)
		})

		r.Route("/partners", func(r chi.Router) {
			r.Get("/", h.PartnerList)
			r.Post("/", h.PartnerCreate)
			r.Get("/{id}", h.PartnerGet)
			r.Put("/{id}", h.PartnerUpdate)
			r.Delete("/{id}", h.PartnerDelete)

			// One login per partner
			r.Get("/{id}/user", h.PartnerUserGet)
			r.Post("/{id}/user", h.PartnerUserCreate)
			r.Put("/{id}/user", h.PartnerUserUpdate)
			r.Delete("/{id}/user", h.PartnerUserDelete)
			r.Post("/{id}/user/reset-password", h.PartnerUserResetPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.UserList)
			r.Post("/", h.UserCreate)
			r.Get("/{id}", h.UserGet)
			r.Put("/{id}", h.UserUpdate)
			r.Delete("/{id}", h.UserDelete)
		})
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.Port))

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
