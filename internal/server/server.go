// Пакет server — HTTP-сервер SIGESCON с graceful shutdown.
// Без TLS: TLS termination на reverse proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/sigescon/internal/api/handlers"
	"github.com/bigkaa/sigescon/internal/api/middleware"
	"github.com/bigkaa/sigescon/internal/config"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
)

// publicPrefixes — пути, доступные без токена.
var publicPrefixes = []string{"/health/", "/metrics", "/api/openapi.json", "/auth/login"}

// Server — HTTP-сервер SIGESCON.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// spec — обработчик /api/openapi.json.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth, spec http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, handler, jwtAuth, spec),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер: глобальные middleware, JWT с исключениями
// для публичных путей и проверку профиля по группам маршрутов.
//
//nolint:funlen // линейная таблица маршрутов
func NewRouter(logger *slog.Logger, h *handlers.APIHandler, jwtAuth *middleware.JWTAuth, spec http.Handler) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(jwtAuthWithExclusions(jwtAuth, publicPrefixes...))

	adminOnly := middleware.RequireRole(rbac.AdminOnly...)
	fiscalOrAdmin := middleware.RequireRole(rbac.FiscalOrAdmin...)

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)
	if spec != nil {
		router.Method(http.MethodGet, "/api/openapi.json", spec)
	}

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	for segment, kind := range handlers.LookupRoutes {
		lh := h.Lookup(kind)
		router.Route("/"+segment, func(r chi.Router) {
			r.Get("/", lh.List)
			r.With(adminOnly).Post("/", lh.Create)
			r.Get("/{id}", lh.Get)
			r.With(adminOnly).Patch("/{id}", lh.Update)
			r.With(adminOnly).Delete("/{id}", lh.Delete)
		})
	}

	router.Route("/usuarios", func(r chi.Router) {
		r.With(adminOnly).Get("/", h.ListUsers)
		r.With(adminOnly).Post("/", h.CreateUser)
		r.Get("/{id}", h.GetUser)
		r.With(adminOnly).Patch("/{id}", h.UpdateUser)
		r.With(adminOnly).Delete("/{id}", h.DeleteUser)
		r.With(adminOnly).Patch("/{id}/resetar-senha", h.ResetPassword)
		r.Patch("/{id}/alterar-senha", h.ChangePassword)
	})

	router.Route("/contratados", func(r chi.Router) {
		r.Get("/", h.ListContractedParties)
		r.With(adminOnly).Post("/", h.CreateContractedParty)
		r.Get("/{id}", h.GetContractedParty)
		r.With(adminOnly).Patch("/{id}", h.UpdateContractedParty)
		r.With(adminOnly).Delete("/{id}", h.DeleteContractedParty)
	})

	router.Route("/contratos", func(r chi.Router) {
		r.Get("/", h.ListContracts)
		r.With(adminOnly).Post("/", h.CreateContract)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetContract)
			r.With(adminOnly).Patch("/", h.UpdateContract)
			r.With(adminOnly).Delete("/", h.DeleteContract)

			r.Get("/arquivos", h.ListContractFiles)

			r.Get("/pendencias", h.ListPendencies)
			r.With(adminOnly).Post("/pendencias", h.CreatePendency)
			r.With(adminOnly).Patch("/pendencias/{pid}/status", h.UpdatePendencyStatus)

			r.Get("/relatorios", h.ListReports)
			r.With(fiscalOrAdmin).Post("/relatorios", h.SubmitReport)
			r.Get("/relatorios/{rid}", h.GetReport)
			r.With(fiscalOrAdmin).Put("/relatorios/{rid}", h.ResubmitReport)
			r.With(adminOnly).Patch("/relatorios/{rid}/analise", h.AnalyzeReport)
		})
	})

	router.Route("/arquivos/{id}", func(r chi.Router) {
		r.Get("/download", h.DownloadFile)
		r.With(adminOnly).Delete("/", h.DeleteFile)
	})

	return router
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
