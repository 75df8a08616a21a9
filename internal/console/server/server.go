package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/console/handler"
	"github.com/brainsait/pulse/internal/infra"
	"github.com/brainsait/pulse/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка токенов (RS256). nil — открытый режим (same-origin сценарий)
	authValidator auth.TokenValidator

	dashHandler *handler.DashboardHandler
}

// NewConsoleServer инициализирует локальный API агрегатора.
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		cfg:           cfg,
		authValidator: validator,
		dashHandler:   dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. API ДАШБОРДА (защищается токеном, если настроен ключ) ---
	r.Group(func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/snapshot", s.dashHandler.GetSnapshot)       // Вся вью-модель
			r.Get("/connection", s.dashHandler.GetConnection)   // Индикатор связи
			r.Get("/resources/{name}", s.dashHandler.GetResource)
			r.Get("/notifications", s.dashHandler.GetNotifications)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
