package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

const (
	// sessionCookieName names the session cookie.
	sessionCookieName = "deadman_session"
	// pushInterval is how often /ws pushes the status.
	pushInterval = time.Second
	// shutdownTimeout bounds graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
	// readHeaderTimeout protects against slow clients.
	readHeaderTimeout = 10 * time.Second
)

// errPasswordRequired is returned by New without a password.
var errPasswordRequired = errors.New("web password must be provided")

//go:embed templates/*.html
var templateFS embed.FS

// Service abstracts the check-in entry point the web front-end depends on.
type Service interface {
	CheckIn(ctx context.Context, request domain.CheckInRequest) (domain.Status, error)
	Status() domain.Status
}

// Settings configure the web front-end.
type Settings struct {
	// Password is the plain text web password. Only its hash is kept.
	Password string
	// SessionTTL is how long a login stays valid.
	SessionTTL time.Duration
	// CORSOrigins are allowed to read /timer from other origins.
	CORSOrigins []string
	// BcryptCost overrides bcrypt.DefaultCost when positive.
	BcryptCost int
	// Clock replaces the real clock for session expiry.
	Clock clockwork.Clock
}

// Server is the web front-end.
type Server struct {
	service      Service
	passwordHash []byte
	sessions     *sessionStore
	sessionTTL   time.Duration
	corsOrigins  []string
	templates    *template.Template
}

// New hashes the password and parses the templates.
func New(settings Settings, service Service) (*Server, error) {
	if settings.Password == "" {
		return nil, errPasswordRequired
	}

	cost := settings.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(settings.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash web password: %w", err)
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	clock := settings.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ttl := settings.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Server{
		service:      service,
		passwordHash: hash,
		sessions:     newSessionStore(clock, ttl),
		sessionTTL:   ttl,
		corsOrigins:  settings.CORSOrigins,
		templates:    templates,
	}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.showLogin)
	mux.HandleFunc("POST /{$}", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.Handle("GET /dashboard", s.requirePage(http.HandlerFunc(s.showDashboard)))
	mux.Handle("POST /dashboard", s.requirePage(http.HandlerFunc(s.handleCheckIn)))
	mux.Handle("GET /check-in", s.requirePage(http.HandlerFunc(s.handleCheckIn)))
	mux.Handle("POST /check-in", s.requirePage(http.HandlerFunc(s.handleCheckIn)))
	mux.Handle("GET /ws", s.requireAPI(http.HandlerFunc(s.handleWebSocket)))

	timer := s.requireAPI(http.HandlerFunc(s.timerData))
	if len(s.corsOrigins) > 0 {
		timer = cors.New(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodHead},
			AllowCredentials: true,
		}).Handler(timer)
	}

	mux.Handle("/timer", timer)

	return mux
}

// Serve serves on lis until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx = logger.WithName(ctx, "web")

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down web server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "Web server shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Web server listening", "listen_address", lis.Addr().String())

	if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve web: %w", err)
	}

	<-done
	logger.Info(ctx, "Web server stopped")

	return nil
}
