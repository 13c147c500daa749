package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/oshokin/dead-man-switch/internal/domain/deadman"
	"github.com/oshokin/dead-man-switch/internal/logger"
)

// loginPage feeds login.html.
type loginPage struct {
	Error bool
}

// dashboardPage feeds dashboard.html.
type dashboardPage struct {
	Status      domain.Status
	Phase       string
	LastCheckIn string
	Triggered   bool
	Banner      string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin only; the session cookie alone must not authorize other sites.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		return origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// requirePage redirects anonymous visitors to the login page.
func (s *Server) requirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticated(r) {
			logger.WarnKV(r.Context(), "Unauthorized access attempt", "path", r.URL.Path, "remote", remoteHost(r))
			http.Redirect(w, r, "/", http.StatusSeeOther)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAPI answers anonymous requests with 401.
func (s *Server) requireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Preflight requests never carry cookies.
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)

			return
		}

		if !s.authenticated(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}

	return s.sessions.valid(cookie.Value)
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	if s.authenticated(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)

		return
	}

	s.render(w, r, http.StatusOK, "login.html", loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	password := r.PostFormValue("password")
	if password == "" {
		logger.Warn(r.Context(), "Login attempt with missing or empty password")
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{Error: true})

		return
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		logger.WarnKV(r.Context(), "Invalid login attempt", "remote", remoteHost(r))
		s.render(w, r, http.StatusUnauthorized, "login.html", loginPage{Error: true})

		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.sessions.create(),
		Path:     "/",
		MaxAge:   int(s.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	logger.InfoKV(r.Context(), "User authenticated", "remote", remoteHost(r))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.revoke(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	logger.Info(r.Context(), "User logged out")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "dashboard.html", newDashboardPage(s.service.Status(), ""))
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.CheckIn(r.Context(), domain.CheckInRequest{
		Source:    "web:" + remoteHost(r),
		Timestamp: time.Now(),
	})

	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	switch {
	case err == nil:
		logger.InfoKV(r.Context(), "User checked in from web interface", "remote", remoteHost(r))

		if wantsJSON {
			writeJSON(w, http.StatusOK, newStatusPayload(st))

			return
		}

		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	case errors.Is(err, domain.ErrAlreadyTriggered):
		if wantsJSON {
			writeJSON(w, http.StatusConflict, errorPayload{Error: err.Error(), Status: newStatusPayload(st)})

			return
		}

		s.render(w, r, http.StatusConflict, "dashboard.html",
			newDashboardPage(st, "The switch has already triggered. Check-ins are no longer accepted."))
	default:
		logger.ErrorKV(r.Context(), "Web check-in failed", "error", err)

		if wantsJSON {
			writeJSON(w, http.StatusServiceUnavailable, errorPayload{Error: err.Error(), Status: newStatusPayload(st)})

			return
		}

		s.render(w, r, http.StatusServiceUnavailable, "dashboard.html",
			newDashboardPage(st, "Check-in failed, please try again."))
	}
}

func (s *Server) timerData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusPayload(s.service.Status()))
}

// handleWebSocket pushes the status right away and then every pushInterval.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(r.Context(), "WebSocket upgrade failed", "error", err)

		return
	}

	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read pump only notices the peer going away.
	go func() {
		defer cancel()

		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		if err = conn.WriteJSON(newStatusPayload(s.service.Status())); err != nil {
			logger.DebugKV(ctx, "WebSocket client gone", "error", err)

			return
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))

			return
		case <-ticker.C:
		}
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)

	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.ErrorKV(r.Context(), "Template rendering failed", "template", name, "error", err)
	}
}

func newDashboardPage(st domain.Status, banner string) dashboardPage {
	page := dashboardPage{
		Status:    st,
		Phase:     phaseTitle(st.Phase),
		Triggered: st.Phase.IsTerminal(),
		Banner:    banner,
	}

	if !st.LastCheckIn.IsZero() {
		page.LastCheckIn = st.LastCheckIn.Local().Format(time.RFC1123)
	}

	if page.Triggered && banner == "" {
		page.Banner = "The switch has triggered and the final message was sent."
	}

	return page
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(payload)
}

// remoteHost strips the port from the client address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
