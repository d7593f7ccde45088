package webadmin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"braces.dev/errtrace"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zurustar/sipproxy/internal/logging"
	"github.com/zurustar/sipproxy/internal/registrar"
)

// Server implements the WebAdminServer interface on top of a chi router
type Server struct {
	registrations registrar.Viewer
	logger        logging.Logger
	router        chi.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a new web admin server reading from the registrar
func NewServer(registrations registrar.Viewer, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		registrations: registrations,
		logger:        logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving the admin routes
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/registrations", func(r chi.Router) {
		r.Get("/", s.handleListRegistrations)
		r.Get("/{aor}", s.handleGetRegistration)
	})
	return r
}

// Start binds the port (0 picks a free one) and serves in the background
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errtrace.Errorf("web admin server already running on %s", s.listener.Addr())
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to listen on web admin port %d: %w", port, err))
	}

	s.listener = listener
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting web admin server", logging.AddressField("addr", listener.Addr()))

	server, done := s.server, s.done
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web admin server error", logging.ErrorField(err))
		}
	}()

	return nil
}

// Stop stops the web admin server
func (s *Server) Stop() error {
	s.mu.Lock()
	server, done := s.server, s.done
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	s.logger.Info("Stopping web admin server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := server.Shutdown(ctx)
	<-done
	return errtrace.Wrap(err)
}

// Addr returns the bound address, or nil when not running
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.listener.Addr()
}

// registrationView is the JSON form of a registrar entry
type registrationView struct {
	AOR     string `json:"aor"`
	Contact string `json:"contact"`
	Source  string `json:"source"`
	Expires int64  `json:"expires"`
	Expired bool   `json:"expired"`
}

func newRegistrationView(e registrar.Entry, now int64) registrationView {
	view := registrationView{
		AOR:     e.AOR,
		Contact: e.Contact,
		Expires: e.Expiry,
		Expired: e.Expiry <= now,
	}
	if e.Source != nil {
		view.Source = e.Source.String()
	}
	return view
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	now := s.registrations.Now()
	entries := s.registrations.Snapshot()

	views := make([]registrationView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newRegistrationView(e, now))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	aor := chi.URLParam(r, "aor")
	entry, ok := s.registrations.Peek(aor)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "registration not found", "aor": aor})
		return
	}
	s.writeJSON(w, http.StatusOK, newRegistrationView(entry, s.registrations.Now()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode web admin response", logging.ErrorField(err))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("web admin request",
			logging.StringField("method", r.Method),
			logging.StringField("path", r.URL.Path),
			logging.StringField("remote_addr", r.RemoteAddr),
			logging.IntField("status", ww.Status()),
			logging.StringField("duration", time.Since(start).String()))
	})
}

var _ WebAdminServer = (*Server)(nil)
