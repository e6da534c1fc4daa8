package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"personahub/internal/admintoken"
	"personahub/internal/ratelimit"
	"personahub/internal/util"
	"personahub/pkg/domain"
	"personahub/pkg/store"
	"personahub/services/persona/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	Admin          *admintoken.Authority
	MaxUploadBytes int64
	TrustForwarded bool
}

// Server exposes HTTP endpoints for the persona service.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	admin          *admintoken.Authority
	mux            *http.ServeMux
	maxUploadBytes int64
	trustForwarded bool
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		admin:          cfg.Admin,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		trustForwarded: cfg.TrustForwarded,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/chatbots", s.handlePersonas)
	s.mux.HandleFunc("/chatbots/", s.handlePersonaByID)
	s.mux.Handle("/upload", s.withAdmin(s.withLimit(s.handleUpload)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Health(r.Context()))
}

// withAdmin requires a valid admin token on mutating requests. When no
// admin secret is configured the check is a no-op.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.admin.Enabled() {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, err := s.admin.Verify(token); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) withLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(util.ClientIP(r, s.trustForwarded)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPersonas(w, r)
	case http.MethodPost:
		s.withAdmin(s.withLimit(s.handleCreatePersona))(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas, err := s.app.ListPersonas(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if personas == nil {
		personas = []domain.Persona{}
	}
	writeJSON(w, http.StatusOK, personas)
}

func (s *Server) handleCreatePersona(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePersona(w, r)
	if !ok {
		return
	}
	created, err := s.app.CreatePersona(r.Context(), p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// /chatbots/{uniqueId}
func (s *Server) handlePersonaByID(w http.ResponseWriter, r *http.Request) {
	uniqueID := strings.TrimPrefix(r.URL.Path, "/chatbots/")
	if uniqueID == "" || strings.Contains(uniqueID, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetPersona(w, r, uniqueID)
	case http.MethodPut:
		s.withAdmin(s.withLimit(func(w http.ResponseWriter, r *http.Request) {
			s.handleUpdatePersona(w, r, uniqueID)
		}))(w, r)
	case http.MethodDelete:
		s.withAdmin(s.withLimit(func(w http.ResponseWriter, r *http.Request) {
			s.handleDeletePersona(w, r, uniqueID)
		}))(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request, uniqueID string) {
	p, err := s.app.GetPersona(r.Context(), uniqueID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePersona(w http.ResponseWriter, r *http.Request, uniqueID string) {
	p, ok := decodePersona(w, r)
	if !ok {
		return
	}
	updated, err := s.app.UpdatePersona(r.Context(), uniqueID, p)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request, uniqueID string) {
	if err := s.app.DeletePersona(r.Context(), uniqueID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()

	uniqueID := r.FormValue("uniqueId")
	contentType := header.Header.Get("Content-Type")
	key, url, err := s.app.UploadAsset(r.Context(), uniqueID, header.Filename, file, header.Size, contentType)
	if err != nil {
		if errors.Is(err, app.ErrUploadsDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"key": key,
		"url": url,
	})
}

func decodePersona(w http.ResponseWriter, r *http.Request) (domain.Persona, bool) {
	var p domain.Persona
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return domain.Persona{}, false
	}
	return p, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	var keyErr *domain.APIKeyError
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(w, "chatbot not found")
	case errors.As(err, &keyErr),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrWelcomeRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
