package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"petsphere/internal/upload"
	"petsphere/internal/util"
	"petsphere/pkg/domain"
	"petsphere/services/api/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	StaticDir      string
	StaticPrefix   string
}

// Server exposes the PetSphere HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
	s.routes(cfg.StaticDir, cfg.StaticPrefix)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes(staticDir, staticPrefix string) {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// pets (auth required)
	s.mux.Handle("/api/pets", s.authenticated(s.handlePets))
	s.mux.Handle("/api/pets/", s.authenticated(s.handlePetByID))

	// uploaded photos
	if staticDir != "" && staticPrefix != "" {
		prefix := strings.TrimSuffix(staticPrefix, "/") + "/"
		s.mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(staticDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

// authenticated resolves the calling user before invoking next. Token and
// user-lookup failures both collapse to 401 so callers cannot probe which
// user IDs exist; only the rate limit is reported distinctly.
func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "api.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.CurrentUser(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, app.ErrRateLimited):
				s.audit(r, "api.authorize", "rate_limited")
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			case errors.Is(err, app.ErrInvalidToken):
				s.audit(r, "api.authorize", "fail", "reason", "invalid_token")
				writeError(w, http.StatusUnauthorized, "unauthorized")
			case errors.Is(err, app.ErrUserNotFound):
				s.audit(r, "api.authorize", "fail", "reason", "unknown_subject")
				writeError(w, http.StatusUnauthorized, "unauthorized")
			default:
				s.audit(r, "api.authorize", "fail", "reason", "internal")
				slog.Error("authorize failed", "err", err)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}
		s.audit(r, "api.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "api.signup", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// /api/pets
func (s *Server) handlePets(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreatePet(w, r, user)
	case http.MethodGet:
		s.handleListPets(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

// /api/pets/{id} or /api/pets/{id}/photo
func (s *Server) handlePetByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/pets/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	// Handle /api/pets/{id}/photo
	if len(parts) == 2 && parts[1] == "photo" {
		s.handleSetPhoto(w, r, user, id)
		return
	}
	if len(parts) == 2 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		pet, err := s.app.GetPet(r.Context(), user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pet)
	case http.MethodPut, http.MethodPatch:
		var req app.PetInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		pet, err := s.app.UpdatePet(r.Context(), user, id, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pet)
	case http.MethodDelete:
		if err := s.app.DeletePet(r.Context(), user, id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "api.pet.delete", "success", "user_id", user.ID, "pet_id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// handleCreatePet accepts multipart form data: a required "pet" field with
// the JSON document, plus an optional "photo" file. A plain JSON body is
// accepted when no photo is attached.
func (s *Server) handleCreatePet(w http.ResponseWriter, r *http.Request, user domain.User) {
	contentType := r.Header.Get("Content-Type")

	var input app.PetInput
	var photo *app.PhotoUpload
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("pet")), &input); err != nil {
			writeError(w, http.StatusBadRequest, "pet field must be a JSON document")
			return
		}
		file, header, err := r.FormFile("photo")
		switch {
		case err == nil:
			defer file.Close()
			photo = &app.PhotoUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Content:     file,
			}
		case errors.Is(err, http.ErrMissingFile):
		default:
			writeError(w, http.StatusBadRequest, "invalid photo upload")
			return
		}
	} else {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	pet, err := s.app.CreatePet(r.Context(), user, input, photo)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.pet.create", "success", "user_id", user.ID, "pet_id", pet.ID)
	writeJSON(w, http.StatusCreated, pet)
}

func (s *Server) handleListPets(w http.ResponseWriter, r *http.Request, user domain.User) {
	pets, err := s.app.ListPets(r.Context(), user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": pets,
		"count": len(pets),
	})
}

func (s *Server) handleSetPhoto(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo is required (field: photo)")
		return
	}
	defer file.Close()
	pet, err := s.app.SetPetPhoto(r.Context(), user, id, &app.PhotoUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.pet.photo", "success", "user_id", user.ID, "pet_id", id)
	writeJSON(w, http.StatusOK, pet)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application error kinds onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrPetNameRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrPetNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, upload.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, upload.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
