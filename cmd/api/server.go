package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"refdesk/auditlog"
	"refdesk/auth"
	"refdesk/conflict"
	"refdesk/lookup"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

type lookupService interface {
	Search(ctx context.Context, term string, actor auditlog.Actor) ([]lookup.ClientSummary, error)
	Details(ctx context.Context, clientID int64, actor auditlog.Actor) (lookup.Details, error)
	Tree(ctx context.Context, clientID int64) ([]lookup.TreeNode, error)
	Stats(ctx context.Context) (lookup.Stats, error)
}

type conflictService interface {
	Check(ctx context.Context, email string) (conflict.Report, error)
}

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Admin, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(tokenString string) (auth.Identity, error)
}

// Server wires the services to the HTTP surface: a single action-dispatch
// endpoint driving the admin page, a login endpoint, and a health probe.
type Server struct {
	logger *zap.Logger

	lookupService   lookupService
	conflictService conflictService
	authService     authService

	ping func(ctx context.Context) error

	version    string
	pageConfig pageConfig
	audit      conflictAuditor
}

// conflictAuditor records conflict checks. It is optional; the lookup
// service audits its own operations.
type conflictAuditor interface {
	Record(ctx context.Context, entry auditlog.Entry) error
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/", s.handleAction)
	})

	return r
}

// handleAction dispatches the admin page's form posts. Every response is
// HTTP 200 with a status field; the page script never inspects the HTTP
// status code.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, errorResponse{Status: statusError, Message: "Invalid form data"})
		return
	}

	actor := s.actorFrom(r)
	action := r.PostFormValue("action")

	switch action {
	case "search_clients":
		s.handleSearch(w, r, actor)
	case "get_referral_details":
		s.handleDetails(w, r, actor)
	case "get_referral_tree":
		s.handleTree(w, r)
	case "check_referral_conflicts":
		s.handleConflicts(w, r, actor)
	default:
		s.writeJSON(w, errorResponse{Status: statusError, Message: "Unknown action"})
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, actor auditlog.Actor) {
	term := r.PostFormValue("term")

	results, err := s.lookupService.Search(r.Context(), term, actor)
	if err != nil {
		if errors.Is(err, lookup.ErrTermTooShort) {
			s.writeJSON(w, errorResponse{Status: statusError, Message: "Search term must be at least 2 characters"})
			return
		}
		s.internalError(w, r, "search clients", err)
		return
	}

	s.writeJSON(w, toSearchResponse(results))
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request, actor auditlog.Actor) {
	clientID, err := strconv.ParseInt(r.PostFormValue("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		s.writeJSON(w, errorResponse{Status: statusError, Message: "Invalid client ID"})
		return
	}

	details, err := s.lookupService.Details(r.Context(), clientID, actor)
	if err != nil {
		if errors.Is(err, lookup.ErrClientNotFound) {
			s.writeJSON(w, notFoundResponse{Status: statusNotFound, Message: "Client not found"})
			return
		}
		s.internalError(w, r, "client details", err)
		return
	}

	s.writeJSON(w, toDetailsResponse(details))
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.PostFormValue("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		s.writeJSON(w, errorResponse{Status: statusError, Message: "Invalid client ID"})
		return
	}

	tree, err := s.lookupService.Tree(r.Context(), clientID)
	if err != nil {
		s.internalError(w, r, "referral tree", err)
		return
	}

	s.writeJSON(w, treeResponse{Status: statusSuccess, Tree: toTreeResponse(tree)})
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request, actor auditlog.Actor) {
	email := r.PostFormValue("client_email")

	report, err := s.conflictService.Check(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, conflict.ErrEmailRequired):
			s.writeJSON(w, errorResponse{Status: statusError, Message: "Email address is required"})
		case errors.Is(err, conflict.ErrClientNotFound):
			s.writeJSON(w, notFoundResponse{
				Status:      statusNotFound,
				Message:     "Client not found with email: " + strings.TrimSpace(email),
				Suggestions: conflict.NotFoundSuggestions,
			})
		default:
			s.internalError(w, r, "conflict check", err)
		}
		return
	}

	if s.audit != nil {
		_ = s.audit.Record(r.Context(), auditlog.Entry{
			Actor:    actor,
			ClientID: report.Client.ID,
			Action:   auditlog.ActionCheckConflicts,
		})
	}

	s.writeJSON(w, toConflictResponse(report))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: "Invalid request body"})
		return
	}

	admin, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: err.Error()})
		case errors.Is(err, auth.ErrDuplicateEmail):
			s.writeJSONStatus(w, http.StatusConflict, errorResponse{Status: statusError, Message: "Email already registered"})
		default:
			s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: "Registration failed"})
		}
		return
	}

	var resp loginResponse
	resp.Admin.ID = admin.ID
	resp.Admin.Name = admin.Name
	resp.Admin.Email = admin.Email
	s.writeJSONStatus(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONStatus(w, http.StatusBadRequest, errorResponse{Status: statusError, Message: "Invalid request body"})
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeJSONStatus(w, http.StatusUnauthorized, errorResponse{Status: statusError, Message: "Invalid email or password"})
			return
		}
		s.internalError(w, r, "login", err)
		return
	}

	resp := loginResponse{Token: result.Token}
	resp.Admin.ID = result.Admin.ID
	resp.Admin.Name = result.Admin.Name
	resp.Admin.Email = result.Admin.Email
	s.writeJSON(w, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.writeJSONStatus(w, http.StatusServiceUnavailable, errorResponse{Status: statusError, Message: "database unreachable"})
			return
		}
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// requireAdmin resolves the bearer token to an admin identity and stashes it
// in the request context for the audit trail.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeJSONStatus(w, http.StatusUnauthorized, errorResponse{Status: statusError, Message: "Authentication required"})
			return
		}

		identity, err := s.authService.VerifyToken(token)
		if err != nil {
			s.writeJSONStatus(w, http.StatusUnauthorized, errorResponse{Status: statusError, Message: "Invalid or expired token"})
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// actorFrom builds the audit actor from the authenticated identity and the
// resolved client address.
func (s *Server) actorFrom(r *http.Request) auditlog.Actor {
	actor := auditlog.Actor{IP: r.RemoteAddr}
	if identity, ok := r.Context().Value(ctxKeyIdentity).(auth.Identity); ok {
		actor.AdminID = identity.ID
		actor.AdminName = identity.Name
	}
	return actor
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op, zap.Error(err), zap.String("path", r.URL.Path))
	s.writeJSON(w, errorResponse{Status: statusError, Message: "An internal error occurred"})
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	s.writeJSONStatus(w, http.StatusOK, payload)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
