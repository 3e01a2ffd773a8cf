package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
)

// Theme values accepted by the preference endpoint.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// handleHealth returns liveness and the current session state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.sessions.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"session": snap.State.String(),
		"clients": s.hub.ClientCount(),
	})
}

// handleGetSession returns the current snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewSessionView(s.sessions.Snapshot()))
}

// handleLogin authenticates with email and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "email and password are required")
		return
	}

	snap, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Info("login failed", "kind", authclient.KindName(err))
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSessionView(snap))
}

// handleRegister creates an account and signs it in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authclient.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "fullName, email and password are required")
		return
	}

	snap, err := s.sessions.Register(r.Context(), req)
	if err != nil {
		s.logger.Info("registration failed", "kind", authclient.KindName(err))
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewSessionView(snap))
}

// handleLogout clears the session. It always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewSessionView(s.sessions.Logout()))
}

// handleUpdateProfile sends a partial user record to the backend.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update authclient.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(update) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "no fields to update")
		return
	}
	// Anonymous callers fall through to the manager's not-authenticated error.
	if snap := s.sessions.Snapshot(); snap.IsAuthenticated && !auth.HasPermission(snap.Role, auth.PermProfileEdit) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "this account has no editable profile")
		return
	}

	snap, err := s.sessions.UpdateProfile(r.Context(), update)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSessionView(snap))
}

// handleGetTheme returns the stored theme, light when unset.
func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themeRequest{Theme: s.theme()})
}

// handleSetTheme stores the theme preference.
func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Theme != ThemeLight && req.Theme != ThemeDark {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, `theme must be "light" or "dark"`)
		return
	}
	if err := s.store.Set(credstore.KeyTheme, req.Theme); err != nil {
		s.logger.Error("storing theme failed", "error", err)
		writeInternalError(w, "failed to store theme")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) theme() string {
	if v, ok := s.store.Get(credstore.KeyTheme); ok && v == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// handlePage renders the page model for a path the gate let through.
// The unauthorized page always renders with 403.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Snapshot()
	status := http.StatusOK
	if samePath(r.URL.Path, s.table.Unauthorized) {
		status = http.StatusForbidden
	}
	writeJSON(w, status, pageView{
		Path:    r.URL.Path,
		Loading: snap.Loading,
		Theme:   s.theme(),
		Session: NewSessionView(snap),
	})
}

func samePath(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
