// Package authapi exposes the account flows over HTTP: registration, login,
// token refresh, profile reads and mutations. Routes mirror the public
// /users API of the platform.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vidra/cmd/account"
	"vidra/cmd/internal/auth/session"
)

// Handler wires the /users endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config

	sessions *session.Service
	gate     *session.Gate
	limiter  *LoginLimiter
	metrics  *Metrics
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithLoginLimiter enables redis-backed login throttling.
func WithLoginLimiter(l *LoginLimiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithMetrics attaches auth outcome counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("authapi: nil session service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg.withDefaults(),
		sessions: sessions,
		gate:     sessions.Gate(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires the user routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/users/register", h.handleRegister)
	mux.HandleFunc("/users/login", h.handleLogin)
	mux.HandleFunc("/users/logout", h.handleLogout)
	mux.HandleFunc("/users/refresh-token", h.handleRefresh)
	mux.HandleFunc("/users/reset-pass", h.handleResetPass)
	mux.HandleFunc("/users/current-user", h.handleCurrentUser)
	mux.HandleFunc("/users/update-email", h.handleUpdateEmail)
	mux.HandleFunc("/users/update-username", h.handleUpdateUsername)
	mux.HandleFunc("/users/update-fullname", h.handleUpdateFullName)
	mux.HandleFunc("/users/update-avatar", h.handleUpdateAvatar)
	mux.HandleFunc("/users/update-coverImage", h.handleUpdateCover)
	mux.HandleFunc("/users/c/{username}", h.handleChannel)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form expected")
		return
	}

	avatarPath, _, err := h.stageUpload(r, "avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "avatar upload unreadable")
		return
	}
	coverPath, _, err := h.stageUpload(r, "coverImage")
	if err != nil {
		removeStaged(avatarPath)
		writeError(w, http.StatusBadRequest, "invalid_request", "cover upload unreadable")
		return
	}

	profile, err := h.sessions.Register(r.Context(), session.RegisterInput{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Password:   r.FormValue("password"),
		AvatarPath: avatarPath,
		CoverPath:  coverPath,
	})
	if err != nil {
		removeStaged(avatarPath, coverPath)
		h.writeServiceError(w, err)
		return
	}

	h.metrics.registered()
	writeJSON(w, http.StatusCreated, userResponse{User: profile})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	identifier := account.NormalizeUsername(req.identifier())

	// Throttle before touching the store.
	if ip := clientIP(r, h.cfg.TrustProxy); ip != "" {
		blocked, retryAfter := h.throttled(r, loginIPKey(ip), h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
		if blocked {
			writeRateLimited(w, retryAfter)
			return
		}
	}
	if identifier != "" {
		blocked, retryAfter := h.throttled(r, loginIdentifierKey(identifier), h.cfg.LoginIDMax, h.cfg.LoginIDWindow)
		if blocked {
			writeRateLimited(w, retryAfter)
			return
		}
	}

	profile, pair, err := h.sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		h.metrics.loginFail()
		h.writeServiceError(w, err)
		return
	}

	h.metrics.loginOK()
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         profile,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profile, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Logout(r.Context(), profile.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	// A missing token is handled by the service like any other bad token,
	// so the endpoint answers every credential problem the same way.
	presented := h.refreshToken(r, req.RefreshToken)

	profile, pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.metrics.refreshed()
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:         profile,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	})
}

func (h *Handler) handleResetPass(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profile, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req resetPassRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), profile.ID, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profile, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: profile})
}

func (h *Handler) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	h.updateField(w, r, session.FieldEmail, &req, func() (string, string) {
		return req.Email, req.Password
	})
}

func (h *Handler) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req updateUsernameRequest
	h.updateField(w, r, session.FieldUsername, &req, func() (string, string) {
		return req.Username, req.Password
	})
}

func (h *Handler) handleUpdateFullName(w http.ResponseWriter, r *http.Request) {
	var req updateFullNameRequest
	h.updateField(w, r, session.FieldFullName, &req, func() (string, string) {
		return req.FullName, req.Password
	})
}

func (h *Handler) updateField(w http.ResponseWriter, r *http.Request, field session.Field, req any, values func() (value, password string)) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profile, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	value, password := values()
	updated, err := h.sessions.UpdateProfileField(r.Context(), profile.ID, field, value, password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}

func (h *Handler) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, session.SlotAvatar, "avatar")
}

func (h *Handler) handleUpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, session.SlotCover, "coverImage")
}

func (h *Handler) updateMedia(w http.ResponseWriter, r *http.Request, slot session.MediaSlot, field string) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profile, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form expected")
		return
	}

	path, present, err := h.stageUpload(r, field)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "upload unreadable")
		return
	}
	if !present {
		writeError(w, http.StatusBadRequest, "invalid_request", field+" file is required")
		return
	}

	updated, err := h.sessions.UpdateMedia(r.Context(), profile.ID, slot, path)
	if err != nil {
		removeStaged(path)
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: updated})
}

func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username is required")
		return
	}

	profile, err := h.sessions.ChannelProfile(r.Context(), username)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: profile})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (account.Profile, bool) {
	profile, err := h.gate.Authenticate(r.Context(), h.accessToken(r))
	if err != nil {
		if account.IsAuth(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
		} else {
			h.writeServiceError(w, err)
		}
		return account.Profile{}, false
	}
	return profile, true
}

// throttled consults the limiter; redis failures log and fail open.
func (h *Handler) throttled(r *http.Request, key string, max int, window time.Duration) (bool, time.Duration) {
	ok, retryAfter, err := h.limiter.Allow(r.Context(), key, max, window)
	if err != nil {
		h.log.Error("auth.login.throttle.fail", "err", err)
		return false, 0
	}
	return !ok, retryAfter
}
