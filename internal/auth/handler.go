package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vidtube-org/vidtube/backend/internal/httpx"
	"github.com/vidtube-org/vidtube/backend/internal/middleware"
	"github.com/vidtube-org/vidtube/backend/internal/models"
	"github.com/vidtube-org/vidtube/backend/internal/rate"
	"github.com/vidtube-org/vidtube/backend/internal/token"
)

const maxSignupFormSize = 16 << 20

// Handler holds the session HTTP handlers.
type Handler struct {
	svc    *Service
	log    *slog.Logger
	secure bool
}

func NewHandler(svc *Service, log *slog.Logger, secureCookies bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log, secure: secureCookies}
}

// Login authenticates by username-or-email and password, sets both tokens as
// http-only cookies, and returns them in the body alongside the account.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	user, pair, err := h.svc.Login(r.Context(), identifier, req.Password)
	if err != nil {
		h.RespondError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	httpx.JSON(w, http.StatusOK, "user logged in successfully", map[string]any{
		"user":         user,
		"accessToken":  pair.Access,
		"refreshToken": pair.Refresh,
	})
}

// Signup registers an account from a multipart form with an avatar part
// (required) and a coverImage part (optional). No tokens are issued.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSignupFormSize); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	avatar, err := h.filePart(r, "avatar")
	if err != nil {
		h.RespondError(w, err)
		return
	}
	cover, err := h.filePart(r, "coverImage")
	if err != nil {
		h.RespondError(w, err)
		return
	}

	created, err := h.svc.Register(r.Context(), RegisterInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
		Avatar:   avatar,
		Cover:    cover,
	})
	if err != nil {
		h.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, "user registered successfully", created)
}

// RefreshToken exchanges a valid refresh token, presented as a cookie or in
// the JSON body, for a rotated access/refresh pair.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if c, err := r.Cookie(middleware.RefreshCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		var req models.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = req.RefreshToken
		}
	}

	pair, err := h.svc.Refresh(r.Context(), presented)
	if err != nil {
		h.RespondError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	data := map[string]any{"accessToken": pair.Access}
	if pair.Refresh != "" {
		data["refreshToken"] = pair.Refresh
	}
	httpx.JSON(w, http.StatusOK, "access token refreshed", data)
}

// Logout clears the stored refresh token and expires the auth cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.svc.Logout(r.Context(), u.ID.Hex()); err != nil {
		h.RespondError(w, err)
		return
	}

	h.clearAuthCookies(w)
	httpx.JSON(w, http.StatusOK, "user logged out", nil)
}

// Profile returns the authenticated account resolved by the gate.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	httpx.JSON(w, http.StatusOK, "current user", u)
}

// RespondError is the single mapping from component errors to transport
// rejections. Every authentication failure class renders the same 401 body
// so a caller cannot distinguish forgery from expiry.
func (h *Handler) RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError

	switch {
	case errors.As(err, &verr):
		httpx.Fail(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrConflict):
		httpx.Fail(w, http.StatusConflict, ErrConflict.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Fail(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrMalformed):
		httpx.Fail(w, http.StatusUnauthorized, "unauthorized request")
	case errors.Is(err, rate.ErrLimited):
		httpx.Fail(w, http.StatusTooManyRequests, rate.ErrLimited.Error())
	default:
		h.log.Error("internal error", "error", err)
		detail := ""
		if httpx.Debug {
			detail = err.Error()
		}
		httpx.FailDetail(w, http.StatusInternalServerError, "internal server error", detail)
	}
}

func (h *Handler) filePart(r *http.Request, name string) (*Asset, error) {
	file, header, err := r.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, &ValidationError{Fields: []string{name}}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &ValidationError{Fields: []string{name}}
	}
	return &Asset{Data: data, ContentType: partContentType(header)}, nil
}

func partContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, pair Tokens) {
	h.setCookie(w, middleware.AccessCookie, pair.Access, h.svc.AccessTTL())
	if pair.Refresh != "" {
		h.setCookie(w, middleware.RefreshCookie, pair.Refresh, h.svc.RefreshTTL())
	}
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.setCookie(w, middleware.AccessCookie, "", -time.Second)
	h.setCookie(w, middleware.RefreshCookie, "", -time.Second)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if value == "" {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
