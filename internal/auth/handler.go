package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

// DefaultCookieMaxAge intentionally outlives both token TTLs: cookie presence
// alone never implies validity, clients must refresh before token expiry.
const DefaultCookieMaxAge = 24 * time.Hour

type Handler struct {
	service      *Service
	cookieMaxAge time.Duration
}

func NewHandler(service *Service, cookieMaxAge time.Duration) *Handler {
	if cookieMaxAge <= 0 {
		cookieMaxAge = DefaultCookieMaxAge
	}
	return &Handler{service: service, cookieMaxAge: cookieMaxAge}
}

type authResponse struct {
	User    *PublicUser `json:"user"`
	Auth    bool        `json:"auth"`
	Message string      `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body RegisterInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, pair, err := h.service.Register(r.Context(), body)
	if err != nil {
		var validationErr ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	h.setAuthCookies(w, pair)
	public := user.Public()
	writeJSON(w, http.StatusCreated, authResponse{
		User:    &public,
		Auth:    true,
		Message: "User registered successfully",
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body LoginInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, pair, err := h.service.Login(r.Context(), body)
	if err != nil {
		var validationErr ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, ErrInvalidUsername):
			writeError(w, http.StatusUnauthorized, "Invalid username")
		case errors.Is(err, ErrInvalidPassword):
			writeError(w, http.StatusUnauthorized, "Invalid password")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	h.setAuthCookies(w, pair)
	public := user.Public()
	writeJSON(w, http.StatusOK, authResponse{
		User:    &public,
		Auth:    true,
		Message: "Login successful",
	})
}

// Logout is idempotent: a missing or already-rotated refresh cookie still
// yields a signed-out response with both cookies cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, authResponse{
		User:    nil,
		Auth:    false,
		Message: "Logout success",
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, pair, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	h.setAuthCookies(w, pair)
	public := user.Public()
	writeJSON(w, http.StatusOK, authResponse{
		User:    &public,
		Auth:    true,
		Message: "OK",
	})
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, pair TokenPair) {
	maxAge := int(h.cookieMaxAge.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
