package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/comunizika/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
	minPasswordLength = 6
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(csrfHeaderName, token)
}

// csrfMiddleware implements the double-submit pattern: safe requests receive a
// token cookie, unsafe ones must echo it in the X-CSRF-Token header.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		hasCookie := err == nil && cookie.Value != ""

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			var token string
			if hasCookie {
				token = cookie.Value
			} else {
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					writeAPIError(w, r, http.StatusInternalServerError, "Internal")
					return
				}
			}
			h.setCSRFCookie(w, token)
			next.ServeHTTP(w, r)
			return
		}

		if !hasCookie {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeAPIError(w, r, http.StatusForbidden, "CSRF")
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			slog.Warn("CSRF header missing", "path", r.URL.Path)
			writeAPIError(w, r, http.StatusForbidden, "CSRF")
			return
		}
		if len(headerToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeAPIError(w, r, http.StatusForbidden, "CSRF")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeAPIError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		authSess, err := h.store.GetAuthSession(r.Context(), cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			writeAPIError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if authSess == nil {
			writeAPIError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		learner, err := h.store.GetLearnerByID(r.Context(), authSess.LearnerID)
		if err != nil || learner == nil {
			writeAPIError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := model.ContextWithLearner(r.Context(), learner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (req *registerRequest) problems() []fieldProblem {
	var out []fieldProblem
	if req.Email == "" {
		out = append(out, fieldProblem{Name: "email", Problem: "missing"})
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		out = append(out, fieldProblem{Name: "email", Problem: "invalid"})
	}
	if req.Name == "" {
		out = append(out, fieldProblem{Name: "name", Problem: "missing"})
	}
	if req.Password == "" {
		out = append(out, fieldProblem{Name: "password", Problem: "missing"})
	} else if len(req.Password) < minPasswordLength {
		out = append(out, fieldProblem{Name: "password", Problem: "invalid"})
	}
	return out
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if problems := req.problems(); len(problems) > 0 {
		writeAPIError(w, r, http.StatusBadRequest, "BadRequest", problems...)
		return
	}

	existing, err := h.store.GetLearnerByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeAPIError(w, r, http.StatusConflict, "EmailTaken", fieldProblem{Name: "email", Problem: "invalid"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	learner := model.Learner{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	learner.ID, err = h.store.CreateLearner(r.Context(), learner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The account stands even without a curriculum; GET /api/box enrolls later.
	if _, err := h.game.Enroll(r.Context(), learner.ID); err != nil {
		slog.Warn("failed to enroll new learner", "learner_id", learner.ID, "error", err)
	}

	if err := h.startSession(w, r, learner.ID); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.store.GetLearnerByID(r.Context(), learner.ID)
	if err != nil || created == nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BadRequest")
		return
	}

	learner, err := h.store.GetLearnerByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		slog.Error("failed to get learner", "error", err)
		writeError(w, r, err)
		return
	}
	if learner == nil {
		writeAPIError(w, r, http.StatusUnauthorized, "InvalidCredentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(learner.PasswordHash), []byte(req.Password)); err != nil {
		writeAPIError(w, r, http.StatusUnauthorized, "InvalidCredentials")
		return
	}

	if err := h.startSession(w, r, learner.ID); err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, learner)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, learnerID int64) error {
	token, err := h.store.CreateAuthSession(r.Context(), learnerID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	return nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}
