package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the basic-auth user name for administrative routes.
const AdminUser = "admin"

// requireAdmin checks HTTP basic credentials against the stored bcrypt hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) != 1 {
			unauthorized(w)
			return
		}

		hash, err := h.store.AdminPasswordHash()
		if err != nil {
			slog.Error("failed to read admin password hash", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if hash == "" {
			slog.Warn("admin request rejected, no admin password configured")
			unauthorized(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			slog.Warn("admin authentication failed", "remote", r.RemoteAddr)
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="answergrader", charset="UTF-8"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
}
