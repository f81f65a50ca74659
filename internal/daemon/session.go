package daemon

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "memedex_session"

// ensureSession returns the request's session token, minting and setting a
// fresh one when the cookie is absent or malformed. Bulk operations are scoped
// to this token, so a client that drops the cookie orphans its operation;
// orphaned records are cleaned up lazily when the session starts a new one.
func ensureSession(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if _, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			return cookie.Value
		}
	}
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	return token
}
