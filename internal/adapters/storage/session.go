package storage

import (
	"net/http"

	"github.com/google/uuid"
)

const SessionCookie = "sid"

// SessionID lee o emite la cookie de sesión del navegador.
func SessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/", MaxAge: 60 * 60 * 24 * 30, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	// los siguientes accesos del mismo request ven la sesión nueva
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	return sid
}
