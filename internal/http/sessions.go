package http

import (
	"net/http"

	"invoicedash/internal/session"
)

// sessionCookie carries the opaque session ID. The session state itself
// never leaves the server.
const sessionCookie = "invoicedash_session"

// currentSession returns the live session named by the request cookie.
func (s *Server) currentSession(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

// ensureSession returns the request's session, starting one bound to the
// default store when there is none.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) *session.Session {
	if sess, ok := s.currentSession(r); ok {
		return sess
	}
	sess := s.sessions.Create(s.defaultSvc)
	s.setSessionCookie(w, sess.ID)
	return sess
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.settings.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.settings.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadedSession returns the request's session when it has a worksheet
// open. Otherwise it sends the browser back to the connect page.
func (s *Server) loadedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.currentSession(r)
	if ok {
		if v, err := sess.View(); err == nil && v.Loaded {
			return sess, true
		}
	}
	s.redirect(w, r, "/")
	return nil, false
}

// redirect navigates htmx requests with HX-Redirect and plain requests
// with 303 See Other.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, url string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
