package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/Dicklesworthstone/quill/internal/auth"
	"github.com/Dicklesworthstone/quill/internal/db"
)

// LoginFailedMessage is shown when the submitted credentials do not match.
const LoginFailedMessage = "Your email or password is incorrect."

type ctxKey int

const userKey ctxKey = iota

func currentUser(r *http.Request) *db.User {
	u, _ := r.Context().Value(userKey).(*db.User)
	return u
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	if u := s.sessionUser(r); u != nil {
		http.Redirect(w, r, s.cfg.Admin.LoginRedirectPath, http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "login", view{Title: "Login"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := r.PostForm.Get("email")
	u, err := auth.Authenticate(s.db, email, r.PostForm.Get("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.log.Info("login failed", "email", email)
		if isXHR(r) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": LoginFailedMessage})
			return
		}
		s.render(w, http.StatusUnprocessableEntity, "login", view{
			Title:  "Login",
			Error:  LoginFailedMessage,
			Values: url.Values{"email": {email}},
		})
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}

	sess, err := s.db.CreateSession(u.ID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Info("login", "user_id", u.ID)
	if isXHR(r) {
		writeJSON(w, http.StatusOK, u)
		return
	}
	http.Redirect(w, r, s.cfg.Admin.LoginRedirectPath, http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cfg.Auth.SessionCookie); err == nil {
		if err := s.db.EndSession(c.Value); err != nil && !errors.Is(err, db.ErrSessionNotFound) {
			s.serverError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   s.cfg.Auth.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, s.prefix+"/login", http.StatusFound)
}

// sessionUser returns the user of the request's active session, or nil.
func (s *Server) sessionUser(r *http.Request) *db.User {
	c, err := r.Cookie(s.cfg.Auth.SessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.db.GetActiveSession(c.Value)
	if err != nil {
		return nil
	}
	u, err := s.db.GetUser(sess.UserID)
	if err != nil {
		return nil
	}
	if err := s.db.TouchSession(sess.ID); err != nil {
		s.log.Warn("touch session", "error", err)
	}
	return u
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := s.sessionUser(r)
		if u == nil {
			if isXHR(r) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
				return
			}
			http.Redirect(w, r, s.prefix+"/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}
