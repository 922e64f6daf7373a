package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/auth"
	"mygizmo/internal/models"
)

const (
	sessionCookie = "mygizmo_session"
	identityKey   = "identity"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		if status >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// limitBody caps request bodies at max bytes.
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// session resolves the session cookie into an identity. Invalid or
// expired tokens are dropped.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		loadFlashes(c)

		token, err := c.Cookie(sessionCookie)
		if err == nil && token != "" {
			id, err := auth.VerifyToken(token, s.cfg.Session.Secret)
			if err != nil {
				log.Debug().Err(err).Msg("dropping invalid session")
				s.clearSession(c)
			} else {
				c.Set(identityKey, id)
			}
		}
		c.Next()
	}
}

func identity(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*models.Identity)
	return id
}

func (s *Server) setSession(c *gin.Context, id models.Identity) error {
	token, err := auth.GenerateToken(id, s.cfg.Session.Secret, s.cfg.Session.TTL)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.cfg.Session.TTL.Seconds()), "/", "", s.cfg.Session.Secure, true)
	return nil
}

func (s *Server) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cfg.Session.Secure, true)
}

// requireAuth sends anonymous callers to the login page and back.
func (s *Server) requireAuth(c *gin.Context) {
	if identity(c) != nil {
		c.Next()
		return
	}
	addFlash(c, "info", "Please log in to access this page.")
	c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

// guestOnly sends signed-in callers to the tools page.
func (s *Server) guestOnly(c *gin.Context) {
	if identity(c) == nil {
		c.Next()
		return
	}
	c.Redirect(http.StatusFound, "/tools")
	c.Abort()
}

// safeNext accepts only local absolute paths as a post-login target.
func safeNext(next string) string {
	if next == "" || next[0] != '/' || len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/tools"
	}
	return next
}
