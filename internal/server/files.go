package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/history"
)

// handleDownload serves a stored file to its owner under its original
// name. Files of other accounts are not found.
func (s *Server) handleDownload(c *gin.Context) {
	f, rc, err := s.history.Open(c.Request.Context(), identity(c), c.Param("filename"))
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Error().Err(err).Str("stored_name", c.Param("filename")).Msg("stored file lookup failed")
		}
		c.String(http.StatusNotFound, "File not found")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": attachment(f.OriginalName),
	})
}
