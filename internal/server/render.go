package server

import (
	"embed"
	"html/template"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/models"
)

//go:embed templates
var templateFS embed.FS

// pageSet holds one template per page, each sharing the layout.
type pageSet struct {
	pages map[string]*template.Template
}

func loadPages() *pageSet {
	base := template.Must(template.New("layout.html").ParseFS(templateFS, "templates/layout.html"))

	names, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		panic(err)
	}
	set := &pageSet{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t := template.Must(template.Must(base.Clone()).ParseFS(templateFS, name))
		set.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return set
}

// render writes page with the common layout data merged into data.
func (s *Server) render(c *gin.Context, status int, page, title string, data gin.H) {
	t, ok := s.pages.pages[page]
	if !ok {
		log.Error().Str("page", page).Msg("unknown page")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Page"] = page
	data["User"] = identity(c)
	data["BillingEnabled"] = s.billing.Enabled()
	data["Flashes"] = takeFlashes(c)

	c.Render(status, render.HTML{Template: t, Name: "layout.html", Data: data})
}

func (s *Server) page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.render(c, http.StatusOK, name, title, nil)
	}
}

// redirectWithFlash is the failure path of every form handler.
func redirectWithFlash(c *gin.Context, to, category, message string) {
	addFlash(c, category, message)
	c.Redirect(http.StatusFound, to)
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// sendArtifact streams src to the client as a download.
func sendArtifact(c *gin.Context, src models.FileSource, name, contentType string) {
	if data, ok := src.Bytes(); ok {
		c.Header("Content-Disposition", attachment(name))
		c.Data(http.StatusOK, contentType, data)
		return
	}
	if p, ok := src.Path(); ok {
		c.Header("Content-Type", contentType)
		c.FileAttachment(p, name)
		return
	}
	c.AbortWithStatus(http.StatusInternalServerError)
}
