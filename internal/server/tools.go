package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/convert"
	"mygizmo/internal/models"
	"mygizmo/internal/studio"
	"mygizmo/internal/tools"
)

const maxFlashedErrors = 5

func toUploads(files []*multipart.FileHeader) []studio.Upload {
	uploads := make([]studio.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, studio.Upload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

// formFiles returns the files of field, or nil when the form carries none.
// A body over the size cap is reported separately.
func formFiles(c *gin.Context, field string) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if tooLarge(err) {
			return nil, err
		}
		return nil, nil
	}
	files := form.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, nil
	}
	return files, nil
}

func (s *Server) payloadTooLarge(c *gin.Context) {
	c.String(http.StatusRequestEntityTooLarge, "Upload exceeds the %d MB limit.", s.cfg.MaxUploadBytes>>20)
}

func parseIntField(c *gin.Context, name string, def int) (int, error) {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number", name, v)
	}
	return n, nil
}

func parseFloatField(c *gin.Context, name string, def float64) (float64, error) {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, v)
	}
	return f, nil
}

// parseParameters reads the studio form. Empty fields take their defaults;
// values outside their range are rejected.
func parseParameters(c *gin.Context) (models.ProcessingParameters, error) {
	p := models.DefaultParameters()
	var err error

	ints := []struct {
		name string
		dst  *int
	}{
		{"width", &p.Width},
		{"height", &p.Height},
		{"text_size", &p.TextSize},
		{"quality", &p.Quality},
	}
	for _, f := range ints {
		if *f.dst, err = parseIntField(c, f.name, *f.dst); err != nil {
			return p, err
		}
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"text_opacity", &p.TextOpacity},
		{"img_opacity", &p.ImageOpacity},
		{"image_scale", &p.ImageScale},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloatField(c, f.name, *f.dst); err != nil {
			return p, err
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}

	p.KeepAspect = c.PostForm("keep_aspect") == "on"
	p.WatermarkText = strings.TrimSpace(c.PostForm("watermark_text"))
	p.Position = models.ParsePosition(c.PostForm("wm_position"))
	p.Format = models.ParseFormat(c.PostForm("output_format"))
	return p, nil
}

func (s *Server) handleProcess(c *gin.Context) {
	const back = "/image-studio"

	files, err := formFiles(c, "images")
	if err != nil {
		s.payloadTooLarge(c)
		return
	}
	if files == nil {
		redirectWithFlash(c, back, "error", "Please select at least one image.")
		return
	}
	params, err := parseParameters(c)
	if err != nil {
		redirectWithFlash(c, back, "error", fmt.Sprintf("Invalid form data: %v", err))
		return
	}

	var wm *studio.Upload
	if fh, err := c.FormFile("watermark_image"); err == nil && fh.Filename != "" {
		wm = &toUploads([]*multipart.FileHeader{fh})[0]
	}

	artifact, err := s.studio.Process(c.Request.Context(), toUploads(files), params, wm)
	if err != nil {
		var batchErr *studio.BatchError
		if errors.As(err, &batchErr) {
			errs := batchErr.Errors
			if len(errs) > maxFlashedErrors {
				errs = errs[:maxFlashedErrors]
			}
			redirectWithFlash(c, back, "error", "No images were processed. "+strings.Join(errs, "; "))
			return
		}
		log.Error().Err(err).Msg("studio batch failed")
		redirectWithFlash(c, back, "error", err.Error())
		return
	}
	defer artifact.Release()

	if len(artifact.Errors) > 0 {
		log.Info().Strs("errors", artifact.Errors).Int("processed", artifact.Processed).Msg("studio batch partially failed")
	}
	s.history.Record(c.Request.Context(), identity(c), artifact.Source, artifact.DownloadName, models.ToolImageStudio)
	sendArtifact(c, artifact.Source, artifact.DownloadName, artifact.MimeType)
}

func (s *Server) handleConvert(c *gin.Context) {
	const back = "/file-converter"
	ctx := c.Request.Context()

	files, err := formFiles(c, "file")
	if err != nil {
		s.payloadTooLarge(c)
		return
	}
	if files == nil {
		redirectWithFlash(c, back, "danger", "No selected file")
		return
	}

	var (
		out  []byte
		name string
	)
	switch c.PostForm("conversion_type") {
	case convert.JPGToPDF:
		out, err = convert.ImagesToPDF(toUploads(files))
		if errors.Is(err, convert.ErrNoValidImages) {
			redirectWithFlash(c, back, "danger", "No valid JPG images found")
			return
		}
		if err != nil {
			redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during JPG to PDF conversion: %v", err))
			return
		}
		name = convert.PDFDownloadName

	case convert.PDFToJPG:
		if len(files) > 1 {
			redirectWithFlash(c, back, "danger", "Please upload only one PDF for PDF-to-JPG conversion.")
			return
		}
		f, err := files[0].Open()
		if err != nil {
			redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during PDF to JPG conversion: %v", err))
			return
		}
		out, err = convert.PDFToJPEGs(ctx, s.raster, f)
		f.Close()
		if err != nil {
			log.Warn().Err(err).Msg("pdf rasterization failed")
			redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during PDF to JPG conversion: %v. (Did you install Poppler?)", err))
			return
		}
		name = convert.ZipDownloadName

	default:
		redirectWithFlash(c, back, "danger", "Invalid conversion type")
		return
	}

	src := models.BytesSource(out)
	s.history.Record(ctx, identity(c), src, name, models.ToolFileConverter)
	sendArtifact(c, src, name, "application/octet-stream")
}

func (s *Server) handleRemoveBackground(c *gin.Context) {
	const back = "/ai-background-remover"

	fh, err := c.FormFile("image_file")
	if err != nil || fh.Filename == "" {
		if tooLarge(err) {
			s.payloadTooLarge(c)
			return
		}
		redirectWithFlash(c, back, "error", "No file selected. Please upload an image.")
		return
	}
	if !studio.AllowedFile(fh.Filename) {
		redirectWithFlash(c, back, "error", "Invalid file type. Please upload a JPG, PNG, or WEBP image.")
		return
	}

	f, err := fh.Open()
	if err != nil {
		redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during background removal: %v", err))
		return
	}
	input, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during background removal: %v", err))
		return
	}

	output, err := s.remover.Remove(c.Request.Context(), input)
	if err != nil {
		log.Warn().Err(err).Msg("background removal failed")
		redirectWithFlash(c, back, "danger", fmt.Sprintf("Error during background removal: %v", err))
		return
	}

	name := "bg_removed_" + fh.Filename + ".png"
	src := models.BytesSource(output)
	s.history.Record(c.Request.Context(), identity(c), src, name, models.ToolBackgroundRemover)
	sendArtifact(c, src, name, "image/png")
}

func (s *Server) handleQRCode(c *gin.Context) {
	png, err := tools.QRCode(strings.TrimSpace(c.PostForm("url")), tools.DefaultQRSize)
	if errors.Is(err, tools.ErrEmptyContent) {
		redirectWithFlash(c, "/qr-generator", "danger", "Please enter a URL or text to encode.")
		return
	}
	if err != nil {
		redirectWithFlash(c, "/qr-generator", "danger", err.Error())
		return
	}
	s.render(c, http.StatusOK, "qr_generator", "QR Code Generator", gin.H{
		"Content": c.PostForm("url"),
		"QRImage": template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	})
}

type slugRequest struct {
	Text          string  `json:"text"`
	Separator     *string `json:"separator"`
	RemoveNumbers bool    `json:"remove_numbers"`
	Lowercase     *bool   `json:"lowercase"`
}

func (s *Server) handleSlug(c *gin.Context) {
	var req slugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts := tools.SlugOptions{Separator: "-", Lowercase: true, RemoveNumbers: req.RemoveNumbers}
	if req.Separator != nil {
		opts.Separator = *req.Separator
	}
	if req.Lowercase != nil {
		opts.Lowercase = *req.Lowercase
	}
	c.JSON(http.StatusOK, gin.H{"slug": tools.Slugify(req.Text, opts)})
}
