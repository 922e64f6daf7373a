package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mygizmo/internal/bgremove"
	"mygizmo/internal/billing"
	"mygizmo/internal/convert"
	"mygizmo/internal/events"
	"mygizmo/internal/history"
	"mygizmo/internal/metrics"
	"mygizmo/internal/models"
	"mygizmo/internal/studio"
)

// Repository is the account side of the database.
type Repository interface {
	CreateAccount(ctx context.Context, acc *models.Account) error
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	SetSubscriptionStatus(ctx context.Context, customerID, status string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id int64) ([]string, error)
	Ping(ctx context.Context) error
}

// Services are the tool backends the handlers call into.
type Services struct {
	Studio     *studio.Processor
	History    *history.Recorder
	Billing    billing.Client
	Remover    bgremove.Remover
	Rasterizer convert.Rasterizer
	Events     events.Publisher
}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	http   *http.Server
	db     Repository

	studio  *studio.Processor
	history *history.Recorder
	billing billing.Client
	remover bgremove.Remover
	raster  convert.Rasterizer
	events  events.Publisher

	pages *pageSet
}

func NewServer(cfg *models.Config, db Repository, svc Services) *Server {
	r := gin.New()

	s := &Server{
		cfg:     cfg,
		router:  r,
		db:      db,
		studio:  svc.Studio,
		history: svc.History,
		billing: svc.Billing,
		remover: svc.Remover,
		raster:  svc.Rasterizer,
		events:  svc.Events,
		pages:   loadPages(),
	}
	if s.billing == nil {
		s.billing = billing.Disabled{}
	}

	r.Use(recovery(), requestLogger(), metrics.Middleware(), limitBody(cfg.MaxUploadBytes), s.session())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/", s.page("home", "Home"))
	r.GET("/tools", s.page("tools", "Tools"))
	r.GET("/privacy", s.page("privacy", "Privacy Policy"))
	r.GET("/terms", s.page("terms", "Terms of Service"))
	r.GET("/features", s.page("features", "Features"))
	r.GET("/about", s.page("about", "About"))
	r.GET("/contact", s.page("contact", "Contact"))
	r.GET("/calculator", s.page("calculator", "Calculator"))
	r.GET("/image-studio", s.page("image_studio", "Image Studio"))
	r.GET("/file-converter", s.page("file_converter", "File Converter"))
	r.GET("/ai-background-remover", s.page("ai_background_remover", "AI Background Remover"))
	r.GET("/qr-generator", s.page("qr_generator", "QR Code Generator"))
	r.GET("/slug-generator", s.page("slug_generator", "Slug Generator"))
	r.GET("/list-randomizer", s.page("list_randomizer", "List Randomizer"))

	r.GET("/register", s.guestOnly, s.page("register", "Register"))
	r.POST("/register", s.guestOnly, s.handleRegister)
	r.GET("/login", s.guestOnly, s.page("login", "Login"))
	r.POST("/login", s.guestOnly, s.handleLogin)
	r.GET("/logout", s.handleLogout)

	r.POST("/process", s.handleProcess)
	r.POST("/convert", s.handleConvert)
	r.POST("/ai-background-remover", s.handleRemoveBackground)
	r.POST("/qr-generator", s.handleQRCode)
	r.POST("/generate-slug", s.handleSlug)

	r.GET("/success", s.handleCheckoutResult("success", "Your subscription was successful!"))
	r.GET("/cancel", s.handleCheckoutResult("cancel", "Your subscription process was cancelled."))
	r.POST("/stripe-webhook", s.handleStripeWebhook)

	auth := r.Group("/", s.requireAuth)
	auth.GET("/dashboard", s.handleDashboard)
	auth.GET("/download_file/:filename", s.handleDownload)
	auth.POST("/account/delete", s.handleDeleteAccount)
	auth.POST("/create-checkout-session", s.handleCheckoutSession)
	auth.POST("/create-portal-session", s.handlePortalSession)

	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
