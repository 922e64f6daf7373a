package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"mygizmo/internal/auth"
	"mygizmo/internal/events"
	"mygizmo/internal/models"
	"mygizmo/internal/storage"
)

const dashboardFiles = 10

type registerForm struct {
	Username        string `form:"username" binding:"required,min=4,max=30"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

var fieldLabels = map[string]string{
	"Username":        "Username",
	"Email":           "Email",
	"Password":        "Password",
	"ConfirmPassword": "Confirm Password",
}

// formErrors turns binding failures into one line per field.
func formErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"Invalid form data."}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.Field()]
		switch fe.Tag() {
		case "required":
			out = append(out, label+" is required.")
		case "email":
			out = append(out, "Invalid email address.")
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s characters long.", label, fe.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s characters long.", label, fe.Param()))
		case "eqfield":
			out = append(out, "Passwords must match.")
		default:
			out = append(out, label+" is invalid.")
		}
	}
	return out
}

func (s *Server) renderRegister(c *gin.Context, status int, form registerForm) {
	s.render(c, status, "register", "Register", gin.H{"Form": form})
}

func (s *Server) handleRegister(c *gin.Context) {
	ctx := c.Request.Context()

	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		for _, msg := range formErrors(err) {
			addFlash(c, "danger", msg)
		}
		s.renderRegister(c, http.StatusOK, form)
		return
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	userTaken, emailTaken, err := s.db.AccountTaken(ctx, form.Username, form.Email)
	if err != nil {
		log.Error().Err(err).Msg("account lookup failed")
		addFlash(c, "danger", "An error occurred, please try again.")
		s.renderRegister(c, http.StatusOK, form)
		return
	}
	if userTaken {
		addFlash(c, "danger", "That username is taken. Please choose a different one.")
	}
	if emailTaken {
		addFlash(c, "danger", "That email is already registered. Please choose a different one.")
	}
	if userTaken || emailTaken {
		s.renderRegister(c, http.StatusOK, form)
		return
	}

	customerID, err := s.billing.CreateCustomer(ctx, form.Email, form.Username)
	if err != nil {
		log.Error().Err(err).Str("email", form.Email).Msg("billing customer creation failed")
		addFlash(c, "danger", fmt.Sprintf("Error creating billing customer: %v", err))
		s.renderRegister(c, http.StatusOK, form)
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		addFlash(c, "danger", fmt.Sprintf("An error occurred: %v", err))
		s.renderRegister(c, http.StatusOK, form)
		return
	}

	acc := &models.Account{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: hash,
	}
	if customerID != "" {
		acc.StripeCustomerID = &customerID
	}
	if err := s.db.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			addFlash(c, "danger", "That username or email is already registered.")
		} else {
			log.Error().Err(err).Msg("account creation failed")
			addFlash(c, "danger", fmt.Sprintf("An error occurred: %v", err))
		}
		s.renderRegister(c, http.StatusOK, form)
		return
	}

	log.Info().Int64("account_id", acc.ID).Str("username", acc.Username).Msg("account registered")
	redirectWithFlash(c, "/login", "success", "Your account has been created! You are now able to log in")
}

func (s *Server) handleLogin(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		for _, msg := range formErrors(err) {
			addFlash(c, "danger", msg)
		}
		s.render(c, http.StatusOK, "login", "Login", gin.H{"Email": form.Email})
		return
	}

	acc, err := s.db.GetAccountByEmail(c.Request.Context(), strings.TrimSpace(form.Email))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Msg("account lookup failed")
	}
	if acc == nil || !auth.CheckPasswordHash(form.Password, acc.PasswordHash) {
		addFlash(c, "danger", "Login Unsuccessful. Please check email and password")
		s.render(c, http.StatusOK, "login", "Login", gin.H{"Email": form.Email})
		return
	}

	if err := s.setSession(c, models.Identity{AccountID: acc.ID, Username: acc.Username}); err != nil {
		log.Error().Err(err).Msg("session token failed")
		addFlash(c, "danger", "Login failed, please try again.")
		s.render(c, http.StatusOK, "login", "Login", gin.H{"Email": form.Email})
		return
	}
	redirectWithFlash(c, safeNext(c.Query("next")), "success", "Login Successful!")
}

func (s *Server) handleLogout(c *gin.Context) {
	s.clearSession(c)
	redirectWithFlash(c, "/", "info", "You have been logged out.")
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)

	acc, err := s.db.GetAccountByID(ctx, id.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.clearSession(c)
			redirectWithFlash(c, "/login", "info", "Please log in to access this page.")
			return
		}
		log.Error().Err(err).Int64("account_id", id.AccountID).Msg("account lookup failed")
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	files, err := s.history.Recent(ctx, id, dashboardFiles)
	if err != nil {
		log.Error().Err(err).Int64("account_id", id.AccountID).Msg("file history lookup failed")
	}
	s.render(c, http.StatusOK, "dashboard", "Dashboard", gin.H{
		"Account":        acc,
		"Files":          files,
		"PublishableKey": s.billing.PublishableKey(),
	})
}

// handleDeleteAccount removes the account with its file metadata and asks
// the janitor to drop the stored bytes.
func (s *Server) handleDeleteAccount(c *gin.Context) {
	ctx := c.Request.Context()
	id := identity(c)

	names, err := s.db.DeleteAccount(ctx, id.AccountID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Int64("account_id", id.AccountID).Msg("account deletion failed")
		redirectWithFlash(c, "/dashboard", "danger", "Could not delete your account, please try again.")
		return
	}

	if len(names) > 0 && s.events != nil {
		err := s.events.Publish(ctx, events.Event{
			Type:        events.AccountDeleted,
			AccountID:   id.AccountID,
			StoredNames: names,
		})
		if err != nil {
			log.Error().Err(err).Int64("account_id", id.AccountID).Strs("stored_names", names).Msg("failed to schedule file cleanup")
		}
	}

	log.Info().Int64("account_id", id.AccountID).Int("files", len(names)).Msg("account deleted")
	s.clearSession(c)
	redirectWithFlash(c, "/", "info", "Your account has been deleted.")
}
