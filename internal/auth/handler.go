package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/taskmanager-auth/internal/httputil"
	"github.com/redmonkez12/taskmanager-auth/internal/logging"
	"github.com/redmonkez12/taskmanager-auth/internal/user"
)

// VerifyEmailPath is where verification links point when no explicit base
// URL is configured.
const VerifyEmailPath = "/api/v1/users/verify-email"

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service        *Service
	cookies        CookieOptions
	verifyEmailURL string
}

func NewHandler(service *Service, cookies CookieOptions, verifyEmailURL string) *Handler {
	return &Handler{
		service:        service,
		cookies:        cookies,
		verifyEmailURL: strings.TrimRight(verifyEmailURL, "/"),
	}
}

// UserResponse wraps a user in API responses
type UserResponse struct {
	User *user.User `json:"user"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an unverified account. A verification email is sent.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} httputil.Response{data=UserResponse}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email or username taken"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return err
	}

	newUser, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password, h.verifyBaseURL(r))
	if err != nil {
		return toHTTPError(err)
	}

	logging.GetLoggerFromContext(r.Context()).Info("user registered successfully", "user_id", newUser.ID)

	httputil.RespondOK(w, http.StatusCreated, UserResponse{User: newUser},
		"user registered successfully and verification email has been sent")
	return nil
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate and receive access and refresh tokens, also set as cookies
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} httputil.Response{data=LoginResponse}
// @Failure      400 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      404 {object} httputil.ErrorResponse "User does not exist"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return err
	}

	u, tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return toHTTPError(err)
	}

	logging.GetLoggerFromContext(r.Context()).Info("user logged in successfully", "user_id", u.ID)

	h.cookies.SetAuthCookies(w, tokens)
	httputil.RespondOK(w, http.StatusOK, LoginResponse{
		User:         u,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "user logged in successfully")
	return nil
}

// Logout clears the stored refresh token and the session cookies
// @Summary      Logout
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Response
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /users/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}

	if err := h.service.Logout(r.Context(), u.ID); err != nil {
		return toHTTPError(err)
	}

	h.cookies.ClearAuthCookies(w)
	httputil.RespondOK(w, http.StatusOK, nil, "user logged out")
	return nil
}

// CurrentUser returns the authenticated user
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Response{data=user.User}
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /users/current-user [get]
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}

	httputil.RespondOK(w, http.StatusOK, u, "current user fetched successfully")
	return nil
}

// VerifyEmail redeems the token from an emailed verification link
// @Summary      Verify email
// @Tags         users
// @Produce      json
// @Param        verificationToken path string true "Token from the verification email"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Router       /users/verify-email/{verificationToken} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	token := chi.URLParam(r, "verificationToken")

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		return toHTTPError(err)
	}

	httputil.RespondOK(w, http.StatusOK, map[string]bool{"isEmailVerified": true}, "email is verified")
	return nil
}

// ResendEmailVerification sends a fresh verification link
// @Summary      Resend verification email
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.Response
// @Failure      409 {object} httputil.ErrorResponse "Already verified"
// @Router       /users/resend-email-verification [post]
func (h *Handler) ResendEmailVerification(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}

	if err := h.service.ResendVerification(r.Context(), u.ID, h.verifyBaseURL(r)); err != nil {
		return toHTTPError(err)
	}

	httputil.RespondOK(w, http.StatusOK, nil, "mail has been sent to your email ID")
	return nil
}

// RefreshToken exchanges a refresh token for a new token pair
// @Summary      Refresh tokens
// @Description  Reads the refresh token from the refreshToken cookie or the request body
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token when not sent as cookie"
// @Success      200 {object} httputil.Response{data=AuthTokens}
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /users/refresh-token [post]
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	refreshToken := tokenFromCookie(r, RefreshTokenCookie)
	if refreshToken == "" {
		var req RefreshRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			return err
		}
		refreshToken = strings.TrimSpace(req.RefreshToken)
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		return toHTTPError(err)
	}

	h.cookies.SetAuthCookies(w, tokens)
	httputil.RespondOK(w, http.StatusOK, tokens, "access token refreshed")
	return nil
}

// ForgotPassword emails a password reset link
// @Summary      Forgot password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Account email"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /users/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return err
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		return toHTTPError(err)
	}

	httputil.RespondOK(w, http.StatusOK, nil, "password reset mail has been sent to your email ID")
	return nil
}

// ResetPassword sets a new password using the emailed reset token
// @Summary      Reset password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        resetToken path string true "Token from the reset email"
// @Param        request body ResetPasswordRequest true "New password"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Router       /users/reset-password/{resetToken} [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req ResetPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return err
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "resetToken"), req.NewPassword); err != nil {
		return toHTTPError(err)
	}

	httputil.RespondOK(w, http.StatusOK, nil, "password reset successfully")
	return nil
}

// ChangePassword changes the password of the authenticated user
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} httputil.Response
// @Failure      400 {object} httputil.ErrorResponse "Old password does not match"
// @Router       /users/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	u, err := requireUser(r)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(r.Context(), u.ID, req.OldPassword, req.NewPassword); err != nil {
		return toHTTPError(err)
	}

	httputil.RespondOK(w, http.StatusOK, nil, "password changed successfully")
	return nil
}

// verifyBaseURL is the configured verification URL, or one derived from
// the incoming request.
func (h *Handler) verifyBaseURL(r *http.Request) string {
	if h.verifyEmailURL != "" {
		return h.verifyEmailURL
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, VerifyEmailPath)
}

func requireUser(r *http.Request) (*user.User, error) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		return nil, httputil.NewError(http.StatusUnauthorized, httputil.CodeUnauthorized, "unauthorized request")
	}
	return u, nil
}

// toHTTPError maps service errors to API errors. Anything unmapped is left
// for the boundary to report as 500.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrUserExists):
		return httputil.Wrap(err, http.StatusConflict, httputil.CodeConflict, "user with same email or username already exists")
	case errors.Is(err, ErrEmailAlreadyVerified):
		return httputil.Wrap(err, http.StatusConflict, httputil.CodeConflict, "user is already verified")
	case errors.Is(err, ErrUserNotFound):
		return httputil.Wrap(err, http.StatusNotFound, httputil.CodeNotFound, "user does not exist")
	case errors.Is(err, ErrInvalidCredentials):
		return httputil.Wrap(err, http.StatusBadRequest, httputil.CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, ErrUnauthorized):
		return httputil.Wrap(err, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid refresh token")
	case errors.Is(err, ErrOneTimeTokenInvalid), errors.Is(err, ErrTokenExpired):
		return httputil.Wrap(err, http.StatusBadRequest, httputil.CodeInvalidToken, "token is invalid or expired")
	default:
		return err
	}
}
