package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/redmonkez12/taskmanager-auth/internal/logging"
	"github.com/redmonkez12/taskmanager-auth/internal/user"
)

// Mailer delivers the emails that carry single-use links.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, link string) error
	SendPasswordResetEmail(ctx context.Context, to, username, link string) error
}

// AuthTokens is an issued access/refresh pair.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ServiceOptions holds the settings the service needs beyond its collaborators.
type ServiceOptions struct {
	// ForgotPasswordURL is the frontend page the reset token is appended to.
	ForgotPasswordURL string
	// RevealUnknownEmail makes ForgotPassword fail with ErrUserNotFound for
	// unknown addresses instead of succeeding silently.
	RevealUnknownEmail bool
}

// Service handles authentication business logic
type Service struct {
	users    user.Store
	hasher   *Hasher
	tokens   *TokenIssuer
	onetime  *OneTimeTokens
	mailer   Mailer
	logger   *logging.Logger
	opts     ServiceOptions
	newID    func() string
	sendMail func(fn func(ctx context.Context) error, msg string, args ...any)
}

func NewService(
	users user.Store,
	hasher *Hasher,
	tokens *TokenIssuer,
	onetime *OneTimeTokens,
	mailer Mailer,
	logger *logging.Logger,
	opts ServiceOptions,
) *Service {
	s := &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		onetime: onetime,
		mailer:  mailer,
		logger:  logger,
		opts:    opts,
		newID:   uuid.NewString,
	}
	s.sendMail = s.sendInBackground
	return s
}

// Register creates an unverified user and emails a verification link built
// from verifyBaseURL.
func (s *Service) Register(ctx context.Context, email, username, password, verifyBaseURL string) (*user.User, error) {
	email, username = user.Normalize(email), user.Normalize(username)

	// Uniqueness is checked here rather than left to the store's indexes.
	if _, err := s.users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tok, err := s.onetime.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newUser := user.New(s.newID(), username, email, passwordHash)
	newUser.SetEmailVerification(tok.Hash, tok.Expiry)

	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	link := verifyBaseURL + "/" + tok.Raw
	s.sendMail(func(ctx context.Context) error {
		return s.mailer.SendVerificationEmail(ctx, newUser.Email, newUser.Username, link)
	}, "failed to send verification email", "user_id", newUser.ID)

	return newUser, nil
}

// Login checks the password and stores a freshly issued refresh token on
// the user, replacing any previous one.
func (s *Service) Login(ctx context.Context, email, password string) (*user.User, *AuthTokens, error) {
	existingUser, err := s.users.GetByEmail(ctx, user.Normalize(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(password, existingUser.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(ctx, existingUser)
	if err != nil {
		return nil, nil, err
	}

	return existingUser, tokens, nil
}

// Logout clears the stored refresh token.
func (s *Service) Logout(ctx context.Context, userID string) error {
	existingUser, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	existingUser.RefreshToken = ""
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// Refresh exchanges the user's current refresh token for a new pair. Any
// other token, including a previously rotated one, is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	if refreshToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	existingUser, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existingUser.RefreshToken == "" ||
		subtle.ConstantTimeCompare([]byte(existingUser.RefreshToken), []byte(refreshToken)) != 1 {
		return nil, ErrUnauthorized
	}

	return s.issueTokens(ctx, existingUser)
}

// VerifyEmail redeems a verification token and marks the email verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return ErrOneTimeTokenInvalid
	}

	existingUser, err := s.users.GetByEmailVerificationHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrOneTimeTokenInvalid
		}
		return fmt.Errorf("failed to find user by token: %w", err)
	}
	if !existingUser.HasPendingVerification() {
		return ErrOneTimeTokenInvalid
	}

	if err := s.onetime.Redeem(rawToken, *existingUser.EmailVerificationTokenHash, *existingUser.EmailVerificationExpiry); err != nil {
		return err
	}

	existingUser.ClearEmailVerification()
	existingUser.IsEmailVerified = true
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// ResendVerification replaces the outstanding verification token and emails
// a new link.
func (s *Service) ResendVerification(ctx context.Context, userID, verifyBaseURL string) error {
	existingUser, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if existingUser.IsEmailVerified {
		return ErrEmailAlreadyVerified
	}

	tok, err := s.onetime.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}

	existingUser.SetEmailVerification(tok.Hash, tok.Expiry)
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to update verification token: %w", err)
	}

	link := verifyBaseURL + "/" + tok.Raw
	s.sendMail(func(ctx context.Context) error {
		return s.mailer.SendVerificationEmail(ctx, existingUser.Email, existingUser.Username, link)
	}, "failed to resend verification email", "user_id", existingUser.ID)

	return nil
}

// ForgotPassword issues a reset token and emails the reset link. Unknown
// addresses succeed silently unless RevealUnknownEmail is set.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	existingUser, err := s.users.GetByEmail(ctx, user.Normalize(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			if s.opts.RevealUnknownEmail {
				return ErrUserNotFound
			}
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	tok, err := s.onetime.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate password reset token: %w", err)
	}

	existingUser.SetPasswordReset(tok.Hash, tok.Expiry)
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to store password reset token: %w", err)
	}

	link := s.opts.ForgotPasswordURL + "/" + tok.Raw
	s.sendMail(func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, existingUser.Email, existingUser.Username, link)
	}, "failed to send password reset email", "user_id", existingUser.ID)

	return nil
}

// ResetPassword redeems a reset token and replaces the password hash.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrOneTimeTokenInvalid
	}

	existingUser, err := s.users.GetByPasswordResetHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrOneTimeTokenInvalid
		}
		return fmt.Errorf("failed to find user by token: %w", err)
	}
	if !existingUser.HasPendingReset() {
		return ErrOneTimeTokenInvalid
	}

	if err := s.onetime.Redeem(rawToken, *existingUser.ForgotPasswordTokenHash, *existingUser.ForgotPasswordExpiry); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existingUser.ClearPasswordReset()
	existingUser.PasswordHash = passwordHash
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	existingUser, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, existingUser.PasswordHash) {
		return ErrInvalidCredentials
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existingUser.PasswordHash = passwordHash
	if err := s.users.Update(ctx, existingUser); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// CurrentUser loads the user an access token was issued to.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*user.User, error) {
	return s.getUser(ctx, userID)
}

func (s *Service) getUser(ctx context.Context, userID string) (*user.User, error) {
	existingUser, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return existingUser, nil
}

// issueTokens creates both tokens and persists the refresh token.
func (s *Service) issueTokens(ctx context.Context, u *user.User) (*AuthTokens, error) {
	accessToken, err := s.tokens.IssueAccessToken(u.ID, u.Email, u.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefreshToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	u.RefreshToken = refreshToken
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// sendInBackground runs fn in a goroutine with a detached context. A failed
// send is logged and never reaches the caller.
func (s *Service) sendInBackground(fn func(ctx context.Context) error, msg string, args ...any) {
	go func() {
		if err := fn(context.Background()); err != nil {
			s.logger.Warn(msg, append(args, "error", err)...)
		}
	}()
}
