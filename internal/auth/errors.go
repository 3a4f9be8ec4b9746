package auth

import "errors"

var (
	ErrUserExists           = errors.New("user with same email or username already exists")
	ErrUserNotFound         = errors.New("user does not exist")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthorized         = errors.New("unauthorized request")
	ErrInvalidToken         = errors.New("invalid token")
	ErrOneTimeTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired         = errors.New("token has expired")
	ErrEmailAlreadyVerified = errors.New("email is already verified")
)
