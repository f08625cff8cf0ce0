package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrWeakPassword       = errors.New("weak_password")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrUserExists         = errors.New("user_exists")
	ErrUserInactive       = errors.New("user_inactive")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrExpiredToken       = errors.New("token_expired")
)
