package app

import "errors"

var (
	// Authorization pipeline failures. Kinds stay distinct so the HTTP
	// boundary can decide its own status mapping.
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserNotFound = errors.New("user not found")
	ErrRateLimited  = errors.New("rate limit exceeded")

	// ErrInvalidCredentials is safe to show to end users and does not
	// enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrPetNotFound     = errors.New("pet not found")
	ErrForbidden       = errors.New("forbidden")
	ErrPetNameRequired = errors.New("pet name required")
)
