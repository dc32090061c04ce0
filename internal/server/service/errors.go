package service

import (
	"errors"

	"locker/internal/server/storage"
)

// Sentinel errors for the service layer.
var (
	ErrNotInitialized      = errors.New("locker has not been initialized")
	ErrAlreadyInitialized  = errors.New("locker is already initialized")
	ErrBadCredentials      = errors.New("incorrect password")
	ErrNotAuthenticated    = errors.New("admin session required")
	ErrNoFileSelected      = errors.New("no file selected")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrInvalidExpiryWindow = errors.New("invalid expiry window")
	ErrCodeNotFound        = errors.New("pickup code not found")
	ErrCodeExpired         = errors.New("pickup code has expired")
	ErrFileMissing         = errors.New("stored file is missing")
	ErrCodeSpaceExhausted  = errors.New("no free pickup codes left")
	ErrIOFailure           = errors.New("storage operation failed")
	ErrEmptyPassword       = errors.New("password must not be empty")
	ErrPasswordMismatch    = errors.New("new passwords do not match")
	ErrInvalidMaxSize      = errors.New("max file size must be between 1 and 1024 MB")
	ErrInvalidExtension    = errors.New("extension must be a positive number of hours")

	ErrUnsupportedImageFormat = storage.ErrUnsupportedImageFormat
	ErrInvalidImage           = storage.ErrInvalidImage
)
