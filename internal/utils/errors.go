package utils

import "errors"

// Common application errors used across services.
var (
	ErrJobNotFound        = errors.New("JOB_NOT_FOUND")
	ErrJobNotProcessable  = errors.New("JOB_NOT_PROCESSABLE")
	ErrInvalidContentType = errors.New("INVALID_CONTENT_TYPE")
	ErrInvalidConfig      = errors.New("INVALID_CONFIGURATION")
)
