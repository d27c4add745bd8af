package util

import "errors"

var (
	ErrValidation               = errors.New("invalid request data")
	ErrInvalidScore             = errors.New("invalid or suspicious score")
	ErrDuplicateDailySubmission = errors.New("daily challenge already submitted")
	ErrGenerationFailed         = errors.New("problem generation failed")
	ErrStorage                  = errors.New("storage error")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrRequestNotFound          = errors.New("certificate request not found")
	ErrUnauthorized             = errors.New("unauthorized")
)
