package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMalformedFrame     = fmt.Errorf("malformed frame")
	ErrUnknownTarget      = fmt.Errorf("unknown target kind")
	ErrInvalidTargetID    = fmt.Errorf("invalid target id")
	ErrSinkClosed         = fmt.Errorf("sink closed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUsernameTaken      = fmt.Errorf("username already taken")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrGroupNotFound      = fmt.Errorf("group not found")
	ErrContactExists      = fmt.Errorf("contact already added")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)
