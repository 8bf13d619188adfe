package model

import "errors"

var (
	ErrUnauthorized     = errors.New("no resolvable identity")
	ErrForbidden        = errors.New("identity does not own the claimed resource")
	ErrInvalidSignature = errors.New("signature verification failed")
	ErrInvalidPayload   = errors.New("malformed payload")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProfileNotFound  = errors.New("profile not found")
)
