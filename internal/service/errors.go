package service

import "errors"

// User service specific errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// Partner flow specific errors
var (
	ErrSelfRequest            = errors.New("cannot send request to yourself")
	ErrAlreadyPartners        = errors.New("users are already partners")
	ErrRequestPending         = errors.New("request already pending")
	ErrPartnerRequestNotFound = errors.New("partner request not found")
	ErrNotRequestRecipient    = errors.New("request addressed to another user")
	ErrPartnershipNotFound    = errors.New("partnership not found")
)
