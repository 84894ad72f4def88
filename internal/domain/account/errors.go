package account

import "errors"

var (
	ErrMissingData      = errors.New("missing required fields")
	ErrUserNotFound     = errors.New("user not found")
	ErrWrongPassword    = errors.New("wrong password")
	ErrInvalidUserType  = errors.New("invalid user type")
	ErrUserTypeNotFound = errors.New("user type not found")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrUnknownField     = errors.New("unknown field in request body")
	ErrPurgeFailed      = errors.New("could not purge producer files")
)
