package store

import "errors"

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDuplicateKey      = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidPage       = errors.New("invalid page: skip must be >= 0 and limit between 1 and 100")
)
