package api

import "errors"

var (
	ErrNotFound       = errors.New("badge not found on this site")
	ErrQuotaExhausted = errors.New("api request quota exhausted")
)
