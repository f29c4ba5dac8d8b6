package service

import "errors"

var (
	ErrWorkbenchNotFound = errors.New("workbench not found")
	ErrInvalidRelayURL   = errors.New("relay url must be an absolute http or https url")
	ErrHostNotAllowed    = errors.New("host is not on the relay allowlist")
	ErrRateLimited       = errors.New("too many relay requests")
)
