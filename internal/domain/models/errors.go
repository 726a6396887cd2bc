package models

import "errors"

var (
	// ErrVaultNotFound means the vault is unknown to the service or indexer.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrInvalidInput covers malformed addresses and impossible market figures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnavailable is returned when the market list cannot be fetched.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
