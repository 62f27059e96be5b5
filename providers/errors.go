package providers

import "errors"

var (
	// ErrProviderNotConfigured means the requested operator key is not in
	// the loaded provider listing.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrProviderUnsupported means the provider kind is configured but has
	// no Strategy implementation.
	ErrProviderUnsupported = errors.New("provider kind not supported")
	// ErrClaimsDecode means an identity token payload could not be decoded.
	ErrClaimsDecode = errors.New("identity claims decode failed")
)
