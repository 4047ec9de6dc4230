package ai

import "errors"

// ErrUnavailable means the provider is not configured (e.g. missing API key).
var ErrUnavailable = errors.New("ai provider unavailable")
