package services

import "fmt"

// ConfigurationError reports an unusable AI configuration, e.g. a missing
// API credential. It fails the request before any network call.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// UpstreamError wraps a completion API failure. The gateway does not retry;
// callers decide retry policy.
type UpstreamError struct {
	Provider string
	Model    string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s error (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// SerializationError reports structured-output content that failed to parse.
// It cannot be recovered silently since the caller expects structured data.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to parse structured response: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
