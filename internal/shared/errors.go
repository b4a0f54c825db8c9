package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrValidation    = fmt.Errorf("validation failed")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized     = fmt.Errorf("auth required")
	ErrMissingCSRF      = fmt.Errorf("missing csrf token")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrStreamFailed       = fmt.Errorf("stream failed")
	ErrSessionNotFound    = fmt.Errorf("chat session not found")
	ErrItemNotFound       = fmt.Errorf("item not found")

	// State errors
	ErrBusy        = fmt.Errorf("operation already in progress")
	ErrUnsupported = fmt.Errorf("unsupported for this feed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
