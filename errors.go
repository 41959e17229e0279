package prospect

import "errors"

// ErrMissingParameter is returned when a required request parameter is absent.
var ErrMissingParameter = errors.New("prospect: missing required parameter")

// ErrNotStarted is returned when the service is used before Start.
var ErrNotStarted = errors.New("prospect: service not started")
