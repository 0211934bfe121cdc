package apperror

import "net/http"

// Fallback errors used by the HTTP mapper when a feature package does not
// supply its own sentinel.
var (
	ErrNotFound = New(
		CodeNotFound,
		"resource not found",
		http.StatusNotFound,
	)

	ErrInternal = New(
		CodeInternalError,
		"an unexpected error occurred",
		http.StatusInternalServerError,
	)
)
