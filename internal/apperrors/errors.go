package apperrors

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by the document, comment and like workflows.
// Services wrap these with context via fmt.Errorf("...: %w", Err...);
// handlers map them to HTTP statuses with Status.
var (
	// ErrNotFound: referenced document, version, comment or form is absent.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the acting user is not the required author.
	ErrForbidden = errors.New("forbidden")
	// ErrPolicyViolation: community document-creation limit exceeded.
	ErrPolicyViolation = errors.New("document creation limit reached")
	// ErrInvalidParam: malformed reference, non-commentable field or
	// unresolvable custom form.
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrClosed: mutation attempted on a document past its closing date.
	ErrClosed = errors.New("document is closed")
	// ErrMissingQuery: comment listing called without any filter.
	ErrMissingQuery = errors.New("missing query")
	// ErrVersionConflict: a concurrent edit already produced the version
	// number this write computed.
	ErrVersionConflict = errors.New("version conflict")
	// ErrUnauthorized: no authenticated user in context.
	ErrUnauthorized = errors.New("unauthorized")
)

// Status maps a workflow error to its HTTP status. Unrecognized errors
// map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPolicyViolation):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrClosed):
		return http.StatusConflict
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
