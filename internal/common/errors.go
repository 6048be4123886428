package common

import "errors"

// Sentinel errors shared across services. Wrap with fmt.Errorf("...: %w", err)
// and match with errors.Is.
var (
	// ErrInvalidInput reports malformed add/edit arguments. The operation is not applied.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuantity reports a sell quantity that is non-positive or exceeds the holding.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrNotFound reports an operation targeting an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamRateLimited reports that the quote provider refused the request.
	// It sets the sticky limit flag on the quote service.
	ErrUpstreamRateLimited = errors.New("API limit reached")
	// ErrPersistence wraps document store failures. In-memory state is never rolled back.
	ErrPersistence = errors.New("persistence failure")
	// ErrInsufficientData is returned when a chart has too few points to draw.
	ErrInsufficientData = errors.New("insufficient data")
)

// ErrorCode returns a stable machine-readable code for err, used in API
// responses and metric labels.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamRateLimited):
		return "limit_reached"
	case errors.Is(err, ErrInsufficientData):
		return "no_data"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
