package httpclient

import (
	goerrors "errors"

	"github.com/twelvenexus/oneplan-billing/internal/errors"
)

// Error is a non-2xx provider reply. The raw response body is kept so
// adapters can decode provider-specific error payloads.
type Error struct {
	*errors.InternalError
	StatusCode int
	Response   []byte
}

func (e *Error) Unwrap() error {
	return e.InternalError.Unwrap()
}

func (e *Error) Error() string {
	return e.InternalError.Error()
}

func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: errors.New(errors.ErrCodeHTTPClient, "http client error"),
		StatusCode:    statusCode,
		Response:      response,
	}
}

// IsHTTPError unwraps err to an Error when the failure came from a
// provider reply rather than transport.
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
