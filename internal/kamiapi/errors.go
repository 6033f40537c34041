package kamiapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Operation names carried by StatusError.
const (
	OpCreateSession = "createSession"
	OpJoinSession   = "joinSession"
	OpFetchState    = "fetchState"
	OpSendMove      = "sendMove"
)

// StatusError is returned for any non-2xx response. The body is not read.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d", e.Op, e.Status)
}

// StatusCode extracts the HTTP status from a StatusError anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// IsNotFound reports a 404 from the backend, typically an unknown session.
func IsNotFound(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == http.StatusNotFound
}

var ErrInvalidJSON = errors.New("response is not valid JSON")
