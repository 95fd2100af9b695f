package analysis

import (
	"errors"
	"fmt"
)

// GenericMessage is shown when a failure carries no usable message.
const GenericMessage = "An error occurred while analyzing the image"

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("analyzer unreachable")

// ServerError is a non-2xx answer from the analyzer.
type ServerError struct {
	Status  int
	Message string // "error" field of the body, may be empty
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("analyzer returned status %d", e.Status)
	}
	return fmt.Sprintf("analyzer returned status %d: %s", e.Status, e.Message)
}

// MalformedError is a 2xx answer whose body does not have the expected shape.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed analyzer response: %s: %v", e.Reason, e.Err)
	}
	return "malformed analyzer response: " + e.Reason
}

func (e *MalformedError) Unwrap() error { return e.Err }

// UserMessage maps an analysis failure to the text shown on the error surface.
// Server messages are passed through verbatim.
func UserMessage(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return "The analyzer returned an unexpected response"
	}
	return GenericMessage
}
