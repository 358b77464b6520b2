// ABOUTME: Structured tool failures reported to callers as error payloads
// ABOUTME: Covers parameter problems and collaborator errors such as unknown currencies

package packs

import (
	"errors"
	"fmt"

	"github.com/2389/books-mcp/internal/auth"
)

// ErrUnknownOperation is returned by Dispatch for a name not in the registry.
// It is the only dispatch outcome surfaced as a protocol error.
var ErrUnknownOperation = errors.New("unknown operation")

// Failure kinds reported in the "error" field.
const (
	KindMissingParameter = "missing_parameter"
	KindInvalidParameter = "invalid_parameter"
	KindNotFound         = "not_found"
	KindConversionFailed = "conversion_failed"
)

// Failure is a domain-level tool error.
type Failure struct {
	Kind    string
	Message string
	Hint    string
	// Extra fields merged into the error payload.
	Extra Payload
}

func (f *Failure) Error() string {
	return f.Kind + ": " + f.Message
}

// MissingParameter reports a required argument that was not supplied.
func MissingParameter(name string) *Failure {
	return &Failure{
		Kind:    KindMissingParameter,
		Message: fmt.Sprintf("Missing required parameter '%s'", name),
		Hint:    fmt.Sprintf("Call the tool again with the '%s' argument", name),
		Extra:   Payload{"parameter": name},
	}
}

// InvalidParameter reports an argument of the wrong type or range.
func InvalidParameter(name, reason string) *Failure {
	return &Failure{
		Kind:    KindInvalidParameter,
		Message: fmt.Sprintf("Invalid parameter '%s': %s", name, reason),
		Hint:    "Check the tool's input schema and call it again",
		Extra:   Payload{"parameter": name},
	}
}

// errorPayload renders a failure or denial as the error object returned to
// callers. ok is false for any other error.
func errorPayload(err error) (Payload, string, bool) {
	if d, ok := auth.AsDenial(err); ok {
		return Payload{
			"error":   string(d.Kind),
			"message": d.Message,
			"hint":    d.Hint,
		}, string(d.Kind), true
	}

	var f *Failure
	if errors.As(err, &f) {
		p := Payload{}
		for k, v := range f.Extra {
			p[k] = v
		}
		p["error"] = f.Kind
		p["message"] = f.Message
		p["hint"] = f.Hint
		return p, f.Kind, true
	}

	return nil, "", false
}
