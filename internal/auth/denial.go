// ABOUTME: Structured denials returned by the gate instead of raw errors
// ABOUTME: Each denial carries a machine-readable kind plus actionable guidance

package auth

import (
	"errors"
)

// Kind classifies a failure reported to callers in the "error" field.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindSessionExpired         Kind = "session_expired"
	KindInvalidCredentials     Kind = "invalid_credentials"
	KindInvalidToken           Kind = "invalid_token"
	KindBadSignature           Kind = "bad_signature"
	KindMalformedToken         Kind = "malformed_token"
)

// Denial is a reported (never fatal) authorization failure.
type Denial struct {
	Kind    Kind
	Message string
	Hint    string
}

func (d *Denial) Error() string {
	return string(d.Kind) + ": " + d.Message
}

// AsDenial extracts a Denial from err.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

func authenticationRequired() *Denial {
	return &Denial{
		Kind:    KindAuthenticationRequired,
		Message: "No active session. Please authenticate first using the 'authenticate' tool.",
		Hint:    "Call authenticate tool with your username to create a session",
	}
}

func sessionExpired() *Denial {
	return &Denial{
		Kind:    KindSessionExpired,
		Message: "Session has expired. Please authenticate again.",
		Hint:    "Sessions expire after their time limit. Please call authenticate tool again.",
	}
}

func invalidCredentials() *Denial {
	return &Denial{
		Kind:    KindInvalidCredentials,
		Message: "Invalid username or password.",
		Hint:    "Call authenticate again with a configured username and its password",
	}
}

// TokenDenial maps a Codec.Verify error to a denial.
func TokenDenial(err error) *Denial {
	d := &Denial{
		Kind:    KindInvalidToken,
		Message: "Token could not be verified.",
		Hint:    "Call authenticate to obtain a fresh session",
	}
	switch {
	case errors.Is(err, ErrMalformedToken):
		d.Kind = KindMalformedToken
		d.Message = "Token is not a header.payload.signature triple."
	case errors.Is(err, ErrBadSignature):
		d.Kind = KindBadSignature
		d.Message = "Token signature does not match."
	case errors.Is(err, ErrExpiredToken):
		d.Kind = KindSessionExpired
		d.Message = "Token has expired."
	}
	return d
}
