// ABOUTME: Tool argument decoding with lenient numeric handling
// ABOUTME: Numbers may arrive as JSON numbers or numeric strings

package packs

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Args are the decoded arguments of a tool call.
type Args map[string]any

// ParseArgs decodes a JSON object of arguments. Empty input and null decode
// to an empty Args.
func ParseArgs(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Args{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var args Args
	if err := dec.Decode(&args); err != nil {
		return nil, &Failure{
			Kind:    KindInvalidParameter,
			Message: "Arguments must be a JSON object",
			Hint:    "Pass tool arguments as an object of named values",
		}
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// present reports whether name was supplied with a non-null value.
func (a Args) present(name string) (any, bool) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns a string argument. Numbers are accepted and formatted as
// written. ok is false when the argument is absent or null.
func (a Args) String(name string) (string, bool, error) {
	v, ok := a.present(name)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case json.Number:
		return val.String(), true, nil
	default:
		return "", false, InvalidParameter(name, "expected a string")
	}
}

// RequireString returns a non-empty string argument.
func (a Args) RequireString(name string) (string, error) {
	s, ok, err := a.String(name)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", MissingParameter(name)
	}
	return s, nil
}

// Number returns a numeric argument given as a JSON number or numeric string.
func (a Args) Number(name string) (float64, bool, error) {
	v, ok := a.present(name)
	if !ok {
		return 0, false, nil
	}

	var f float64
	var err error
	switch val := v.(type) {
	case json.Number:
		f, err = val.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(val), 64)
	default:
		return 0, false, InvalidParameter(name, "expected a number")
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, InvalidParameter(name, "expected a number")
	}
	return f, true, nil
}

// RequireNumber returns a numeric argument that must be present.
func (a Args) RequireNumber(name string) (float64, error) {
	f, ok, err := a.Number(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, MissingParameter(name)
	}
	return f, nil
}

// Int returns a non-negative integer argument.
func (a Args) Int(name string) (int, bool, error) {
	f, ok, err := a.Number(name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, false, InvalidParameter(name, "expected an integer")
	}
	if f < 0 {
		return 0, false, InvalidParameter(name, "must not be negative")
	}
	if f > math.MaxInt32 {
		return 0, false, InvalidParameter(name, "too large")
	}
	return int(f), true, nil
}
