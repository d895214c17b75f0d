package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UpstreamError is returned when an endpoint answered with an application
// level error payload instead of events.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Message
}

// ErrMalformedResponse indicates a payload whose shape matches none of the
// supported response formats.
var ErrMalformedResponse = fmt.Errorf("malformed response")

// wrappedResponse covers the two object-shaped legacy payloads. The shape is
// decided once here; everything downstream sees []LiveEvent only.
type wrappedResponse struct {
	Message *string     `json:"message"`
	Items   []LiveEvent `json:"items"`
}

// Normalize converts a raw poll response into canonical events. Three shapes
// are accepted for backward compatibility with endpoints that deploy out of
// lockstep with the dashboard: a bare array, an {items: [...]} wrapper, and
// a {message: "..."} error wrapper (surfaced as *UpstreamError). The shim is
// permanent.
func Normalize(raw []byte) ([]LiveEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrMalformedResponse
	}

	if trimmed[0] == '[' {
		var evs []LiveEvent
		if err := json.Unmarshal(trimmed, &evs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return evs, nil
	}

	if trimmed[0] == '{' {
		var wrapped wrappedResponse
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapped.Message != nil {
			return nil, &UpstreamError{Message: *wrapped.Message}
		}
		if wrapped.Items != nil {
			return wrapped.Items, nil
		}
	}

	return nil, ErrMalformedResponse
}

// Number tolerates both quoted and bare numeric JSON values; some endpoints
// send prices as strings.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*n = 0
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}
