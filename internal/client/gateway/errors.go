package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Kind classifies the outcome of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork means no response was received.
	KindNetwork
	// KindUnauthorized covers 401 and 403.
	KindUnauthorized
	// KindConflict is 409.
	KindConflict
	// KindClient covers the remaining 4xx and malformed success bodies.
	KindClient
	// KindServer covers 5xx and any other unexpected status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrClient       = &Error{Kind: KindClient}
	ErrServer       = &Error{Kind: KindServer}
)

const (
	msgNetwork      = "Unable to reach the server. Please try again later."
	msgUnauthorized = "Your session has expired. Please log in again."
	msgConflict     = "The resource already exists."
	msgClient       = "The request was rejected. Please check your input."
	msgServer       = "The server failed to process the request. Please try again later."
	msgShape        = "The server returned an unexpected response."
)

// Error is returned by every failed gateway call.
type Error struct {
	Kind   Kind
	Status int
	// Message is safe to show to the user.
	Message string
	// Detail is the message the server put in the error body, if any.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	s := "gateway: " + e.Kind.String()
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == 0 && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf reports the classification of err, or KindUnknown when err did not
// come from the gateway.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// MessageOf returns the user facing message carried by err.
func MessageOf(err error) string {
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return msgServer
}

// classify maps a non-2xx response to an *Error. It returns nil for 2xx.
func classify(status int, body []byte) *Error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail := serverMessage(body)
	e := &Error{Status: status, Detail: detail}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind, e.Message = KindUnauthorized, msgUnauthorized
	case status == http.StatusConflict:
		e.Kind, e.Message = KindConflict, orDefault(detail, msgConflict)
	case status >= 400 && status < 500:
		e.Kind, e.Message = KindClient, orDefault(detail, msgClient)
	default:
		e.Kind, e.Message = KindServer, msgServer
	}
	return e
}

// serverMessage pulls a human readable message out of an error body.
func serverMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"detail", "detail.0.msg", "message", "error"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: msgNetwork, Err: err}
}

func shapeError(status int, err error) *Error {
	return &Error{Kind: KindClient, Status: status, Message: msgShape, Err: err}
}
