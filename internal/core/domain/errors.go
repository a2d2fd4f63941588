package domain

import (
	"errors"
	"fmt"
)

// BuildError rejects a query before any network call is made.
type BuildError struct {
	Field  string
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchErrorKind classifies data source failures.
type FetchErrorKind int

const (
	FetchTimeout FetchErrorKind = iota + 1
	FetchServer
	FetchNetwork
	FetchCancelled
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchServer:
		return "server"
	case FetchNetwork:
		return "network"
	case FetchCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FetchError is returned by a POISource when a lookup fails.
type FetchError struct {
	Kind    FetchErrorKind
	Status  int    // HTTP status, FetchServer only
	Message string // transport detail, FetchNetwork only
	Err     error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchServer:
		return fmt.Sprintf("fetch: server responded %d", e.Status)
	case FetchNetwork:
		return "fetch: network: " + e.Message
	default:
		return "fetch: " + e.Kind.String()
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a superseded fetch. Cancellations are
// not surfaced to users.
func IsCancelled(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchCancelled
}

// UserMessage turns a pipeline error into the single line shown next to the
// last good result set.
func UserMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case FetchTimeout:
			return "Request timed out. Try again."
		case FetchServer:
			return fmt.Sprintf("Error fetching data: HTTP error %d", fe.Status)
		case FetchNetwork:
			return "Error fetching data: " + fe.Message
		case FetchCancelled:
			return ""
		}
	}
	var be *BuildError
	if errors.As(err, &be) {
		return "Invalid query: " + be.Error()
	}
	return "Error fetching data: " + err.Error()
}
