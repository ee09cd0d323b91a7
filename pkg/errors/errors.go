// Package errors aids error handling for [darvaza.org/namequery]
// related functions
package errors

import (
	"net"
	"os"
	"strings"

	"darvaza.org/core"
)

// ErrNotFound assembles a net.DNSError with IsNotFound set.
// It represents an authoritative negative, not a transport
// failure.
func ErrNotFound(qName string) *net.DNSError {
	return &net.DNSError{
		Err:        "entry not found",
		Name:       qName,
		IsNotFound: true,
	}
}

// ErrNegativeResponse reports a well-formed negative name query
// response from a name server. IsNotFound is set, as the server
// answered authoritatively.
func ErrNegativeResponse(qName, server string) *net.DNSError {
	return &net.DNSError{
		Err:        NEGATIVE,
		Name:       qName,
		Server:     server,
		IsNotFound: true,
	}
}

// ErrTimeoutMessage is a variant of ErrTimeout that uses
// a given message instead of wrapping an error
func ErrTimeoutMessage(qName string, msg string) *net.DNSError {
	return &net.DNSError{
		Err:         msg,
		Name:        qName,
		IsTimeout:   true,
		IsTemporary: true,
	}
}

// ErrTimeout assembles a Timeout() error
func ErrTimeout(qName string, err error) *net.DNSError {
	if e, ok := err.(*net.DNSError); ok {
		if e.Name == "" || !e.IsTimeout {
			// copy
			out := *e
			out.Name = core.Coalesce(e.Name, qName)
			out.IsTimeout = true
			return &out
		}
		// pass through
		return e
	}

	msg := "request timed out"
	if err != nil {
		msg = core.Coalesce(err.Error(), msg)
	}
	return ErrTimeoutMessage(qName, strings.TrimPrefix(msg, "dns: "))
}

// ErrBadRequest reports an invalid request from the caller
func ErrBadRequest() *net.DNSError {
	return &net.DNSError{
		Err: BADREQUEST,
	}
}

// ErrBadResponse reports a bad response from the server
func ErrBadResponse() *net.DNSError {
	return &net.DNSError{
		Err:         BADRESPONSE,
		IsTemporary: true,
	}
}

// ErrInvalidAddress reports a malformed, zero, or wrong-family
// address
func ErrInvalidAddress(name string) *net.DNSError {
	return &net.DNSError{
		Err:  BADADDRESS,
		Name: name,
	}
}

// ErrNotSupported reports a resolution method disabled by
// configuration
func ErrNotSupported(name string) *net.DNSError {
	return &net.DNSError{
		Err:  NOTSUPPORTED,
		Name: name,
	}
}

// ErrNoLogonServers reports a domain controller lookup that
// produced no usable candidates
func ErrNoLogonServers(domain string) *net.DNSError {
	return &net.DNSError{
		Err:        NOLOGONSERVERS,
		Name:       domain,
		IsNotFound: true,
	}
}

// ErrInternalError reports an invariant violation on the
// indicated subsystem
func ErrInternalError(qName, subsystem string) *net.DNSError {
	return &net.DNSError{
		Err:  "internal error: " + subsystem,
		Name: qName,
	}
}

// Wrap converts any error into a [net.DNSError], preserving
// flags when possible
func Wrap(qName string, err error) *net.DNSError {
	if e, ok := err.(*net.DNSError); ok {
		if e.Name == "" && qName != "" {
			out := *e
			out.Name = qName
			return &out
		}
		return e
	}

	return &net.DNSError{
		Err:         err.Error(),
		Name:        qName,
		IsTimeout:   IsTimeout(err),
		IsTemporary: IsTemporary(err),
		IsNotFound:  IsNotFound(err),
	}
}

// IsNotFound checks if the given error represents a NotFound
func IsNotFound(err error) bool {
	switch e := err.(type) {
	case *net.DNSError:
		return e.IsNotFound
	case nil:
		return false
	default:
		return os.IsNotExist(err)
	}
}

// IsTimeout checks if the given error represents a Timeout
func IsTimeout(err error) bool {
	switch e := err.(type) {
	case *net.DNSError:
		return e.Timeout()
	case nil:
		return false
	default:
		return os.IsTimeout(err)
	}
}

// IsTemporary checks if the given error could be rechecked
func IsTemporary(err error) bool {
	if e, ok := err.(interface {
		Temporary() bool
	}); ok {
		return e.Temporary()
	}
	return false
}

// IsNotSupported checks if the given error reports a disabled
// resolution method
func IsNotSupported(err error) bool {
	if e, ok := err.(*net.DNSError); ok {
		return e.Err == NOTSUPPORTED
	}
	return false
}
