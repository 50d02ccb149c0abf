// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"

	"github.com/gogama/poolx/transient"
)

// A ConnectionError indicates a connection to the destination could
// not be established. Attempts failing with a ConnectionError are
// charged to the connect retry budget.
type ConnectionError struct {
	Dest Destination
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("poolx/transport: failed to establish connection to %s: %v", e.Dest, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Timeout reports whether the connection attempt timed out.
func (e *ConnectionError) Timeout() bool { return transient.IsTimeout(e.Err) }

// A ReadError indicates an exchange failed on an established
// connection, either while writing the request or while reading the
// response. Attempts failing with a ReadError are charged to the read
// retry budget.
type ReadError struct {
	Dest Destination
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("poolx/transport: exchange with %s failed: %v", e.Dest, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Timeout reports whether the exchange timed out.
func (e *ReadError) Timeout() bool { return transient.IsTimeout(e.Err) }

// A LocationParseError indicates a request or redirect target URL
// could not be resolved to a destination. It is fatal: a malformed
// location is never retried.
type LocationParseError struct {
	Location string
	Reason   string
}

func (e *LocationParseError) Error() string {
	return fmt.Sprintf("poolx/transport: failed to parse %q: %s", e.Location, e.Reason)
}

// IsConnectionError reports whether err should be charged to the
// connect retry budget. Typed *ConnectionError values always qualify;
// for untyped errors from foreign Dialer implementations the failure
// class is inferred from the error chain.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}
	var re *ReadError
	if errors.As(err, &re) {
		return false
	}
	return transient.Classify(err) == transient.Connect
}

// IsReadError reports whether err should be charged to the read retry
// budget. Typed *ReadError values always qualify; for untyped errors
// the failure class is inferred from the error chain.
func IsReadError(err error) bool {
	var re *ReadError
	if errors.As(err, &re) {
		return true
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return false
	}
	return transient.Classify(err) == transient.Read
}
