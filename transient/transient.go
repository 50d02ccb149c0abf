// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"syscall"
)

// A Class is the failure class of a particular error, as reported by
// function Classify().
//
// The class None means the error does not look like a transient
// transport failure, or in other words that retrying the request
// attempt which produced this error is unlikely to succeed.
//
// The classes Connect and Read divide transient transport failures by
// the phase of the exchange in which they occurred. The division
// matters because a retry budget tracks connection-establishment
// failures and exchange failures with separate counters.
type Class int

const (
	// None indicates any error that is not a transient transport
	// failure.
	None Class = iota
	// Connect indicates the connection to the remote host could not be
	// established.
	//
	// Connection refusal may be a permanent condition, but it is
	// classified as transient because it commonly occurs while the
	// service on the remote host is starting or restarting. The
	// service is briefly not listening on its port, but will be once
	// startup completes.
	//
	// Function Classify() returns Connect if the error or any of its
	// wrapped causes is equal to syscall.ECONNREFUSED.
	Connect
	// Read indicates the connection was established but the exchange
	// on it failed, either because the remote host reset the
	// connection or because the attempt timed out.
	//
	// A reset is not uncommon when a service is taken down while still
	// responding to a request, and in a variety of cases where the
	// remote host is a load balancer, so it tends to indicate a high
	// probability of success on retry.
	//
	// Function Classify() returns Read if the error or any of its
	// wrapped causes is equal to syscall.ECONNRESET, or if the error
	// reports itself as a timeout.
	Read
)

// Classify returns the failure class of the given error. A nil error,
// and an error that does not look like a transient transport failure,
// both produce the return value None.
//
// In assessing an error, Classify looks at wrapped cause errors
// contained within err, not just err itself. Classify never checks if
// an error has a Temporary() function that returns true, as the
// semantics of Temporary() aren't entirely clear.
func Classify(err error) Class {
	if err == nil {
		return None
	}

	if IsTimeout(err) {
		return Read
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if errno == syscall.ECONNRESET {
			return Read
		} else if errno == syscall.ECONNREFUSED {
			return Connect
		}
	}

	return None
}

// IsTimeout reports whether the error, or any of its wrapped causes,
// has a Timeout() function that returns true.
func IsTimeout(err error) bool {
	var t hasTimeout
	return errors.As(err, &t) && t.Timeout()
}

type hasTimeout interface {
	Timeout() bool
}
