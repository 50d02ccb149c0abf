// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"fmt"
	"strings"
)

// An Attempt is an immutable record of one request attempt made during
// a logical request. One Attempt is appended to the policy's history
// for every attempt that did not produce the final outcome, in the
// order the attempts were made.
type Attempt struct {
	// Method is the HTTP method of the attempt.
	Method string
	// URL is the absolute URL the attempt was sent to.
	URL string
	// Err is the transport error that ended the attempt, or nil if the
	// attempt produced a response.
	Err error
	// Status is the response status code, or zero if the attempt ended
	// in an error before a response was received.
	Status int
	// RedirectLocation is the raw Location header value if the attempt
	// produced a redirect response that was followed, and the empty
	// string otherwise.
	RedirectLocation string
}

func (a Attempt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", a.Method, a.URL)
	if a.Err != nil {
		fmt.Fprintf(&b, " error=%v", a.Err)
	}
	if a.Status != 0 {
		fmt.Fprintf(&b, " status=%d", a.Status)
	}
	if a.RedirectLocation != "" {
		fmt.Fprintf(&b, " redirect=%s", a.RedirectLocation)
	}
	return b.String()
}
