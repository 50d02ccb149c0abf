// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import "fmt"

// A MaxRetryError is returned when a retry budget category has been
// exhausted. It wraps the error that precipitated the final decrement
// and carries the complete attempt history of the logical request.
type MaxRetryError struct {
	// URL is the URL of the attempt that exhausted the budget.
	URL string
	// Reason is the precipitating failure: the transport error of the
	// final attempt, or a synthesized description when the final
	// attempt produced an unwanted response rather than an error.
	Reason error
	// History is the ordered record of every attempt made during the
	// logical request, including the final one.
	History []Attempt
}

func (e *MaxRetryError) Error() string {
	return fmt.Sprintf("poolx/retry: max retries exceeded with url %s (caused by: %v)", e.URL, e.Reason)
}

func (e *MaxRetryError) Unwrap() error { return e.Reason }
