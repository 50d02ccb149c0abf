// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package poolx

import (
	"github.com/gogama/poolx/retry"
	"github.com/gogama/poolx/transport"
)

// A Response is the final outcome of one logical request. The body has
// been fully buffered and the connection released by the time a
// Response is returned, so a Response never pins pool resources.
type Response struct {
	// Status is the HTTP status code of the final attempt.
	Status int
	// Data is the fully buffered response body.
	Data []byte
	// Retries is the final retry policy state of the request. Its
	// history records one entry per retried or redirected attempt, in
	// attempt order, and its total reflects the budget remaining after
	// the request.
	Retries *retry.Policy

	resp transport.Response
}

func newResponse(resp transport.Response, rp *retry.Policy) *Response {
	return &Response{
		Status:  resp.Status(),
		Data:    resp.Data(),
		Retries: rp,
		resp:    resp,
	}
}

// Header returns the value of the named response header, looked up
// case-insensitively, or the empty string if the header is absent.
func (r *Response) Header(name string) string {
	return r.resp.Header(name)
}
