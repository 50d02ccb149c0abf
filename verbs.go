// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package poolx

import (
	"context"
	urlpkg "net/url"
)

// Get issues a GET to the specified URL, using the same policies
// followed by Request.
func (m *Manager) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return m.Request(ctx, "GET", url, opts...)
}

// Head issues a HEAD to the specified URL, using the same policies
// followed by Request.
func (m *Manager) Head(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return m.Request(ctx, "HEAD", url, opts...)
}

// Post issues a POST to the specified URL, using the same policies
// followed by Request.
//
// The body parameter may be nil for an empty body, or may be any of
// the types supported by the Body request option, namely: string;
// []byte; io.Reader; and io.ReadCloser.
func (m *Manager) Post(ctx context.Context, url, contentType string, body interface{}, opts ...RequestOption) (*Response, error) {
	opts = append(opts, Header("Content-Type", contentType), Body(body))
	return m.Request(ctx, "POST", url, opts...)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
func (m *Manager) PostForm(ctx context.Context, url string, data urlpkg.Values, opts ...RequestOption) (*Response, error) {
	return m.Post(ctx, url, "application/x-www-form-urlencoded", data.Encode(), opts...)
}

// A Requester performs logical requests in the same manner as Manager.
// Manager implements Requester, and any other implementation must
// behave substantially the same as Manager.Request.
type Requester interface {
	Request(ctx context.Context, method, url string, opts ...RequestOption) (*Response, error)
}
