// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package poolx

import (
	"io"
	"net/http"
	urlpkg "net/url"

	"github.com/pkg/errors"
)

// A RequestOption configures one call to Manager.Request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header     http.Header
	body       []byte
	fields     urlpkg.Values
	retries    interface{}
	retriesSet bool
	redirect   bool
	err        error
}

// Header adds one request header.
func Header(name, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.header == nil {
			cfg.header = make(http.Header)
		}
		cfg.header.Add(name, value)
	}
}

// Headers merges a full header set into the request.
func Headers(h http.Header) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.header == nil {
			cfg.header = make(http.Header)
		}
		for k, vs := range h {
			cfg.header[k] = append(cfg.header[k], vs...)
		}
	}
}

// Body sets the request body. The body parameter may be nil (empty
// body), or it may be a string, []byte, io.Reader, or io.ReadCloser.
// A reader is read to the end and buffered; a ReadCloser is closed
// after buffering.
func Body(body interface{}) RequestOption {
	return func(cfg *requestConfig) {
		b, err := bodyBytes(body)
		if err != nil {
			cfg.err = err
			return
		}
		cfg.body = b
	}
}

// Fields attaches form fields to the request. For methods that do not
// carry a body (GET, HEAD, DELETE, OPTIONS, TRACE) the fields are
// URL-encoded into the query string; for other methods they are sent
// as an application/x-www-form-urlencoded body.
func Fields(fields urlpkg.Values) RequestOption {
	return func(cfg *requestConfig) { cfg.fields = fields }
}

// Retries sets the retry behavior for this request. The argument is
// resolved by retry.From: nil or true for the default policy, false
// for a single attempt with no redirect following, an int for a total
// budget, or a *retry.Policy used as-is.
func Retries(retries interface{}) RequestOption {
	return func(cfg *requestConfig) {
		cfg.retries = retries
		cfg.retriesSet = true
	}
}

// NoRedirect makes the request return the first redirect response
// as-is instead of following it. The redirect budget is untouched and
// no history entry is recorded for the returned response.
func NoRedirect() RequestOption {
	return func(cfg *requestConfig) { cfg.redirect = false }
}

// materialize folds the fields, if any, into the query string or the
// request body according to the method, and returns the final header
// and body for the wire.
func (cfg *requestConfig) materialize(method string, u *urlpkg.URL) (http.Header, []byte) {
	header, body := cfg.header, cfg.body
	if len(cfg.fields) == 0 {
		return header, body
	}
	switch method {
	case "GET", "HEAD", "DELETE", "OPTIONS", "TRACE":
		q := u.Query()
		for k, vs := range cfg.fields {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	default:
		body = []byte(cfg.fields.Encode())
		if header == nil {
			header = make(http.Header)
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	return header, body
}

func bodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		if err := x.Close(); err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.New("poolx: invalid body type (use nil, string, []byte, io.Reader or io.ReadCloser)")
	}
}
