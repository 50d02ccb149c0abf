// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	urlpkg "net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// A Destination identifies the target of a connection pool: one
// (scheme, host, port) triple. Destinations are comparable and are
// used as registry keys, so two URLs naming the same origin resolve to
// the same Destination even if one of them spells the default port
// explicitly and the other omits it.
type Destination struct {
	Scheme string
	Host   string
	Port   int
}

// String formats the destination as scheme://host:port.
func (d Destination) String() string {
	return fmt.Sprintf("%s://%s:%d", d.Scheme, d.Host, d.Port)
}

// Addr returns the host:port address to dial.
func (d Destination) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ParseDestination extracts the Destination from an absolute URL. The
// port is normalized, so "http://h/" and "http://h:80/" produce equal
// destinations. A relative URL, an unsupported scheme, or a host that
// cannot be parsed produces a *LocationParseError.
func ParseDestination(u *urlpkg.URL) (Destination, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Destination{}, &LocationParseError{Location: u.String(), Reason: "unsupported scheme"}
	}
	host := u.Hostname()
	if host == "" {
		return Destination{}, &LocationParseError{Location: u.String(), Reason: "missing host"}
	}
	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Destination{}, &LocationParseError{Location: u.String(), Reason: "invalid port"}
		}
		port = n
	}
	return Destination{Scheme: scheme, Host: strings.ToLower(host), Port: port}, nil
}

func defaultPort(scheme string) int {
	if scheme == "https" {
		return 443
	}
	return 80
}

// A Request describes one HTTP exchange to be written on a connection.
// The URL must be absolute. Header may be nil for no extra headers.
type Request struct {
	Method string
	URL    *urlpkg.URL
	Header http.Header
	Body   []byte
}

// NewRequest builds a Request, validating the method as an RFC 7230
// token and the URL as absolute.
func NewRequest(method string, u *urlpkg.URL, header http.Header, body []byte) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, fmt.Errorf("poolx/transport: invalid method %q", method)
	}
	if u == nil || !u.IsAbs() {
		return nil, &LocationParseError{Location: urlString(u), Reason: "URL must be absolute"}
	}
	return &Request{Method: method, URL: u, Header: header, Body: body}, nil
}

func urlString(u *urlpkg.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

// A Response is the result of one successful exchange on a connection.
// By the time a Response is handed back the body has been fully read
// off the wire and the connection released, so a Response never pins a
// connection.
//
// Implementations of Response must be safe for concurrent reads by
// multiple goroutines.
type Response interface {
	// Status returns the HTTP status code.
	Status() int
	// Header returns the value of the named header, looked up
	// case-insensitively, or the empty string if the header is absent.
	Header(name string) string
	// Data returns the fully buffered response body. It may be empty
	// but is never invalidated by later use of the connection.
	Data() []byte
}

// A Conn is one open connection to a Destination. It is owned by a
// pool and used by one request attempt at a time; implementations do
// not need to be safe for concurrent use.
//
// Send and Receive report their failures distinctly: an error from
// Send or Receive is an exchange failure on an established connection
// (read class), while a connection that could not be established at
// all surfaces as an error from Dialer.Dial (connect class).
type Conn interface {
	// Send writes the request to the connection.
	Send(ctx context.Context, req *Request) error
	// Receive reads the response headers and fully drains the body,
	// returning a buffered Response.
	Receive(ctx context.Context) (Response, error)
	// Reusable reports whether the connection may be used for another
	// exchange. It is consulted after each completed exchange; a false
	// return causes the pool to close the connection instead of
	// returning it to the free list.
	Reusable() bool
	// Close releases the underlying transport resources.
	Close() error
}

// A Dialer opens connections to destinations. Dial failures must be
// reported as, or wrapped in, *ConnectionError so that the retry
// machinery charges them to the connect budget.
//
// Implementations of Dialer must be safe for concurrent use by
// multiple goroutines.
type Dialer interface {
	Dial(ctx context.Context, dest Destination) (Conn, error)
}
