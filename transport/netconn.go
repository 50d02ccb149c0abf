// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// NetDialer is the default Dialer. It opens plain TCP connections for
// the http scheme and TLS connections for the https scheme, and speaks
// HTTP/1.1 on them using the standard library's wire codec. Its zero
// value is a valid configuration with no timeouts beyond those imposed
// by the request context.
type NetDialer struct {
	// ConnectTimeout bounds the time spent establishing a connection,
	// including the TLS handshake. Zero means no bound beyond the
	// dial context.
	ConnectTimeout time.Duration
	// ReadTimeout bounds each receive on an established connection.
	// Zero means no bound beyond the request context.
	ReadTimeout time.Duration
	// TLSConfig is used for https destinations. Nil means a default
	// configuration with the destination host as ServerName.
	TLSConfig *tls.Config
}

// Dial opens a connection to the destination. Failures are returned as
// *ConnectionError.
func (d *NetDialer) Dial(ctx context.Context, dest Destination) (Conn, error) {
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}
	nd := net.Dialer{}
	raw, err := nd.DialContext(ctx, "tcp", dest.Addr())
	if err != nil {
		return nil, &ConnectionError{Dest: dest, Err: err}
	}
	if dest.Scheme == "https" {
		cfg := d.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg = cfg.Clone()
			cfg.ServerName = dest.Host
		}
		tc := tls.Client(raw, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, &ConnectionError{Dest: dest, Err: errors.Wrap(err, "TLS handshake")}
		}
		raw = tc
	}
	return &netConn{
		dest:        dest,
		raw:         raw,
		br:          bufio.NewReader(raw),
		readTimeout: d.ReadTimeout,
		reusable:    true,
	}, nil
}

type netConn struct {
	dest        Destination
	raw         net.Conn
	br          *bufio.Reader
	readTimeout time.Duration
	reusable    bool
	lastReq     *http.Request
}

func (c *netConn) Send(ctx context.Context, req *Request) error {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequest(req.Method, req.URL.String(), body)
	if err != nil {
		c.reusable = false
		return &ReadError{Dest: c.dest, Err: errors.Wrap(err, "build request")}
	}
	for k, vs := range req.Header {
		hr.Header[k] = vs
	}
	c.setDeadline(ctx)
	if err := hr.Write(c.raw); err != nil {
		c.reusable = false
		return &ReadError{Dest: c.dest, Err: errors.Wrap(err, "write request")}
	}
	c.lastReq = hr
	return nil
}

func (c *netConn) Receive(ctx context.Context) (Response, error) {
	c.setDeadline(ctx)
	resp, err := http.ReadResponse(c.br, c.lastReq)
	if err != nil {
		c.reusable = false
		return nil, &ReadError{Dest: c.dest, Err: errors.Wrap(err, "read response")}
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		c.reusable = false
		return nil, &ReadError{Dest: c.dest, Err: errors.Wrap(err, "read body")}
	}
	c.reusable = !resp.Close
	return &bufferedResponse{status: resp.StatusCode, header: resp.Header, data: data}, nil
}

func (c *netConn) Reusable() bool { return c.reusable }

func (c *netConn) Close() error { return c.raw.Close() }

// setDeadline applies the tighter of the context deadline and the
// configured read timeout to the underlying connection.
func (c *netConn) setDeadline(ctx context.Context) {
	var deadline time.Time
	if c.readTimeout > 0 {
		deadline = time.Now().Add(c.readTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.raw.SetDeadline(deadline)
}

type bufferedResponse struct {
	status int
	header http.Header
	data   []byte
}

func (r *bufferedResponse) Status() int { return r.status }

func (r *bufferedResponse) Header(name string) string { return r.header.Get(name) }

func (r *bufferedResponse) Data() []byte { return r.data }
