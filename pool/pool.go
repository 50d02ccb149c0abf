// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"fmt"
	"net/http"
	urlpkg "net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/gogama/poolx/retry"
	"github.com/gogama/poolx/transport"
)

// DefaultSize is the connection capacity of a pool constructed without
// the WithSize option.
const DefaultSize = 1

// ErrClosed is returned by URLOpen when the pool has been closed, for
// example because the manager evicted it.
var ErrClosed = errors.New("poolx/pool: pool is closed")

// An ExhaustedError is returned by a non-blocking pool when every
// connection is checked out and the pool is at capacity.
type ExhaustedError struct {
	Dest transport.Destination
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("poolx/pool: no free connections to %s", e.Dest)
}

// A Pool owns a bounded set of reusable connections to one
// destination and drives the attempt loop of a logical request against
// that destination: acquire a connection, perform the exchange, and
// consult the retry policy about connect failures, exchange failures,
// and unwanted statuses. Redirects are not followed here; a redirect
// response is returned to the caller, which owns the cross-destination
// follow loop.
//
// A Pool is safe for concurrent use by multiple goroutines. The free
// list has its own synchronization, so requests against different
// destinations never contend on each other's pools.
type Pool struct {
	dest   transport.Destination
	dialer transport.Dialer
	block  bool
	size   int

	free chan transport.Conn

	mu     sync.Mutex
	open   int
	closed bool
}

// An Option configures a Pool under construction.
type Option func(*Pool)

// WithSize bounds the number of connections the pool will keep open at
// once. The default is DefaultSize.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithBlocking makes acquisition at capacity wait for a connection to
// be released instead of failing with *ExhaustedError.
func WithBlocking(block bool) Option { return func(p *Pool) { p.block = block } }

// New constructs a Pool for one destination. Connections are opened
// lazily through the dialer.
func New(dest transport.Destination, dialer transport.Dialer, opts ...Option) *Pool {
	p := &Pool{
		dest:   dest,
		dialer: dialer,
		size:   DefaultSize,
	}
	for _, o := range opts {
		o(p)
	}
	p.free = make(chan transport.Conn, p.size)
	return p
}

// Destination returns the (scheme, host, port) triple the pool
// connects to.
func (p *Pool) Destination() transport.Destination { return p.dest }

// URLOpen performs one logical request against the pool's destination,
// retrying connect failures, exchange failures, and retryable statuses
// per the policy. It returns the final response together with the
// final policy state carrying the accumulated history.
//
// Redirect responses are returned like any other response; following
// them is the caller's job. When the status budget is exhausted and
// the policy does not raise on status, the unsuccessful response is
// returned as-is rather than an error.
func (p *Pool) URLOpen(ctx context.Context, method string, u *urlpkg.URL, header http.Header, body []byte, rp *retry.Policy) (transport.Response, *retry.Policy, error) {
	req, err := transport.NewRequest(method, u, header, body)
	if err != nil {
		return nil, rp, err
	}
	urlStr := u.String()

	for {
		conn, err := p.acquire(ctx)
		if err != nil {
			var ce *transport.ConnectionError
			if !errors.As(err, &ce) {
				// Closed pool, capacity exhaustion, and context
				// cancellation are not retryable failures.
				return nil, rp, err
			}
			next, rerr := rp.Increment(method, urlStr, nil, err)
			if rerr != nil {
				return nil, rp, rerr
			}
			rp = next
			if serr := rp.Sleep(ctx, nil); serr != nil {
				return nil, rp, serr
			}
			continue
		}

		resp, err := p.exchange(ctx, conn, req)
		if err != nil {
			next, rerr := rp.Increment(method, urlStr, nil, err)
			if rerr != nil {
				return nil, rp, rerr
			}
			rp = next
			if serr := rp.Sleep(ctx, nil); serr != nil {
				return nil, rp, serr
			}
			continue
		}

		hasRetryAfter := resp.Header("Retry-After") != ""
		if rp.IsRetry(method, resp.Status(), hasRetryAfter) {
			next, rerr := rp.Increment(method, urlStr, resp, nil)
			if rerr != nil {
				var mre *retry.MaxRetryError
				if errors.As(rerr, &mre) && !rp.RaiseOnStatus() {
					return resp, rp, nil
				}
				return nil, rp, rerr
			}
			rp = next
			if serr := rp.Sleep(ctx, resp); serr != nil {
				return nil, rp, serr
			}
			continue
		}

		return resp, rp, nil
	}
}

// exchange performs one send/receive on the connection and settles the
// connection's fate: released to the free list after a completed
// exchange on a reusable connection, closed otherwise.
func (p *Pool) exchange(ctx context.Context, conn transport.Conn, req *transport.Request) (transport.Response, error) {
	if err := conn.Send(ctx, req); err != nil {
		p.discard(conn)
		return nil, err
	}
	resp, err := conn.Receive(ctx)
	if err != nil {
		p.discard(conn)
		return nil, err
	}
	p.release(conn)
	return resp, nil
}

func (p *Pool) acquire(ctx context.Context) (transport.Conn, error) {
	select {
	case conn := <-p.free:
		return conn, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.open < p.size {
		p.open++
		p.mu.Unlock()
		conn, err := p.dialer.Dial(ctx, p.dest)
		if err != nil {
			p.mu.Lock()
			p.open--
			p.mu.Unlock()
			return nil, err
		}
		return conn, nil
	}
	p.mu.Unlock()

	if !p.block {
		return nil, &ExhaustedError{Dest: p.dest}
	}
	select {
	case conn := <-p.free:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(conn transport.Conn) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || !conn.Reusable() {
		p.discard(conn)
		return
	}
	select {
	case p.free <- conn:
	default:
		p.discard(conn)
	}
}

func (p *Pool) discard(conn transport.Conn) {
	_ = conn.Close()
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
}

// Idle returns the number of connections currently sitting in the free
// list.
func (p *Pool) Idle() int { return len(p.free) }

// CloseIdle closes every idle connection. The pool itself stays open;
// subsequent requests dial fresh connections.
func (p *Pool) CloseIdle() {
	for {
		select {
		case conn := <-p.free:
			_ = conn.Close()
			p.mu.Lock()
			p.open--
			p.mu.Unlock()
		default:
			return
		}
	}
}

// Close marks the pool closed and closes every idle connection.
// Connections checked out at the time of the call are closed as they
// are released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case conn := <-p.free:
			_ = conn.Close()
			p.mu.Lock()
			p.open--
			p.mu.Unlock()
		default:
			return nil
		}
	}
}
