// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package poolx

import (
	"container/list"
	"context"
	"net/http"
	urlpkg "net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/gogama/poolx/pool"
	"github.com/gogama/poolx/retry"
	"github.com/gogama/poolx/transport"
)

// DefaultMaxPools is the registry capacity of a Manager constructed
// without the WithMaxPools option.
const DefaultMaxPools = 10

// ErrManagerClosed is returned by Request after Close has been called.
var ErrManagerClosed = errors.New("poolx: manager is closed")

// A Manager routes logical requests to per-destination connection
// pools, creating pools lazily and evicting the least recently used
// one when the registry outgrows its capacity. It owns the redirect
// follow loop, so a redirect that crosses hosts is dispatched to the
// target's pool while the retry policy lineage and attempt history
// carry over unchanged.
//
// A Manager is safe for concurrent use by multiple goroutines. The
// registry lock covers only pool lookup, creation, and eviction;
// connection acquisition synchronizes on the individual pool, so
// requests to different destinations do not serialize on each other.
type Manager struct {
	dialer   transport.Dialer
	retries  *retry.Policy
	maxPools int
	poolSize int
	block    bool
	limiter  *rate.Limiter

	mu     sync.Mutex
	pools  map[transport.Destination]*list.Element
	lru    *list.List // front is most recently used
	closed bool
}

// An Option configures a Manager under construction.
type Option func(*Manager)

// WithDialer sets the transport used to open connections. The default
// is a zero-value transport.NetDialer.
func WithDialer(d transport.Dialer) Option { return func(m *Manager) { m.dialer = d } }

// WithMaxPools bounds the number of distinct destination pools kept in
// the registry. The default is DefaultMaxPools.
func WithMaxPools(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPools = n
		}
	}
}

// WithPoolSize bounds the number of connections each destination pool
// keeps open at once.
func WithPoolSize(n int) Option { return func(m *Manager) { m.poolSize = n } }

// WithBlocking makes connection acquisition at pool capacity wait for
// a free connection instead of failing.
func WithBlocking(block bool) Option { return func(m *Manager) { m.block = block } }

// WithRetries sets the default retry policy template used by requests
// that do not pass one. Because policy state is copied on increment,
// the template itself is never consumed: every request starts from its
// full budget.
func WithRetries(p *retry.Policy) Option { return func(m *Manager) { m.retries = p } }

// WithRateLimit applies a token-bucket limit to the rate at which the
// manager dispatches logical requests.
func WithRateLimit(rps float64, burst int) Option {
	return func(m *Manager) { m.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewManager constructs a Manager. With no options it uses the default
// TCP transport, a registry capacity of DefaultMaxPools, one
// connection per destination pool, and the default retry policy.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxPools: DefaultMaxPools,
		poolSize: pool.DefaultSize,
		pools:    make(map[transport.Destination]*list.Element),
		lru:      list.New(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.dialer == nil {
		m.dialer = &transport.NetDialer{}
	}
	return m
}

// Request performs one logical request: it resolves the URL to a
// destination, dispatches to that destination's pool, and follows
// redirects, across destinations if necessary, threading one retry
// policy lineage through every hop. The returned Response carries the
// final policy state, whose history records one entry per retried or
// redirected attempt.
//
// When retries are exhausted the error is a *retry.MaxRetryError,
// except that a request with retries disabled (Retries(false))
// propagates the raw transport outcome of its single attempt, and
// status exhaustion on a policy that does not raise on status returns
// the literal unsuccessful response.
func (m *Manager) Request(ctx context.Context, method, rawurl string, opts ...RequestOption) (*Response, error) {
	cfg := requestConfig{redirect: true}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	method = strings.ToUpper(method)

	u, err := urlpkg.Parse(rawurl)
	if err != nil {
		return nil, &transport.LocationParseError{Location: rawurl, Reason: err.Error()}
	}
	header, body := cfg.materialize(method, u)

	rp := m.resolve(&cfg)
	follow := cfg.redirect && !rp.Disabled()

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	for {
		dest, err := transport.ParseDestination(u)
		if err != nil {
			return nil, err
		}
		pl, err := m.pool(dest)
		if err != nil {
			return nil, err
		}

		resp, next, err := pl.URLOpen(ctx, method, u, header, body, rp)
		if err != nil {
			return nil, err
		}
		rp = next

		var loc string
		if follow {
			loc = retry.RedirectLocation(resp)
		}
		if loc == "" {
			return newResponse(resp, rp), nil
		}
		target, perr := u.Parse(loc)
		if perr != nil {
			return nil, &transport.LocationParseError{Location: loc, Reason: perr.Error()}
		}
		if resp.Status() == http.StatusSeeOther {
			method = "GET"
			body = nil
		}

		next, rerr := rp.Increment(method, u.String(), resp, nil)
		if rerr != nil {
			if rp.RaiseOnRedirect() {
				return nil, rerr
			}
			return newResponse(resp, rp), nil
		}
		rp = next
		if serr := rp.Sleep(ctx, resp); serr != nil {
			return nil, serr
		}
		u = target
	}
}

// resolve settles the polymorphic retries parameter into the concrete
// policy for this request before any attempt is made.
func (m *Manager) resolve(cfg *requestConfig) *retry.Policy {
	if !cfg.retriesSet {
		if m.retries != nil {
			return m.retries
		}
		return retry.NewPolicy()
	}
	return retry.From(cfg.retries)
}

// pool finds or creates the destination's pool and marks it most
// recently used. Creating a pool beyond the registry capacity evicts
// the least recently used destination, closing its idle connections.
func (m *Manager) pool(dest transport.Destination) (*pool.Pool, error) {
	var evicted *pool.Pool

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if el, ok := m.pools[dest]; ok {
		m.lru.MoveToFront(el)
		pl := el.Value.(*pool.Pool)
		m.mu.Unlock()
		return pl, nil
	}
	pl := pool.New(dest, m.dialer, pool.WithSize(m.poolSize), pool.WithBlocking(m.block))
	m.pools[dest] = m.lru.PushFront(pl)
	if m.lru.Len() > m.maxPools {
		back := m.lru.Back()
		m.lru.Remove(back)
		evicted = back.Value.(*pool.Pool)
		delete(m.pools, evicted.Destination())
	}
	m.mu.Unlock()

	if evicted != nil {
		_ = evicted.Close()
	}
	return pl, nil
}

// NumPools returns the number of destination pools currently in the
// registry.
func (m *Manager) NumPools() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// CloseIdleConnections closes the idle connections of every pool in
// the registry. The pools stay registered and usable; subsequent
// requests dial fresh connections.
func (m *Manager) CloseIdleConnections() {
	m.mu.Lock()
	all := make([]*pool.Pool, 0, m.lru.Len())
	for el := m.lru.Front(); el != nil; el = el.Next() {
		all = append(all, el.Value.(*pool.Pool))
	}
	m.mu.Unlock()

	for _, pl := range all {
		pl.CloseIdle()
	}
}

// Close closes every pool in the registry and marks the manager
// closed. In-flight requests fail on their next pool lookup or
// connection release. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	all := make([]*pool.Pool, 0, m.lru.Len())
	for el := m.lru.Front(); el != nil; el = el.Next() {
		all = append(all, el.Value.(*pool.Pool))
	}
	m.pools = make(map[transport.Destination]*list.Element)
	m.lru.Init()
	m.mu.Unlock()

	for _, pl := range all {
		_ = pl.Close()
	}
	return nil
}
