// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/gogama/poolx/transport"
)

// Unlimited disables tracking of a budget category when passed to one
// of the budget options. An unlimited category never causes
// exhaustion on its own; the total budget still applies.
const Unlimited = -1

// DefaultTotal is the total retry budget of the default policy.
const DefaultTotal = 10

// DefaultMethodWhitelist contains the methods eligible for automatic
// retry of status-driven failures. All of them are idempotent per
// RFC 7231.
var DefaultMethodWhitelist = []string{"HEAD", "GET", "PUT", "DELETE", "OPTIONS", "TRACE"}

// DefaultRetryAfterStatuses contains the status codes whose Retry-After
// header is honored when computing the wait before the next attempt.
var DefaultRetryAfterStatuses = []int{413, 429, 503}

var redirectStatuses = map[int]struct{}{
	301: {}, 302: {}, 303: {}, 307: {}, 308: {},
}

// A budget is the remaining allowance of one retry category. An
// untracked budget never exhausts.
type budget struct {
	n       int
	tracked bool
}

func newBudget(n int) budget {
	if n < 0 {
		return budget{}
	}
	return budget{n: n, tracked: true}
}

func (b budget) dec() budget {
	if b.tracked {
		b.n--
	}
	return b
}

func (b budget) exhausted() bool { return b.tracked && b.n < 0 }

// A Policy holds the retry configuration and the mutable per-request
// remaining budgets and attempt history for one logical request.
//
// A Policy value is never mutated after construction: Increment
// returns a fresh Policy carrying the decremented budgets and extended
// history, so the same configured Policy may safely be passed to any
// number of unrelated requests, each of which starts from the full
// budget. Within one logical request the successive Policy values form
// a lineage that must not be shared between goroutines.
type Policy struct {
	total    budget
	connect  budget
	read     budget
	redirect budget
	status   budget

	forcelist         map[int]struct{}
	methods           map[string]struct{}
	retryAfterStatus  map[int]struct{}
	backoffFactor     float64
	backoffMax        time.Duration
	raiseOnRedirect   bool
	raiseOnStatus     bool
	respectRetryAfter bool
	disabled          bool
	clk               clock.Clock

	history  []Attempt
	attempts int
}

// An Option configures a Policy under construction.
type Option func(*Policy)

// WithTotal sets the total retry budget. Pass Unlimited to gate
// retries on the per-category budgets alone.
func WithTotal(n int) Option { return func(p *Policy) { p.total = newBudget(n) } }

// WithConnect sets the connection-establishment retry budget.
func WithConnect(n int) Option { return func(p *Policy) { p.connect = newBudget(n) } }

// WithRead sets the exchange-failure retry budget.
func WithRead(n int) Option { return func(p *Policy) { p.read = newBudget(n) } }

// WithRedirect sets the redirect-following budget.
func WithRedirect(n int) Option { return func(p *Policy) { p.redirect = newBudget(n) } }

// WithStatus sets the status-driven retry budget.
func WithStatus(n int) Option { return func(p *Policy) { p.status = newBudget(n) } }

// WithStatusForcelist sets the status codes that are retried even
// though the response completed, subject to the method whitelist.
func WithStatusForcelist(statuses ...int) Option {
	return func(p *Policy) {
		p.forcelist = make(map[int]struct{}, len(statuses))
		for _, s := range statuses {
			p.forcelist[s] = struct{}{}
		}
	}
}

// WithMethodWhitelist sets the methods eligible for status-driven
// retries. Passing no methods makes every method eligible.
func WithMethodWhitelist(methods ...string) Option {
	return func(p *Policy) {
		if len(methods) == 0 {
			p.methods = nil
			return
		}
		p.methods = make(map[string]struct{}, len(methods))
		for _, m := range methods {
			p.methods[strings.ToUpper(m)] = struct{}{}
		}
	}
}

// WithBackoffFactor sets the multiplier of the exponential backoff
// formula. A zero factor disables computed backoff entirely.
func WithBackoffFactor(f float64) Option { return func(p *Policy) { p.backoffFactor = f } }

// WithBackoffMax caps the computed backoff delay.
func WithBackoffMax(d time.Duration) Option { return func(p *Policy) { p.backoffMax = d } }

// WithRetryAfterStatuses sets the status codes whose Retry-After
// header is honored.
func WithRetryAfterStatuses(statuses ...int) Option {
	return func(p *Policy) {
		p.retryAfterStatus = make(map[int]struct{}, len(statuses))
		for _, s := range statuses {
			p.retryAfterStatus[s] = struct{}{}
		}
	}
}

// WithoutRedirects disables redirect following: the first redirect
// response is returned to the caller as-is rather than followed or
// reported as an error.
func WithoutRedirects() Option {
	return func(p *Policy) {
		p.redirect = newBudget(0)
		p.raiseOnRedirect = false
	}
}

// WithRaiseOnRedirect controls whether exhausting the redirect budget
// surfaces a *MaxRetryError (true, the default) or returns the last
// redirect response as-is (false).
func WithRaiseOnRedirect(raise bool) Option { return func(p *Policy) { p.raiseOnRedirect = raise } }

// WithRaiseOnStatus controls whether exhausting the status budget
// surfaces a *MaxRetryError (true, the default) or returns the last
// unsuccessful response as-is (false).
func WithRaiseOnStatus(raise bool) Option { return func(p *Policy) { p.raiseOnStatus = raise } }

// WithRespectRetryAfter controls whether a Retry-After header on an
// honored status overrides the computed backoff. The default is true.
func WithRespectRetryAfter(respect bool) Option {
	return func(p *Policy) { p.respectRetryAfter = respect }
}

// WithClock sets the clock used for sleeping and Retry-After date
// math. The default is the real clock; tests install a mock.
func WithClock(clk clock.Clock) Option { return func(p *Policy) { p.clk = clk } }

// NewPolicy constructs a Policy. With no options the policy allows
// DefaultTotal retries gated on the total budget alone, whitelists the
// idempotent methods for status-driven retries, honors Retry-After on
// the statuses in DefaultRetryAfterStatuses, and computes no backoff
// (first and subsequent retries are immediate).
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		total:             newBudget(DefaultTotal),
		connect:           budget{},
		read:              budget{},
		redirect:          budget{},
		status:            budget{},
		backoffMax:        DefaultBackoffMax,
		raiseOnRedirect:   true,
		raiseOnStatus:     true,
		respectRetryAfter: true,
		clk:               clock.New(),
	}
	WithMethodWhitelist(DefaultMethodWhitelist...)(p)
	WithRetryAfterStatuses(DefaultRetryAfterStatuses...)(p)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Never constructs a policy with retries disabled: exactly one attempt
// is made, redirect following is off, and whatever the attempt
// produced is propagated to the caller untouched, with no history
// accumulated.
func Never() *Policy {
	p := NewPolicy(WithTotal(0), WithoutRedirects(), WithRaiseOnStatus(false))
	p.disabled = true
	return p
}

// From resolves the polymorphic retries parameter accepted at the
// request entry point into a concrete Policy. The argument may be:
//
// • nil, for the default policy (NewPolicy());
//
// • a *Policy, used as-is;
//
// • a bool: true for the default policy, false for Never();
//
// • an int, for a policy with only the total budget set.
//
// Any other type panics.
func From(retries interface{}) *Policy {
	switch r := retries.(type) {
	case nil:
		return NewPolicy()
	case *Policy:
		return r
	case bool:
		if r {
			return NewPolicy()
		}
		return Never()
	case int:
		return NewPolicy(WithTotal(r))
	default:
		panic("poolx/retry: retries must be nil, bool, int, or *retry.Policy")
	}
}

// Total returns the remaining total budget, or Unlimited if the total
// budget is untracked.
func (p *Policy) Total() int {
	if !p.total.tracked {
		return Unlimited
	}
	return p.total.n
}

// History returns the ordered attempt history accumulated so far. The
// returned slice is a copy and safe to retain.
func (p *Policy) History() []Attempt {
	if len(p.history) == 0 {
		return nil
	}
	h := make([]Attempt, len(p.history))
	copy(h, p.history)
	return h
}

// Disabled reports whether the policy was constructed by Never(),
// meaning retries and redirect following are both off.
func (p *Policy) Disabled() bool { return p.disabled }

// RaiseOnRedirect reports whether redirect-budget exhaustion should
// surface an error rather than the last redirect response.
func (p *Policy) RaiseOnRedirect() bool { return p.raiseOnRedirect }

// RaiseOnStatus reports whether status-budget exhaustion should
// surface an error rather than the last unsuccessful response.
func (p *Policy) RaiseOnStatus() bool { return p.raiseOnStatus }

// IsExhausted reports whether any tracked budget has been decremented
// below zero. A freshly constructed policy is never exhausted, even
// with a zero budget: the zero budget permits the first attempt and
// forbids any retry of it.
func (p *Policy) IsExhausted() bool {
	return p.total.exhausted() ||
		p.connect.exhausted() ||
		p.read.exhausted() ||
		p.redirect.exhausted() ||
		p.status.exhausted()
}

// IsRedirect reports whether the status code belongs to the redirect
// family that the manager follows.
func (p *Policy) IsRedirect(status int) bool {
	_, ok := redirectStatuses[status]
	return ok
}

// RedirectLocation returns the raw Location header of a redirect
// response, or the empty string if the response is not a followable
// redirect.
func RedirectLocation(resp transport.Response) string {
	if resp == nil {
		return ""
	}
	if _, ok := redirectStatuses[resp.Status()]; !ok {
		return ""
	}
	return resp.Header("Location")
}

// IsRetry reports whether a completed response with the given status
// should be retried. The method whitelist gates all status-driven
// retries: a non-whitelisted method is never retried for a completed
// response, even a forcelisted one. A whitelisted method is retried if
// the status is forcelisted, or if the response carries a Retry-After
// hint on an honored status and the total budget is tracked and
// unspent.
func (p *Policy) IsRetry(method string, status int, hasRetryAfter bool) bool {
	if !p.isMethodRetryable(method) {
		return false
	}
	if _, ok := p.forcelist[status]; ok {
		return true
	}
	_, honored := p.retryAfterStatus[status]
	return p.total.tracked && p.total.n != 0 && p.respectRetryAfter && hasRetryAfter && honored
}

func (p *Policy) isMethodRetryable(method string) bool {
	if p.methods == nil {
		return true
	}
	_, ok := p.methods[strings.ToUpper(method)]
	return ok
}

// Increment produces the successor Policy after one attempt, with the
// relevant budgets decremented and an Attempt appended to the history.
// The receiver is left untouched.
//
// The failure category is determined from the arguments: a
// connect-class error charges the connect budget, a read-class error
// charges the read budget, a followable redirect response charges the
// redirect budget, and any other response charges the status budget.
// The total budget is charged in every case. An error matching no
// specific category charges only the total budget.
//
// If the decrement exhausts any tracked budget, Increment returns a
// *MaxRetryError wrapping the precipitating error and the full
// history. A read-class error on a non-whitelisted method, and any
// error on a disabled policy, are returned untouched instead: the
// caller gets the raw transport failure.
func (p *Policy) Increment(method, url string, resp transport.Response, err error) (*Policy, error) {
	if p.disabled && err != nil {
		return nil, err
	}

	next := p.clone()
	next.total = next.total.dec()

	var status int
	var redirectLoc string
	var cause error

	switch {
	case err != nil && transport.IsConnectionError(err):
		next.connect = next.connect.dec()
		next.attempts++
		cause = err
	case err != nil && transport.IsReadError(err):
		if !p.isMethodRetryable(method) {
			return nil, err
		}
		next.read = next.read.dec()
		next.attempts++
		cause = err
	case err != nil:
		next.attempts++
		cause = err
	case RedirectLocation(resp) != "":
		next.redirect = next.redirect.dec()
		status = resp.Status()
		redirectLoc = RedirectLocation(resp)
		cause = errors.Errorf("too many redirects (to %s)", redirectLoc)
	case resp != nil:
		next.status = next.status.dec()
		next.attempts++
		status = resp.Status()
		cause = errors.Errorf("too many %d error responses", status)
	default:
		next.attempts++
		cause = errors.New("unknown error")
	}

	next.history = append(next.history, Attempt{
		Method:           method,
		URL:              url,
		Err:              err,
		Status:           status,
		RedirectLocation: redirectLoc,
	})

	if next.IsExhausted() {
		return nil, &MaxRetryError{URL: url, Reason: cause, History: next.History()}
	}
	return next, nil
}

// clone copies the policy, including a private copy of the history
// slice so that sibling lineages never share a backing array.
func (p *Policy) clone() *Policy {
	next := *p
	next.history = make([]Attempt, len(p.history), len(p.history)+1)
	copy(next.history, p.history)
	return &next
}
