// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/poolx/transport"
)

// DefaultBackoffMax caps the computed exponential backoff delay.
const DefaultBackoffMax = 120 * time.Second

// BackoffTime returns the computed delay before the next attempt:
// backoffFactor × 2^(n−1) seconds, capped at the backoff maximum,
// where n is the count of non-redirect attempts recorded so far. The
// delay is zero until at least two such attempts have been made, so
// the first retry is always immediate.
func (p *Policy) BackoffTime() time.Duration {
	if p.attempts < 2 || p.backoffFactor <= 0 {
		return 0
	}
	exp := int64(1) << 62
	if p.attempts-1 < 63 {
		exp = int64(1) << uint(p.attempts-1)
	}
	backoff := p.backoffFactor * float64(exp)
	if max := p.backoffMax.Seconds(); backoff > max {
		backoff = max
	}
	return time.Duration(backoff * float64(time.Second))
}

// ParseRetryAfter parses the value of a Retry-After header into a wait
// duration. Two formats are recognized, in order: an unsigned integer
// number of seconds, and an HTTP-date (RFC 7231) timestamp measured
// against now. A timestamp in the past yields a zero duration rather
// than a negative one. The second return value is false if the value
// matches neither format; a malformed header is treated as absent, not
// as an error.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// Sleep blocks until the wait before the next attempt has elapsed, or
// until the context is done, in which case the context error is
// returned. If the response carries a parseable Retry-After header on
// an honored status and the policy respects the header, the server's
// hint is used; otherwise the computed backoff applies.
func (p *Policy) Sleep(ctx context.Context, resp transport.Response) error {
	if p.respectRetryAfter && resp != nil {
		if _, honored := p.retryAfterStatus[resp.Status()]; honored {
			if d, ok := ParseRetryAfter(resp.Header("Retry-After"), p.clk.Now()); ok {
				return p.sleep(ctx, d)
			}
		}
	}
	return p.sleep(ctx, p.BackoffTime())
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := p.clk.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
