// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffTime(t *testing.T) {
	p := NewPolicy(WithBackoffFactor(0.5))

	assert.Equal(t, time.Duration(0), p.BackoffTime(), "no attempts yet")

	p.attempts = 1
	assert.Equal(t, time.Duration(0), p.BackoffTime(), "first retry is immediate")

	p.attempts = 2
	assert.Equal(t, 1*time.Second, p.BackoffTime())

	p.attempts = 3
	assert.Equal(t, 2*time.Second, p.BackoffTime())

	p.attempts = 4
	assert.Equal(t, 4*time.Second, p.BackoffTime())

	p.attempts = 30
	assert.Equal(t, DefaultBackoffMax, p.BackoffTime(), "capped at the ceiling")

	p.attempts = 500
	assert.Equal(t, DefaultBackoffMax, p.BackoffTime(), "huge attempt counts do not overflow")
}

func TestBackoffTimeZeroFactor(t *testing.T) {
	p := NewPolicy()
	p.attempts = 10
	assert.Equal(t, time.Duration(0), p.BackoffTime())
}

func TestBackoffTimeCustomMax(t *testing.T) {
	p := NewPolicy(WithBackoffFactor(1), WithBackoffMax(3*time.Second))
	p.attempts = 4
	assert.Equal(t, 3*time.Second, p.BackoffTime())
}

func TestBackoffCounterIgnoresRedirects(t *testing.T) {
	p := NewPolicy(WithBackoffFactor(1), WithTotal(10), WithStatusForcelist(503))

	p, err := p.Increment("GET", "u", response(503), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), p.BackoffTime(), "one non-redirect attempt")

	p, err = p.Increment("GET", "u", response(302, "Location", "/next"), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), p.BackoffTime(), "redirects do not advance the counter")

	p, err = p.Increment("GET", "u", response(503), nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, p.BackoffTime())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	t.Run("seconds", func(t *testing.T) {
		d, ok := ParseRetryAfter("120", now)
		require.True(t, ok)
		assert.Equal(t, 120*time.Second, d)
	})
	t.Run("zero seconds", func(t *testing.T) {
		d, ok := ParseRetryAfter("0", now)
		require.True(t, ok)
		assert.Equal(t, time.Duration(0), d)
	})
	t.Run("HTTP date in the future", func(t *testing.T) {
		d, ok := ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now)
		require.True(t, ok)
		assert.Equal(t, 90*time.Second, d)
	})
	t.Run("HTTP date in the past clamps to zero", func(t *testing.T) {
		d, ok := ParseRetryAfter(now.Add(-time.Hour).Format(http.TimeFormat), now)
		require.True(t, ok)
		assert.Equal(t, time.Duration(0), d)
	})
	t.Run("negative seconds are not a hint", func(t *testing.T) {
		_, ok := ParseRetryAfter("-5", now)
		assert.False(t, ok)
	})
	t.Run("garbage is not a hint", func(t *testing.T) {
		for _, v := range []string{"", "   ", "soon", "1.5", "10s"} {
			_, ok := ParseRetryAfter(v, now)
			assert.False(t, ok, "value %q", v)
		}
	})
}

func TestSleepHonorsRetryAfter(t *testing.T) {
	mock := clock.NewMock()
	p := NewPolicy(WithClock(mock))

	done := make(chan error, 1)
	go func() {
		done <- p.Sleep(context.Background(), response(503, "Retry-After", "2"))
	}()

	// Let the sleeper park on its timer before advancing the clock.
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Sleep returned before the Retry-After delay elapsed")
	default:
	}

	mock.Add(2 * time.Second)
	assert.NoError(t, <-done)
}

func TestSleepIgnoresRetryAfterOnUnhonoredStatus(t *testing.T) {
	// 418 is not in the honored set, so the header is ignored and the
	// zero computed backoff returns immediately.
	p := NewPolicy(WithClock(clock.NewMock()))
	err := p.Sleep(context.Background(), response(418, "Retry-After", "3600"))
	assert.NoError(t, err)
}

func TestSleepIgnoresMalformedRetryAfter(t *testing.T) {
	p := NewPolicy(WithClock(clock.NewMock()))
	err := p.Sleep(context.Background(), response(503, "Retry-After", "soon"))
	assert.NoError(t, err)
}

func TestSleepCancellable(t *testing.T) {
	mock := clock.NewMock()
	p := NewPolicy(WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Sleep(ctx, response(503, "Retry-After", "3600"))
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSleepZeroBackoffReturnsImmediately(t *testing.T) {
	p := NewPolicy(WithClock(clock.NewMock()))
	assert.NoError(t, p.Sleep(context.Background(), nil))
}
