// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"errors"
	"net/http"
	urlpkg "net/url"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gogama/poolx/retry"
	"github.com/gogama/poolx/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testDest = transport.Destination{Scheme: "http", Host: "example.com", Port: 80}

var testURL, _ = urlpkg.Parse("http://example.com/path")

// exchange scripts one Send/Receive round on a scripted connection.
type exchange struct {
	sendErr  error
	recvErr  error
	resp     *scriptResponse
	reusable bool
}

type scriptResponse struct {
	status int
	header http.Header
	data   []byte
}

func (r *scriptResponse) Status() int { return r.status }

func (r *scriptResponse) Header(name string) string { return r.header.Get(name) }

func (r *scriptResponse) Data() []byte { return r.data }

func respond(status int, kv ...string) *scriptResponse {
	h := make(http.Header)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return &scriptResponse{status: status, header: h}
}

type scriptConn struct {
	mu        sync.Mutex
	exchanges []exchange
	i         int
	reusable  bool
	closed    bool
}

func conn(exchanges ...exchange) *scriptConn {
	return &scriptConn{exchanges: exchanges, reusable: true}
}

func (c *scriptConn) Send(_ context.Context, _ *transport.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchanges[c.i].sendErr
}

func (c *scriptConn) Receive(_ context.Context) (transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	x := c.exchanges[c.i]
	c.i++
	if x.recvErr != nil {
		c.reusable = false
		return nil, x.recvErr
	}
	c.reusable = x.reusable
	return x.resp, nil
}

func (c *scriptConn) Reusable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reusable
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// dialStep scripts one Dial call: either an error or a connection.
type dialStep struct {
	err  error
	conn *scriptConn
}

type scriptDialer struct {
	mu    sync.Mutex
	steps []dialStep
	dials int
}

func dialer(steps ...dialStep) *scriptDialer {
	return &scriptDialer{steps: steps}
}

func (d *scriptDialer) Dial(_ context.Context, dest transport.Destination) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	step := d.steps[d.dials]
	d.dials++
	if step.err != nil {
		return nil, step.err
	}
	return step.conn, nil
}

func dialErr() error {
	return &transport.ConnectionError{Dest: testDest, Err: syscall.ECONNREFUSED}
}

func recvErr() error {
	return &transport.ReadError{Dest: testDest, Err: syscall.ECONNRESET}
}

func ok(status int, kv ...string) exchange {
	return exchange{resp: respond(status, kv...), reusable: true}
}

func TestURLOpenSuccess(t *testing.T) {
	d := dialer(dialStep{conn: conn(ok(200))})
	p := New(testDest, d)
	defer p.Close()

	resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	assert.Empty(t, rp.History())
	assert.Equal(t, 1, p.Idle(), "connection was released to the free list")
}

func TestURLOpenReusesConnections(t *testing.T) {
	d := dialer(dialStep{conn: conn(ok(200), ok(200), ok(200))})
	p := New(testDest, d)
	defer p.Close()

	for i := 0; i < 3; i++ {
		resp, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status())
	}
	assert.Equal(t, 1, d.dials, "all three requests shared one connection")
}

func TestURLOpenDropsNonReusableConnection(t *testing.T) {
	c1 := conn(exchange{resp: respond(200), reusable: false})
	c2 := conn(ok(200))
	d := dialer(dialStep{conn: c1}, dialStep{conn: c2})
	p := New(testDest, d)
	defer p.Close()

	_, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	assert.True(t, c1.closed, "non-reusable connection is closed, not freed")
	assert.Equal(t, 0, p.Idle())

	_, _, err = p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	assert.Equal(t, 2, d.dials)
}

func TestURLOpenRetriesConnectFailures(t *testing.T) {
	d := dialer(dialStep{err: dialErr()}, dialStep{err: dialErr()}, dialStep{conn: conn(ok(200))})
	p := New(testDest, d)
	defer p.Close()

	resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy(retry.WithTotal(3)))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	assert.Equal(t, 1, rp.Total())

	h := rp.History()
	require.Len(t, h, 2)
	for _, a := range h {
		assert.Equal(t, "GET", a.Method)
		assert.Equal(t, testURL.String(), a.URL)
		assert.Error(t, a.Err)
		assert.Zero(t, a.Status)
	}
}

func TestURLOpenConnectExhaustion(t *testing.T) {
	// total=1 permits two attempts; both fail, so the caller sees a
	// MaxRetryError carrying both attempts.
	d := dialer(dialStep{err: dialErr()}, dialStep{err: dialErr()})
	p := New(testDest, d)
	defer p.Close()

	_, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy(retry.WithTotal(1)))
	var mre *retry.MaxRetryError
	require.ErrorAs(t, err, &mre)
	assert.Len(t, mre.History, 2)
	assert.Len(t, rp.History(), 1)
	assert.Equal(t, 2, d.dials)
}

func TestURLOpenRetriesReadFailures(t *testing.T) {
	c1 := conn(exchange{recvErr: recvErr()})
	c2 := conn(ok(200))
	d := dialer(dialStep{conn: c1}, dialStep{conn: c2})
	p := New(testDest, d)
	defer p.Close()

	resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy(retry.WithTotal(2)))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	assert.True(t, c1.closed, "failed connection is discarded")
	require.Len(t, rp.History(), 1)
	assert.Error(t, rp.History()[0].Err)
}

func TestURLOpenStatusForcelist(t *testing.T) {
	d := dialer(dialStep{conn: conn(ok(418), ok(200))})
	p := New(testDest, d)
	defer p.Close()

	rp := retry.NewPolicy(retry.WithTotal(1), retry.WithStatusForcelist(418))
	resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, rp)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	assert.Equal(t, 0, rp.Total())

	h := rp.History()
	require.Len(t, h, 1)
	assert.Equal(t, retry.Attempt{Method: "GET", URL: testURL.String(), Status: 418}, h[0])
}

func TestURLOpenForcelistNonWhitelistedMethod(t *testing.T) {
	d := dialer(dialStep{conn: conn(ok(418))})
	p := New(testDest, d)
	defer p.Close()

	rp := retry.NewPolicy(retry.WithTotal(1), retry.WithStatusForcelist(418), retry.WithMethodWhitelist("POST"))
	resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, rp)
	require.NoError(t, err)
	assert.Equal(t, 418, resp.Status(), "non-whitelisted method gets the response as-is")
	assert.Empty(t, rp.History())
	assert.Equal(t, 1, rp.Total(), "no budget consumed")
}

func TestURLOpenStatusExhaustion(t *testing.T) {
	t.Run("raise on status", func(t *testing.T) {
		d := dialer(dialStep{conn: conn(ok(418), ok(418))})
		p := New(testDest, d)
		defer p.Close()

		rp := retry.NewPolicy(retry.WithTotal(1), retry.WithStatusForcelist(418))
		_, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, rp)
		var mre *retry.MaxRetryError
		require.ErrorAs(t, err, &mre)
		assert.Len(t, mre.History, 2)
	})
	t.Run("return response", func(t *testing.T) {
		d := dialer(dialStep{conn: conn(ok(418), ok(418))})
		p := New(testDest, d)
		defer p.Close()

		rp := retry.NewPolicy(retry.WithTotal(1), retry.WithStatusForcelist(418), retry.WithRaiseOnStatus(false))
		resp, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, rp)
		require.NoError(t, err)
		assert.Equal(t, 418, resp.Status())
		require.Len(t, rp.History(), 1)
	})
}

func TestURLOpenDisabledRetriesPropagateRawError(t *testing.T) {
	d := dialer(dialStep{err: dialErr()})
	p := New(testDest, d)
	defer p.Close()

	_, rp, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.Never())
	var ce *transport.ConnectionError
	require.ErrorAs(t, err, &ce)
	var mre *retry.MaxRetryError
	assert.False(t, errors.As(err, &mre), "no MaxRetryError for disabled retries")
	assert.Empty(t, rp.History())
	assert.Equal(t, 1, d.dials)
}

func TestAcquireAtCapacity(t *testing.T) {
	t.Run("non-blocking fails", func(t *testing.T) {
		d := dialer(dialStep{conn: conn()})
		p := New(testDest, d)
		defer p.Close()

		c, err := p.acquire(context.Background())
		require.NoError(t, err)
		_, err = p.acquire(context.Background())
		var ee *ExhaustedError
		require.ErrorAs(t, err, &ee)
		p.release(c)
	})
	t.Run("blocking waits for a release", func(t *testing.T) {
		d := dialer(dialStep{conn: conn()})
		p := New(testDest, d, WithBlocking(true))
		defer p.Close()

		c, err := p.acquire(context.Background())
		require.NoError(t, err)

		got := make(chan transport.Conn, 1)
		go func() {
			c2, err := p.acquire(context.Background())
			if err == nil {
				got <- c2
			}
		}()

		select {
		case <-got:
			t.Fatal("acquire returned before a connection was released")
		case <-time.After(20 * time.Millisecond):
		}

		p.release(c)
		select {
		case c2 := <-got:
			assert.Same(t, c, c2)
			p.release(c2)
		case <-time.After(time.Second):
			t.Fatal("blocked acquire never observed the release")
		}
	})
	t.Run("blocking respects context", func(t *testing.T) {
		d := dialer(dialStep{conn: conn()})
		p := New(testDest, d, WithBlocking(true))
		defer p.Close()

		c, err := p.acquire(context.Background())
		require.NoError(t, err)
		defer p.release(c)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = p.acquire(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCloseClosesIdleConnections(t *testing.T) {
	c1 := conn(ok(200))
	d := dialer(dialStep{conn: c1})
	p := New(testDest, d)

	_, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	require.Equal(t, 1, p.Idle())

	require.NoError(t, p.Close())
	assert.True(t, c1.closed)
	assert.Equal(t, 0, p.Idle())

	_, _, err = p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseIdle(t *testing.T) {
	c1 := conn(ok(200), ok(200))
	c2 := conn(ok(200))
	d := dialer(dialStep{conn: c1}, dialStep{conn: c2})
	p := New(testDest, d)
	defer p.Close()

	_, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	require.Equal(t, 1, p.Idle())

	p.CloseIdle()
	assert.True(t, c1.closed)
	assert.Equal(t, 0, p.Idle())

	resp, _, err := p.URLOpen(context.Background(), "GET", testURL, nil, nil, retry.NewPolicy())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status(), "pool stays usable and dials afresh")
	assert.Equal(t, 2, d.dials)
}

func TestReleaseAfterCloseDropsConnection(t *testing.T) {
	c1 := conn()
	d := dialer(dialStep{conn: c1})
	p := New(testDest, d)

	c, err := p.acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p.release(c)
	assert.True(t, c1.closed, "busy connection is closed on release, not freed")
	assert.Equal(t, 0, p.Idle())
}
