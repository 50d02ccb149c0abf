// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package poolx provides the client-side transport core of an HTTP
library: a connection-pool manager paired with a retry/redirect state
machine. The manager keeps one bounded pool of reusable connections per
destination (scheme, host, port), evicting the least recently used
pool when the registry fills, and routes every logical request,
including redirects that cross hosts, while one retry policy lineage
accumulates budget decrements and attempt history across all hops.

Create a Manager to begin making requests.

	m := poolx.NewManager()
	defer m.Close()
	resp, err := m.Get(ctx, "http://www.example.com")
	...
	resp, err := m.Request(ctx, "GET", "http://www.example.com/flaky",
		poolx.Retries(retry.NewPolicy(
			retry.WithTotal(3),
			retry.WithStatusForcelist(502, 503),
		)))

The Retries request option accepts a *retry.Policy, a bool (false
yields exactly one attempt with no redirect following), or an int
total budget. The returned Response exposes the final policy state, so
callers can inspect how the request went:

	for _, a := range resp.Retries.History() {
		...
	}

The wire level is pluggable: anything implementing transport.Dialer
can be installed with the WithDialer option. The default transport
speaks HTTP/1.1 over TCP and TLS.
*/
package poolx
