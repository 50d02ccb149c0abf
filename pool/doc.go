// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package pool implements the per-destination connection pool: a
// capacity-bounded free list of reusable connections plus the attempt
// loop that drives connect, exchange, and status retries for one
// destination. Cross-destination concerns, in particular redirect
// following and pool lifecycle, live with the manager in the root
// package.
package pool
