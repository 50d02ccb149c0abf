// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry implements the retry/redirect state machine threaded
// through every attempt of a logical request.
//
// A Policy pairs immutable configuration (budgets per failure
// category, a status forcelist, a method whitelist, backoff and
// Retry-After behavior) with the mutable state of one logical request
// (remaining budget counters and the ordered attempt history).
// Increment never mutates its receiver; it returns the successor
// state, so a configured Policy doubles as a reusable template: handing
// the same instance to unrelated requests gives each of them the full
// budget.
package retry
