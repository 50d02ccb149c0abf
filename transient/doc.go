// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies transport errors by failure class, so
// that the retry machinery can charge a failed attempt to the correct
// budget counter: connection-establishment failures to the connect
// counter, and failures of an exchange on an established connection to
// the read counter.
package transient
