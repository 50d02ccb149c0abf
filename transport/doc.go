// Copyright 2026 The poolx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transport defines the capabilities the pool and retry core
// consume from the wire level: a Dialer that opens connections to a
// Destination, a Conn that performs one exchange at a time, and a
// fully buffered Response. It also defines the error taxonomy that
// maps transport failures onto retry budget categories, and provides
// NetDialer, a default TCP/TLS implementation built on the standard
// library's HTTP/1.1 codec.
//
// The package deliberately does not re-specify HTTP semantics. Any
// transport that can open a connection, perform an exchange, and
// report connect-class and read-class failures distinctly can be
// plugged in by implementing Dialer.
package transport
