// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import "sync/atomic"

// sequence hands out request serial numbers. A single instance is shared
// by every Client in the process.
type sequence struct {
	last atomic.Uint64
}

func (s *sequence) next() uint64 {
	return s.last.Add(1)
}

func (s *sequence) current() uint64 {
	return s.last.Load()
}

var requestSN sequence

// LastRequestSN returns the serial number of the most recent call made by
// any client in this process, or 0 if none has been made.
func LastRequestSN() uint64 {
	return requestSN.current()
}
