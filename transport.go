// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Transport types
const (
	TransportHTTP    = "http"    // POST to ServerURL + path, default
	TransportJSONRPC = "jsonrpc" // JSON-RPC 2.0 over HTTP
	TransportGRPC    = "grpc"    // unary gRPC with raw bodies
	TransportTCP     = "tcp"     // length-prefixed frames over TCP
)

// DefaultTransport is the default transport type (HTTP)
const DefaultTransport = TransportHTTP

// TransportRequest is one outgoing call as seen by a Transport.
type TransportRequest struct {
	// URL is the full request target: ServerURL + Path, or ServerURL
	// alone when the path travels inside Body.
	URL string
	// Path is the resolved endpoint, empty when it is hidden in Body.
	Path string
	Body []byte
	// Binary selects byte-buffer rather than text bodies in both
	// directions.
	Binary bool
	// ID identifies the call in transport-level headers and logs.
	ID string
}

// Transport performs a single round trip. Cancelling ctx aborts the
// in-flight operation. A transport that receives a server-declared API
// error out of band returns it as an *Error; any other error is treated
// as a network failure.
type Transport interface {
	RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error)
}

// TransportFunc is a function adapter for Transport
type TransportFunc func(ctx context.Context, req *TransportRequest) ([]byte, error)

func (f TransportFunc) RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error) {
	return f(ctx, req)
}

type transportFactory func(cfg Config) (Transport, error)

var (
	transportsMu sync.RWMutex
	transports   = map[string]transportFactory{
		TransportHTTP:    newHTTPTransportFromConfig,
		TransportJSONRPC: newJSONRPCTransportFromConfig,
		TransportGRPC:    newGRPCTransportFromConfig,
		TransportTCP:     newFrameTransportFromConfig,
	}
)

// RegisterTransport makes a transport constructor available to
// Config.Transport under name.
func RegisterTransport(name string, factory func(cfg Config) (Transport, error)) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = factory
}

func newTransport(cfg Config) (Transport, error) {
	transportsMu.RLock()
	factory, ok := transports[cfg.Transport]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
	return factory(cfg)
}

// AvailableTransports returns list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[name]
	return ok
}
