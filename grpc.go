// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// GRPCTransport makes each call a unary gRPC invocation of
// "/<Service>/<Endpoint>" carrying the encoded body untouched. Hidden
// paths invoke "/<Service>/Call".
type GRPCTransport struct {
	conn    *grpc.ClientConn
	Service string
}

// NewGRPCTransport wraps an existing connection.
func NewGRPCTransport(conn *grpc.ClientConn, service string) *GRPCTransport {
	return &GRPCTransport{conn: conn, Service: service}
}

// DialGRPC creates a gRPC transport for target. Plaintext credentials are
// used unless opts supply others.
func DialGRPC(target, service string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return NewGRPCTransport(conn, service), nil
}

func newGRPCTransportFromConfig(cfg Config) (Transport, error) {
	return DialGRPC(hostOf(cfg.ServerURL), cfg.Service)
}

// hostOf strips the scheme and path from a server URL, leaving a dial
// target.
func hostOf(serverURL string) string {
	if u, err := url.Parse(serverURL); err == nil && u.Host != "" {
		return u.Host
	}
	return serverURL
}

func grpcMethod(service, path string) string {
	endpoint := strings.Trim(path, "/")
	if endpoint == "" {
		endpoint = "Call"
	}
	return "/" + service + "/" + strings.ReplaceAll(endpoint, "/", "_")
}

func (t *GRPCTransport) RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error) {
	var resp []byte
	err := t.conn.Invoke(ctx, grpcMethod(t.Service, req.Path), req.Body, &resp, grpc.ForceCodec(RawGRPCCodec{}))
	if err == nil {
		return resp, nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return nil, err
	}
	switch st.Code() {
	case codes.Unimplemented:
		return nil, NewError(st.Message(), KindPtlNotFound)
	case codes.Unknown, codes.Internal, codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound:
		return nil, NewError(st.Message(), KindUnhandledAPIErr)
	default:
		return nil, err
	}
}

func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}

// RawGRPCCodec moves byte slices over gRPC without protobuf framing of the
// payload. Servers talking to GRPCTransport install it with
// grpc.ForceServerCodec.
type RawGRPCCodec struct{}

func (RawGRPCCodec) Marshal(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
}

func (RawGRPCCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (RawGRPCCodec) Name() string {
	return "ptlrpc-raw"
}
