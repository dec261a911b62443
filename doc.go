// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ptlrpc is a thin client for API endpoints described by protocol
// files.
//
// A protocol file such as "/shared/protocols/user/PtlLogin.ts" names the
// endpoint "/user/Login" once the configured protocol path is stripped.
// The client posts the encoded request to ServerURL + endpoint, decodes the
// response and settles a cancellable Call.
//
// # Usage
//
//	client, err := ptlrpc.New(ptlrpc.Config{
//	    ServerURL:    "http://localhost:3301/api",
//	    ProtocolPath: "/shared/protocols",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ptl := ptlrpc.NewProtocol("/shared/protocols/PtlHelloWorld.ts")
//
//	// Blocking
//	var res HelloWorldRes
//	err = client.Call(ctx, ptl, HelloWorldReq{Name: "test"}, &res)
//
//	// Cancellable
//	call, err := client.CallAPI(ctx, ptl, HelloWorldReq{Name: "test"}, &res)
//	...
//	call.Cancel()
//
// A response carrying a non-null "errmsg" rejects the call with an *Error
// whose Kind is the response's "errinfo".
//
// # Hooks
//
// OnRequest, OnResponse and OnError each hold at most one callback. An
// OnRequest hook may call Prevent on its event to veto the call before any
// I/O; the call then fails with REQ_PREVENT.
//
// # Transports and codecs
//
// Text mode uses the "json" codec and binary mode the "proto" codec unless
// configured otherwise. Transports:
//
//   - http: POST to the endpoint URL (default)
//   - jsonrpc: JSON-RPC 2.0 request per call
//   - grpc: unary gRPC call with raw bodies
//   - tcp: length-prefixed frames over one multiplexed connection
//
// Calls are never retried; retry policy belongs to the caller.
package ptlrpc
