// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	rpc "github.com/gorilla/rpc/v2/json2"
)

// JSONRPCTransport sends each call as a JSON-RPC 2.0 request whose
// params are the encoded request body. It needs a JSON text codec.
//
// The method is "<Service>.<Endpoint>", with the endpoint's inner slashes
// turned into underscores; hidden paths call "<Service>.Call". JSON-RPC
// errors reject the call as server-declared API errors.
type JSONRPCTransport struct {
	Client  *http.Client
	Service string
}

func newJSONRPCTransportFromConfig(cfg Config) (Transport, error) {
	return &JSONRPCTransport{
		Client:  newHTTPClient(cfg.Timeout.Duration),
		Service: cfg.Service,
	}, nil
}

func jsonRPCMethod(service, path string) string {
	endpoint := strings.Trim(path, "/")
	if endpoint == "" {
		endpoint = "Call"
	}
	return service + "." + strings.ReplaceAll(endpoint, "/", "_")
}

func (t *JSONRPCTransport) RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error) {
	if req.Binary {
		return nil, errors.New("jsonrpc transport does not carry binary bodies")
	}
	requestBodyBytes, err := rpc.EncodeClientRequest(jsonRPCMethod(t.Service, req.Path), json.RawMessage(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		req.URL,
		bytes.NewBuffer(requestBodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if req.ID != "" {
		request.Header.Set(RequestIDHeader, req.ID)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	var result json.RawMessage
	if err := rpc.DecodeClientResponse(resp.Body, &result); err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, apiError(rpcErr)
		}
		return nil, fmt.Errorf("failed to decode client response: %w", err)
	}
	return result, nil
}

// apiError converts a JSON-RPC error into a server-declared API error. A
// string in Data is taken as the error kind.
func apiError(e *rpc.Error) *Error {
	kind, ok := e.Data.(string)
	if !ok || kind == "" {
		kind = KindUnhandledAPIErr
		// gorilla servers report unknown methods as E_SERVER.
		if e.Code == rpc.E_NO_METHOD || strings.HasPrefix(e.Message, "rpc: can't find") {
			kind = KindPtlNotFound
		}
	}
	return &Error{Message: e.Message, Kind: kind, Info: e.Data}
}
