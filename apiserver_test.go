// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testProtocolPath = "/shared/protocols"

var (
	ptlHelloWorld = NewProtocol("/shared/protocols/PtlHelloWorld.ts")
	ptlHelloKing  = NewProtocol("/shared/protocols/PtlHelloKing.ts")
)

type helloReq struct {
	Name string `json:"name,omitempty"`
}

type helloRes struct {
	Reply string `json:"reply"`
}

// apiResult is what the fake API answers for one request.
type apiResult struct {
	status int
	body   map[string]interface{}
}

// testAPI mimics a protocol server: HelloWorld is the only endpoint and
// the request name selects error and delay behaviour.
type testAPI struct {
	delayStarted chan struct{}
	requestIDs   chan string
}

func newTestAPI() *testAPI {
	return &testAPI{
		delayStarted: make(chan struct{}, 16),
		requestIDs:   make(chan string, 64),
	}
}

func (a *testAPI) serve(r *http.Request, path string, req map[string]interface{}) apiResult {
	if path != "/HelloWorld" {
		return apiResult{http.StatusNotFound, map[string]interface{}{
			"errmsg":  "Invalid API path: " + path,
			"errinfo": KindPtlNotFound,
		}}
	}

	name, _ := req["name"].(string)
	switch name {
	case "":
		name = "world"
	case "Error":
		return apiResult{http.StatusInternalServerError, map[string]interface{}{
			"errmsg":  "Internal Server Error",
			"errinfo": KindUnhandledAPIErr,
		}}
	case "TsrpcError":
		return apiResult{http.StatusOK, map[string]interface{}{
			"errmsg":  "TsrpcError",
			"errinfo": "TsrpcError",
		}}
	case "Delay":
		a.delayStarted <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	return apiResult{http.StatusOK, map[string]interface{}{
		"reply": "Hello, " + name + "!",
	}}
}

// textHandler serves JSON bodies with the endpoint in the URL under
// prefix.
func (a *testAPI) textHandler(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case a.requestIDs <- r.Header.Get(RequestIDHeader):
		default:
		}
		var req map[string]interface{}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		res := a.serve(r, strings.TrimPrefix(r.URL.Path, prefix), req)
		out, _ := json.Marshal(res.body)
		w.WriteHeader(res.status)
		_, _ = w.Write(out)
	})
}

// binaryHandler serves xor-masked proto bodies with the endpoint hidden
// in the request.
func (a *testAPI) binaryHandler() http.Handler {
	codec := xorCodec{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		data, _ := io.ReadAll(r.Body)
		if err := codec.Decode(data, &req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		path, _ := req[APIPathField].(string)
		res := a.serve(r, path, req)
		out, _ := codec.Encode(res.body)
		w.WriteHeader(res.status)
		_, _ = w.Write(out)
	})
}

// newTestServer serves text calls under /api/ and hidden binary calls at
// /bapi.
func newTestServer(t *testing.T) (*httptest.Server, *testAPI) {
	t.Helper()
	api := newTestAPI()
	mux := http.NewServeMux()
	mux.Handle("/api/", api.textHandler("/api"))
	mux.Handle("/bapi", api.binaryHandler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, api
}

// xorCodec masks ProtoCodec output so a server only understands it with
// the same codec.
type xorCodec struct{}

func xorBytes(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ 0xf0
	}
	return out
}

func (xorCodec) Encode(v interface{}) ([]byte, error) {
	data, err := ProtoCodec{}.Encode(v)
	if err != nil {
		return nil, err
	}
	return xorBytes(data), nil
}

func (xorCodec) Decode(data []byte, v interface{}) error {
	return ProtoCodec{}.Decode(xorBytes(data), v)
}
