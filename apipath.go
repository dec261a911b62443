// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// APIPathField is the request field that carries the endpoint path when
// Config.HideAPIPath is set.
const APIPathField = "__tsrpc_url__"

// APIPathSetter lets a request type receive the hidden endpoint path
// itself instead of being rewritten into a generic object.
type APIPathSetter interface {
	SetAPIPath(path string)
}

// withAPIPath returns req with the endpoint path attached. It runs before
// encoding, so the path round-trips through whichever codec is in use.
// Maps are copied, never modified in place.
func withAPIPath(req interface{}, path string) (interface{}, error) {
	switch r := req.(type) {
	case APIPathSetter:
		r.SetAPIPath(path)
		return r, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(r)+1)
		for k, v := range r {
			out[k] = v
		}
		out[APIPathField] = path
		return out, nil
	}

	var (
		js  []byte
		err error
	)
	if m, ok := req.(proto.Message); ok {
		js, err = protojson.Marshal(m)
	} else {
		js, err = json.Marshal(req)
	}
	if err != nil {
		return nil, fmt.Errorf("attach api path: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, fmt.Errorf("attach api path: request %T is not an object", req)
	}
	out[APIPathField] = path
	return out, nil
}
