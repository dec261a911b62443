// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec names known to the registry.
const (
	CodecJSON  = "json"
	CodecProto = "proto"
	CodecRaw   = "raw"
)

// Codec encodes request values into wire bodies and decodes response
// bodies. Implementations may block; they run on the call's goroutine.
// Responses are decoded once per call, into the reply when it is a
// proto.Message and into a *json.RawMessage otherwise.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// EncodeFunc encodes a request value.
type EncodeFunc func(v interface{}) ([]byte, error)

// DecodeFunc decodes a response body into v.
type DecodeFunc func(data []byte, v interface{}) error

// CodecFuncs adapts a separate encoder and decoder into a Codec.
type CodecFuncs struct {
	EncodeFunc EncodeFunc
	DecodeFunc DecodeFunc
}

func (c CodecFuncs) Encode(v interface{}) ([]byte, error) {
	return c.EncodeFunc(v)
}

func (c CodecFuncs) Decode(data []byte, v interface{}) error {
	return c.DecodeFunc(data, v)
}

// JSONCodec is the default text codec.
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// RawCodec passes byte slices through unchanged and falls back to JSON
// for anything else.
type RawCodec struct{}

func (RawCodec) Encode(v interface{}) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	if b, ok := v.(*[]byte); ok {
		return *b, nil
	}
	return json.Marshal(v)
}

func (RawCodec) Decode(data []byte, v interface{}) error {
	if b, ok := v.(*[]byte); ok {
		*b = append((*b)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

// ProtoCodec is the default binary codec. proto.Message values are
// marshalled directly; any other JSON-shaped value travels as a
// google.protobuf.Struct.
type ProtoCodec struct{}

func (ProtoCodec) Encode(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	s, err := toStruct(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (ProtoCodec) Decode(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return err
	}
	js, err := protojson.Marshal(&s)
	if err != nil {
		return err
	}
	return json.Unmarshal(js, v)
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(js, &s); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	return &s, nil
}

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{
		CodecJSON:  JSONCodec{},
		CodecProto: ProtoCodec{},
		CodecRaw:   RawCodec{},
	}
)

// RegisterCodec makes a codec available to Config.TextCodec and
// Config.BinaryCodec under name.
func RegisterCodec(name string, c Codec) error {
	if name == "" || c == nil {
		return errors.New("ptlrpc: codec name and value required")
	}
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[name] = c
	return nil
}

func lookupCodec(name string) (Codec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[name]
	return c, ok
}

// AvailableCodecs returns the registered codec names in sorted order.
func AvailableCodecs() []string {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	result := make([]string, 0, len(codecs))
	for name := range codecs {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
