// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Response fields that signal a server-declared error.
const (
	errmsgField  = "errmsg"
	errinfoField = "errinfo"
)

// apiStatus is the part of every response document that signals a server
// error.
type apiStatus struct {
	Errmsg  json.RawMessage `json:"errmsg"`
	Errinfo interface{}     `json:"errinfo"`
}

// documentStatus inspects a decoded response document. A non-null errmsg
// is returned as an *Error; otherwise the document is unmarshalled into
// reply, if there is one.
func documentStatus(doc json.RawMessage, reply interface{}) (*Error, error) {
	if trimmed := bytes.TrimSpace(doc); len(trimmed) > 0 && trimmed[0] == '{' {
		var status apiStatus
		if err := json.Unmarshal(trimmed, &status); err != nil {
			return nil, err
		}
		if len(status.Errmsg) > 0 && !bytes.Equal(status.Errmsg, []byte("null")) {
			var msg string
			if err := json.Unmarshal(status.Errmsg, &msg); err != nil {
				msg = string(status.Errmsg)
			}
			return &Error{
				Message: msg,
				Kind:    kindOf(status.Errinfo),
				Info:    status.Errinfo,
			}, nil
		}
	}
	if reply == nil {
		return nil, nil
	}
	return nil, json.Unmarshal(doc, reply)
}

// protoStatus reads the errmsg and errinfo fields of a decoded proto
// reply. It returns nil when the message has no errmsg field or it is
// unset.
func protoStatus(m proto.Message) *Error {
	msg := m.ProtoReflect()
	fields := msg.Descriptor().Fields()
	fd := fields.ByName(errmsgField)
	if fd == nil || !msg.Has(fd) {
		return nil
	}

	e := &Error{Message: protoString(fd, msg.Get(fd))}
	if info := fields.ByName(errinfoField); info != nil && msg.Has(info) {
		v := msg.Get(info)
		e.Kind = protoString(info, v)
		e.Info = e.Kind
		if info.Message() != nil && !info.IsList() && !info.IsMap() {
			e.Info = v.Message().Interface()
		}
	}
	return e
}

func protoString(fd protoreflect.FieldDescriptor, v protoreflect.Value) string {
	switch {
	case fd.Kind() == protoreflect.StringKind && !fd.IsList() && !fd.IsMap():
		return v.String()
	case fd.Message() != nil && !fd.IsList() && !fd.IsMap():
		js, err := protojson.Marshal(v.Message().Interface())
		if err != nil {
			return fmt.Sprint(v.Interface())
		}
		return string(js)
	default:
		return fmt.Sprint(v.Interface())
	}
}
