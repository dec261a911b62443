// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Descriptor identifies a remote procedure by the location of its
// protocol file. The client never looks past these two values.
type Descriptor interface {
	Filename() string
	Name() string
}

// Protocol is the stock Descriptor.
type Protocol struct {
	filename string
	name     string
}

// NewProtocol creates a descriptor for the protocol file at filename.
// The name is the file's base name without the Ptl marker and extension,
// so "/shared/protocols/PtlHelloWorld.ts" is named "HelloWorld".
func NewProtocol(filename string) *Protocol {
	base := path.Base(normalizeSlashes(filename))
	base = strings.TrimSuffix(base, path.Ext(base))
	return &Protocol{
		filename: filename,
		name:     strings.TrimPrefix(base, "Ptl"),
	}
}

func (p *Protocol) Filename() string { return p.filename }
func (p *Protocol) Name() string     { return p.name }

func (p *Protocol) String() string {
	return p.name
}

var ptlFilePattern = regexp.MustCompile(`Ptl([^/]+)\.[tj]s$`)

// ResolvePath maps a descriptor to its endpoint path relative to the
// server URL. The result always starts with "/" and never ends with one.
func ResolvePath(d Descriptor, protocolPath string) (string, error) {
	out := normalizeSlashes(d.Filename())

	protocolPath = normalizeProtocolPath(protocolPath)
	if protocolPath != "" {
		if !strings.HasPrefix(out, protocolPath) {
			return "", fmt.Errorf("protocol %s (%s) not in protocolPath %q", d.Name(), d.Filename(), protocolPath)
		}
		out = out[len(protocolPath):]
	}

	out = ptlFilePattern.ReplaceAllString(out, "$1")
	out = strings.TrimRight(out, "/")
	if out == "" {
		return "", fmt.Errorf("protocol %s (%s) resolves to an empty endpoint", d.Name(), d.Filename())
	}
	if out[0] != '/' {
		out = "/" + out
	}
	return out, nil
}

func normalizeSlashes(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}

func normalizeProtocolPath(p string) string {
	return strings.TrimRight(normalizeSlashes(p), "/")
}
