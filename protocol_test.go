// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProtocol(t *testing.T) {
	p := NewProtocol(`C:\work\shared\protocols\user\PtlLogin.js`)
	assert.Equal(t, "Login", p.Name())
	assert.Equal(t, `C:\work\shared\protocols\user\PtlLogin.js`, p.Filename())
	assert.Equal(t, "HelloWorld", ptlHelloWorld.Name())
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		protocolPath string
		want         string
	}{
		{"prefixed", "/shared/protocols/PtlHelloWorld.ts", "/shared/protocols", "/HelloWorld"},
		{"trailing slash path", "/shared/protocols/PtlHelloWorld.ts", "/shared/protocols/", "/HelloWorld"},
		{"compiled", "/shared/protocols/PtlHelloWorld.js", "/shared/protocols", "/HelloWorld"},
		{"nested", "/shared/protocols/user/PtlLogin.ts", "/shared/protocols", "/user/Login"},
		{"root", "/PtlHelloWorld.js", "/", "/HelloWorld"},
		{"no protocol path", "/shared/protocols/PtlHelloWorld.ts", "", "/shared/protocols/HelloWorld"},
		{"backslashes", `\shared\protocols\PtlHelloWorld.ts`, `\shared\protocols`, "/HelloWorld"},
		{"no leading slash", "protocols/PtlHelloWorld.ts", "protocols", "/HelloWorld"},
		{"relative", "PtlHelloWorld.ts", "", "/HelloWorld"},
		{"no marker", "/shared/protocols/Status.ts", "/shared/protocols", "/Status.ts"},
		{"other extension", "/shared/protocols/PtlHelloWorld.go", "/shared/protocols", "/PtlHelloWorld.go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(NewProtocol(tt.filename), tt.protocolPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePathShape(t *testing.T) {
	shape := regexp.MustCompile(`^/.+`)
	filenames := []string{
		"/shared/protocols/PtlA.ts",
		"/shared/protocols/a/b/c/PtlD.js",
		"/shared/protocols/dir/",
		`\shared\protocols\x\PtlY.ts`,
	}
	for _, f := range filenames {
		got, err := ResolvePath(NewProtocol(f), "/shared/protocols")
		require.NoError(t, err, f)
		assert.Regexp(t, shape, got)
		assert.False(t, strings.HasSuffix(got, "/"), got)
	}
}

func TestResolvePathMismatch(t *testing.T) {
	p := NewProtocol("/other/protocols/PtlHelloWorld.ts")
	for i := 0; i < 3; i++ {
		_, err := ResolvePath(p, "/shared/protocols")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HelloWorld")
		assert.Contains(t, err.Error(), "/other/protocols/PtlHelloWorld.ts")
		assert.Contains(t, err.Error(), "/shared/protocols")
	}
}

func TestResolvePathEmpty(t *testing.T) {
	_, err := ResolvePath(NewProtocol("/shared/protocols/"), "/shared/protocols")
	assert.Error(t, err)
}
