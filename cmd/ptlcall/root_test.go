// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHelloServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/Login" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errmsg":"Invalid API path: ` + r.URL.Path + `","errinfo":"PTL_NOT_FOUND"}`))
			return
		}
		var req map[string]interface{}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &req)
		out, _ := json.Marshal(map[string]interface{}{"user": req["user"], "ok": true})
		_, _ = w.Write(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(args ...string) (string, string, error) {
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCallPrintsReply(t *testing.T) {
	srv := newHelloServer(t)

	out, _, err := execute(
		"--server", srv.URL+"/api/",
		"--protocol-path", "shared/protocols",
		"--data", `{"user":"peter"}`,
		"shared/protocols/user/PtlLogin.ts",
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":"peter","ok":true}`, out)
}

func TestCallFromConfigFile(t *testing.T) {
	srv := newHelloServer(t)
	path := filepath.Join(t.TempDir(), "ptlcall.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server_url = \""+srv.URL+"/api\"\nprotocol_path = \"/shared/protocols\"\n",
	), 0o600))

	out, _, err := execute("--config", path, "/shared/protocols/user/PtlLogin.ts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":null,"ok":true}`, out)
}

func TestCallReportsAPIError(t *testing.T) {
	srv := newHelloServer(t)

	_, stderr, err := execute("--server", srv.URL+"/api", "PtlMissing.ts")
	require.Error(t, err)
	assert.Contains(t, stderr, "PTL_NOT_FOUND: Invalid API path: /api/Missing")
}

func TestCallRejectsBadInput(t *testing.T) {
	_, _, err := execute("--server", "http://127.0.0.1:1", "--data", "[1]", "PtlLogin.ts")
	assert.ErrorContains(t, err, "invalid --data")

	_, _, err = execute("PtlLogin.ts")
	assert.ErrorContains(t, err, "server_url required")

	_, _, err = execute()
	assert.Error(t, err)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptlcall.log")
	logger := newLogger(path, true, nil)
	logger.Debug("api request")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"api request"`)
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client hanging up.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	_, stderr, err := execute("--server", srv.URL, "--timeout", "50ms", "PtlLogin.ts")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, stderr, "deadline exceeded")
}
