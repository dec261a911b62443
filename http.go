// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeBinary = "application/octet-stream"

	// RequestIDHeader carries the call ID on HTTP requests.
	RequestIDHeader = "X-Request-Id"
)

// HTTPTransport posts each call body to its URL.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates an HTTP transport. A zero timeout leaves
// requests unbounded.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{Client: newHTTPClient(timeout)}
}

func newHTTPTransportFromConfig(cfg Config) (Transport, error) {
	return NewHTTPTransport(cfg.Timeout.Duration), nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// RoundTrip returns the response body whatever the status code: servers
// report API errors inside the body, including on 4xx and 5xx.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error) {
	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		req.URL,
		bytes.NewReader(req.Body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Binary {
		request.Header.Set("Content-Type", contentTypeBinary)
	} else {
		request.Header.Set("Content-Type", contentTypeText)
	}
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// Close drops idle keep-alive connections.
func (t *HTTPTransport) Close() error {
	if t.Client != nil {
		t.Client.CloseIdleConnections()
	}
	return nil
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
