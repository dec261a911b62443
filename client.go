// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// RequestEvent is passed to the OnRequest hook before any I/O.
type RequestEvent struct {
	Descriptor Descriptor
	Request    interface{}

	prevented bool
}

// Prevent vetoes the call. It only has effect while the hook is running.
func (e *RequestEvent) Prevent() { e.prevented = true }

func (e *RequestEvent) Prevented() bool { return e.prevented }

// ResponseEvent is passed to the OnResponse hook.
type ResponseEvent struct {
	Descriptor Descriptor
	Request    interface{}
	Response   interface{}
}

// ErrorEvent is passed to the OnError hook.
type ErrorEvent struct {
	Descriptor Descriptor
	Request    interface{}
	Err        *Error
}

// Client calls API endpoints described by protocol descriptors. It is
// safe for concurrent use; each call is independent.
type Client struct {
	config    Config
	transport Transport
	logger    *zap.Logger
	metrics   *metrics

	textEncoder   EncodeFunc
	textDecoder   DecodeFunc
	binaryEncoder EncodeFunc
	binaryDecoder DecodeFunc

	hooksMu    sync.RWMutex
	onRequest  func(*RequestEvent)
	onResponse func(*ResponseEvent)
	onError    func(*ErrorEvent)
}

// New creates a client from cfg merged onto DefaultConfig.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	text, _ := lookupCodec(cfg.TextCodec)
	binary, _ := lookupCodec(cfg.BinaryCodec)
	c := &Client{
		config:        cfg,
		transport:     o.transport,
		logger:        o.logger,
		textEncoder:   text.Encode,
		textDecoder:   text.Decode,
		binaryEncoder: binary.Encode,
		binaryDecoder: binary.Decode,
	}
	if o.textEncoder != nil {
		c.textEncoder = o.textEncoder
	}
	if o.textDecoder != nil {
		c.textDecoder = o.textDecoder
	}
	if o.binaryEncoder != nil {
		c.binaryEncoder = o.binaryEncoder
	}
	if o.binaryDecoder != nil {
		c.binaryDecoder = o.binaryDecoder
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
		if cfg.ShowDebugLog {
			if l, err := zap.NewDevelopment(); err == nil {
				c.logger = l
			}
		}
	}

	m, err := newMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	c.metrics = m

	if c.transport == nil {
		t, err := newTransport(cfg)
		if err != nil {
			return nil, err
		}
		c.transport = t
	}
	return c, nil
}

// Config returns the normalized configuration the client was built with.
func (c *Client) Config() Config {
	return c.config
}

// OnRequest sets the hook run before each call. nil clears it.
func (c *Client) OnRequest(fn func(*RequestEvent)) {
	c.hooksMu.Lock()
	c.onRequest = fn
	c.hooksMu.Unlock()
}

// OnResponse sets the hook run after each successful call. nil clears it.
func (c *Client) OnResponse(fn func(*ResponseEvent)) {
	c.hooksMu.Lock()
	c.onResponse = fn
	c.hooksMu.Unlock()
}

// OnError sets the hook run after each rejected call. nil clears it.
func (c *Client) OnError(fn func(*ErrorEvent)) {
	c.hooksMu.Lock()
	c.onError = fn
	c.hooksMu.Unlock()
}

// Call makes a call and waits for it to finish.
func (c *Client) Call(ctx context.Context, d Descriptor, req, reply interface{}) error {
	call, err := c.CallAPI(ctx, d, req, reply)
	if err != nil {
		return err
	}
	return call.Wait()
}

// CallAPI starts a call to the endpoint described by d and returns
// without waiting. The response is decoded into reply when it is
// non-nil. A descriptor outside the configured protocol path is reported
// as an error before any call is created. A nil req is sent as an empty
// object.
func (c *Client) CallAPI(ctx context.Context, d Descriptor, req, reply interface{}) (*Call, error) {
	sn := requestSN.next()
	path, err := ResolvePath(d, c.config.ProtocolPath)
	if err != nil {
		c.logger.Warn("protocol path mismatch",
			zap.String("protocol", d.Name()),
			zap.String("filename", d.Filename()),
			zap.String("protocol_path", c.config.ProtocolPath),
		)
		return nil, err
	}
	if req == nil {
		req = map[string]interface{}{}
	}

	call := newCall()
	call.SN = sn
	call.ID = uuid.NewString()
	call.Path = path
	call.Descriptor = d
	call.Request = req
	call.Reply = reply
	call.URL = c.config.ServerURL + path
	if c.config.HideAPIPath {
		call.URL = c.config.ServerURL
	}
	start := time.Now()

	c.hooksMu.RLock()
	onRequest := c.onRequest
	c.hooksMu.RUnlock()
	if onRequest != nil {
		e := &RequestEvent{Descriptor: d, Request: req}
		onRequest(e)
		if e.prevented {
			call.settle(preventedError())
			call.finish()
			c.metrics.observe(outcomePrevented, start)
			return call, nil
		}
	}

	c.debug("api request", call, zap.Any("req", req))

	callCtx, cancel := context.WithCancel(ctx)
	call.abort = cancel
	call.onCancel = func() {
		c.debug("api cancel", call)
		c.metrics.observe(outcomeCanceled, start)
	}
	call.watch(ctx)

	go c.run(callCtx, call, start)
	return call, nil
}

// Close releases the transport's resources, if it holds any.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Client) run(ctx context.Context, call *Call, start time.Time) {
	body, err := c.encode(call)
	if err != nil {
		c.reject(call, unresolvableError(err), start)
		return
	}

	data, err := c.transport.RoundTrip(ctx, &TransportRequest{
		URL:    call.URL,
		Path:   c.visiblePath(call),
		Body:   body,
		Binary: c.config.BinaryTransport,
		ID:     call.ID,
	})
	if err != nil {
		if ctx.Err() != nil {
			call.cancel(ctx.Err())
			return
		}
		var apiErr *Error
		if errors.As(err, &apiErr) {
			c.reject(call, apiErr, start)
			return
		}
		c.logger.Warn("request failed",
			zap.Uint64("sn", call.SN),
			zap.String("url", call.URL),
			zap.Error(err),
		)
		c.reject(call, networkError(err), start)
		return
	}
	c.resolve(call, data, start)
}

func (c *Client) visiblePath(call *Call) string {
	if c.config.HideAPIPath {
		return ""
	}
	return call.Path
}

func (c *Client) encode(call *Call) ([]byte, error) {
	req := call.Request
	if c.config.HideAPIPath {
		var err error
		if req, err = withAPIPath(req, call.Path); err != nil {
			return nil, err
		}
	}
	if c.config.BinaryTransport {
		return c.binaryEncoder(req)
	}
	return c.textEncoder(req)
}

func (c *Client) decode(data []byte, v interface{}) error {
	if c.config.BinaryTransport {
		return c.binaryDecoder(data, v)
	}
	return c.textDecoder(data, v)
}

// resolve decodes the response once and rejects the call if the decoded
// value carries an errmsg.
func (c *Client) resolve(call *Call, data []byte, start time.Time) {
	var (
		status *Error
		err    error
	)
	if m, ok := call.Reply.(proto.Message); ok {
		if err = c.decode(data, m); err == nil {
			status = protoStatus(m)
		}
	} else {
		// Everything else is decoded as a JSON document, which carries
		// both the status fields and the reply.
		var doc json.RawMessage
		if err = c.decode(data, &doc); err == nil {
			status, err = documentStatus(doc, call.Reply)
		}
	}
	if err != nil {
		c.reject(call, unresolvableError(err), start)
		return
	}
	if status != nil {
		c.reject(call, status, start)
		return
	}

	if !call.settle(nil) {
		return
	}
	c.debug("api response", call, zap.Any("res", call.Reply))
	c.metrics.observe(outcomeOK, start)

	c.hooksMu.RLock()
	onResponse := c.onResponse
	c.hooksMu.RUnlock()
	if onResponse != nil {
		onResponse(&ResponseEvent{
			Descriptor: call.Descriptor,
			Request:    call.Request,
			Response:   call.Reply,
		})
	}
	call.finish()
}

func (c *Client) reject(call *Call, e *Error, start time.Time) {
	if !call.settle(e) {
		return
	}
	c.debug("api error", call, zap.Error(e))
	c.metrics.observe(outcomeError, start)

	c.hooksMu.RLock()
	onError := c.onError
	c.hooksMu.RUnlock()
	if onError != nil {
		onError(&ErrorEvent{
			Descriptor: call.Descriptor,
			Request:    call.Request,
			Err:        e,
		})
	}
	call.finish()
}

func (c *Client) debug(msg string, call *Call, fields ...zap.Field) {
	if !c.config.ShowDebugLog {
		return
	}
	c.logger.Debug(msg, append([]zap.Field{
		zap.Uint64("sn", call.SN),
		zap.String("id", call.ID),
		zap.String("url", call.Path),
	}, fields...)...)
}

// kindOf renders a server errinfo value as an error kind.
func kindOf(info interface{}) string {
	switch v := info.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
