// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrFrameClosed      = errors.New("frame: connection closed")
	ErrFrameInvalidResp = errors.New("frame: invalid response")
	ErrFrameTooLong     = errors.New("frame: too long")
)

const (
	maxFrameLen = 64 * 1024 * 1024
	// Paths and error kinds carry a 2-byte length.
	maxFieldLen = math.MaxUint16
)

// FrameType identifies a frame on the wire.
type FrameType uint8

const (
	FrameRequest  FrameType = 0x01
	FrameResponse FrameType = 0x02
	FrameError    FrameType = 0x03
)

// FrameConn is a client connection speaking the length-prefixed frame
// protocol. Requests are multiplexed by ID; responses may arrive in any
// order.
//
//	request:  [4 len][1 type][4 id][2 pathLen][path][body]
//	response: [4 len][1 type][4 id][body]
//	error:    [4 len][1 type][4 id][2 kindLen][kind][message]
type FrameConn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // id -> chan frameResult
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

type frameResult struct {
	data []byte
	err  error
}

// DialFrame connects to a frame server.
func DialFrame(ctx context.Context, addr string) (*FrameConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("frame dial: %w", err)
	}

	fc := &FrameConn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	go fc.readLoop()
	return fc, nil
}

// Call sends body to the endpoint at path and waits for the reply.
// Endpoint failures come back as *Error.
func (f *FrameConn) Call(ctx context.Context, path string, body []byte) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrFrameClosed
	}

	if len(path) > maxFieldLen {
		return nil, fmt.Errorf("%w: path is %d bytes", ErrFrameTooLong, len(path))
	}
	if n := 1 + 4 + 2 + len(path) + len(body); n > maxFrameLen {
		return nil, fmt.Errorf("%w: request is %d bytes", ErrFrameTooLong, n)
	}

	id := f.nextID.Add(1)
	respCh := make(chan frameResult, 1)
	f.pending.Store(id, respCh)
	defer f.pending.Delete(id)

	pathBytes := []byte(path)
	msgLen := 1 + 4 + 2 + len(pathBytes) + len(body)

	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(FrameRequest)
	binary.BigEndian.PutUint32(buf[5:9], id)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(pathBytes)))
	copy(buf[11:], pathBytes)
	copy(buf[11+len(pathBytes):], body)

	f.writeMu.Lock()
	_, err := f.conn.Write(buf)
	f.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("frame write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		return resp.data, resp.err
	case <-f.readDone:
		return nil, ErrFrameClosed
	}
}

func (f *FrameConn) readLoop() {
	defer close(f.readDone)
	defer f.Close()

	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(f.conn, header); err != nil {
			return
		}

		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > maxFrameLen {
			return
		}

		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(f.conn, msg); err != nil {
			return
		}

		if len(msg) < 5 {
			continue
		}

		id := binary.BigEndian.Uint32(msg[1:5])
		payload := msg[5:]

		ch, ok := f.pending.Load(id)
		if !ok {
			continue
		}
		respCh := ch.(chan frameResult)
		switch FrameType(msg[0]) {
		case FrameResponse:
			respCh <- frameResult{data: payload}
		case FrameError:
			respCh <- frameResult{err: decodeFrameError(payload)}
		}
	}
}

// Close closes the connection
func (f *FrameConn) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.conn.Close()
}

func encodeFrameError(err error) ([]byte, error) {
	kind := KindUnhandledAPIErr
	msg := err.Error()
	var apiErr *Error
	if errors.As(err, &apiErr) {
		kind, msg = apiErr.Kind, apiErr.Message
	}
	if len(kind) > maxFieldLen {
		return nil, fmt.Errorf("%w: error kind is %d bytes", ErrFrameTooLong, len(kind))
	}
	out := make([]byte, 2+len(kind)+len(msg))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(kind)))
	copy(out[2:], kind)
	copy(out[2+len(kind):], msg)
	return out, nil
}

func decodeFrameError(payload []byte) error {
	if len(payload) < 2 {
		return ErrFrameInvalidResp
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if len(payload) < 2+n {
		return ErrFrameInvalidResp
	}
	return NewError(string(payload[2+n:]), string(payload[2:2+n]))
}

// FrameTransport is the "tcp" transport. It dials lazily and redials
// after the connection drops.
type FrameTransport struct {
	addr string

	mu   sync.Mutex
	conn *FrameConn
}

func NewFrameTransport(addr string) *FrameTransport {
	return &FrameTransport{addr: addr}
}

func newFrameTransportFromConfig(cfg Config) (Transport, error) {
	return NewFrameTransport(hostOf(cfg.ServerURL)), nil
}

func (t *FrameTransport) RoundTrip(ctx context.Context, req *TransportRequest) ([]byte, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn.Call(ctx, req.Path, req.Body)
}

func (t *FrameTransport) connect(ctx context.Context) (*FrameConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil && !t.conn.closed.Load() {
		return t.conn, nil
	}
	conn, err := DialFrame(ctx, t.addr)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	return conn, nil
}

func (t *FrameTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// FrameHandler serves frame requests.
type FrameHandler interface {
	ServeFrame(ctx context.Context, path string, body []byte) ([]byte, error)
}

// FrameHandlerFunc is a function adapter for FrameHandler
type FrameHandlerFunc func(ctx context.Context, path string, body []byte) ([]byte, error)

func (fn FrameHandlerFunc) ServeFrame(ctx context.Context, path string, body []byte) ([]byte, error) {
	return fn(ctx, path, body)
}

// FrameMux routes requests by endpoint path. Unknown paths fail with
// PTL_NOT_FOUND.
type FrameMux struct {
	mu       sync.RWMutex
	handlers map[string]FrameHandler
}

func NewFrameMux() *FrameMux {
	return &FrameMux{handlers: make(map[string]FrameHandler)}
}

func (m *FrameMux) Handle(path string, h FrameHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

func (m *FrameMux) ServeFrame(ctx context.Context, path string, body []byte) ([]byte, error) {
	m.mu.RLock()
	h, ok := m.handlers[path]
	m.mu.RUnlock()
	if !ok {
		return nil, NewError(fmt.Sprintf("Invalid API path: %s", path), KindPtlNotFound)
	}
	return h.ServeFrame(ctx, path, body)
}

// FrameServer accepts frame connections and dispatches each request to
// its handler on its own goroutine.
type FrameServer struct {
	listener net.Listener
	handler  FrameHandler
	conns    sync.Map
	closed   atomic.Bool
}

func NewFrameServer(listener net.Listener, handler FrameHandler) *FrameServer {
	return &FrameServer{
		listener: listener,
		handler:  handler,
	}
}

// Serve accepts connections until Close is called.
func (s *FrameServer) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *FrameServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	var writeMu sync.Mutex
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		msgLen := binary.BigEndian.Uint32(header)
		if msgLen == 0 || msgLen > maxFrameLen {
			return
		}

		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, msg); err != nil {
			return
		}

		if len(msg) < 7 || FrameType(msg[0]) != FrameRequest {
			continue
		}
		id := binary.BigEndian.Uint32(msg[1:5])
		pathLen := binary.BigEndian.Uint16(msg[5:7])
		if len(msg) < 7+int(pathLen) {
			continue
		}
		path := string(msg[7 : 7+pathLen])
		body := msg[7+pathLen:]

		go func() {
			resp, err := s.handler.ServeFrame(ctx, path, body)
			writeMu.Lock()
			defer writeMu.Unlock()
			s.sendResponse(conn, id, resp, err)
		}()
	}
}

func (s *FrameServer) sendResponse(conn net.Conn, id uint32, data []byte, err error) {
	frameType := FrameResponse
	payload := data
	if err != nil {
		frameType = FrameError
		var encErr error
		if payload, encErr = encodeFrameError(err); encErr != nil {
			payload, _ = encodeFrameError(NewError(encErr.Error(), KindUnhandledAPIErr))
		}
	}

	msgLen := 1 + 4 + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(frameType)
	binary.BigEndian.PutUint32(buf[5:9], id)
	copy(buf[9:], payload)

	_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	_, _ = conn.Write(buf)
}

// Close stops accepting and drops every open connection.
func (s *FrameServer) Close() error {
	s.closed.Store(true)
	s.conns.Range(func(key, _ interface{}) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *FrameServer) Addr() net.Addr {
	return s.listener.Addr()
}
