// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config holds the serializable client settings.
type Config struct {
	ServerURL       string `toml:"server_url"`
	ProtocolPath    string `toml:"protocol_path"`
	BinaryTransport bool   `toml:"binary_transport"`
	// HideAPIPath posts every call to ServerURL and carries the endpoint
	// path inside the request body instead.
	HideAPIPath  bool `toml:"hide_api_path"`
	ShowDebugLog bool `toml:"show_debug_log"`

	Transport   string `toml:"transport"`
	TextCodec   string `toml:"text_codec"`
	BinaryCodec string `toml:"binary_codec"`
	// Service names the remote service for transports that address
	// methods rather than URLs (jsonrpc, grpc).
	Service string `toml:"service"`
	// Timeout bounds a single transport round trip. Zero means none.
	Timeout Duration `toml:"timeout"`
}

// Duration is a time.Duration that reads from TOML strings like "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the settings every Config is merged onto.
func DefaultConfig() Config {
	return Config{
		Transport:   DefaultTransport,
		TextCodec:   CodecJSON,
		BinaryCodec: CodecProto,
		Service:     "Gateway",
	}
}

// LoadConfig reads a TOML file and merges it onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first problem that would stop a client from being
// built with c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("config: server_url required")
	}
	// tcp and grpc also take a bare host:port.
	if c.Transport == TransportHTTP || c.Transport == TransportJSONRPC {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("config: invalid server_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("config: server_url %q needs an http or https scheme", c.ServerURL)
		}
	}
	if !HasTransport(c.Transport) {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if _, ok := lookupCodec(c.TextCodec); !ok {
		return fmt.Errorf("config: unknown text_codec %q", c.TextCodec)
	}
	if _, ok := lookupCodec(c.BinaryCodec); !ok {
		return fmt.Errorf("config: unknown binary_codec %q", c.BinaryCodec)
	}
	if c.Timeout.Duration < 0 {
		return errors.New("config: timeout must not be negative")
	}
	return nil
}

func (c *Config) normalize() {
	c.ServerURL = strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	c.ProtocolPath = normalizeProtocolPath(c.ProtocolPath)
	def := DefaultConfig()
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.TextCodec == "" {
		c.TextCodec = def.TextCodec
	}
	if c.BinaryCodec == "" {
		c.BinaryCodec = def.BinaryCodec
	}
	if c.Service == "" {
		c.Service = def.Service
	}
}

// Option configures the collaborators a Config cannot describe.
type Option func(*options)

type options struct {
	textEncoder   EncodeFunc
	textDecoder   DecodeFunc
	binaryEncoder EncodeFunc
	binaryDecoder DecodeFunc
	transport     Transport
	logger        *zap.Logger
	registerer    prometheus.Registerer
}

// WithTextCodec replaces both text-mode encoder and decoder.
func WithTextCodec(c Codec) Option {
	return func(o *options) {
		o.textEncoder = c.Encode
		o.textDecoder = c.Decode
	}
}

// WithBinaryCodec replaces both binary-mode encoder and decoder.
func WithBinaryCodec(c Codec) Option {
	return func(o *options) {
		o.binaryEncoder = c.Encode
		o.binaryDecoder = c.Decode
	}
}

func WithTextEncoder(fn EncodeFunc) Option {
	return func(o *options) { o.textEncoder = fn }
}

func WithTextDecoder(fn DecodeFunc) Option {
	return func(o *options) { o.textDecoder = fn }
}

func WithBinaryEncoder(fn EncodeFunc) Option {
	return func(o *options) { o.binaryEncoder = fn }
}

func WithBinaryDecoder(fn DecodeFunc) Option {
	return func(o *options) { o.binaryDecoder = fn }
}

// WithTransport uses t instead of the transport named by Config.Transport.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger sets the logger for warnings and, with ShowDebugLog, per-call
// debug lines.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics registers call metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}
