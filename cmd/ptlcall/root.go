// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/ptlrpc"
)

type callFlags struct {
	configFile   string
	serverURL    string
	protocolPath string
	transport    string
	binary       bool
	hidePath     bool
	debug        bool
	data         string
	logFile      string
	timeout      time.Duration
}

func newRootCmd() *cobra.Command {
	f := &callFlags{}
	cmd := &cobra.Command{
		Use:   "ptlcall [flags] <protocol-file>",
		Short: "Call an API endpoint by its protocol file",
		Long: `ptlcall resolves the endpoint path of a protocol file such as
shared/protocols/user/PtlLogin.ts, posts --data to it and prints the reply.

Settings come from --config (TOML) and are overridden by flags.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runCall(cmd, f, args[0])
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "TOML config file")
	flags.StringVarP(&f.serverURL, "server", "s", "", "server URL")
	flags.StringVarP(&f.protocolPath, "protocol-path", "p", "", "root directory of the protocol files")
	flags.StringVarP(&f.transport, "transport", "t", "", fmt.Sprintf("transport %v", ptlrpc.AvailableTransports()))
	flags.BoolVar(&f.binary, "binary", false, "use the binary codec")
	flags.BoolVar(&f.hidePath, "hide-path", false, "carry the endpoint path in the request body")
	flags.BoolVarP(&f.debug, "debug", "v", false, "log each call")
	flags.StringVarP(&f.data, "data", "d", "{}", "request body as JSON")
	flags.StringVar(&f.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	flags.DurationVar(&f.timeout, "timeout", 30*time.Second, "call timeout")
	return cmd
}

// buildConfig loads the config file, if any, and applies explicitly set
// flags on top.
func buildConfig(cmd *cobra.Command, f *callFlags) (ptlrpc.Config, error) {
	cfg := ptlrpc.DefaultConfig()
	if f.configFile != "" {
		loaded, err := ptlrpc.LoadConfig(f.configFile)
		if err != nil {
			return ptlrpc.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = f.serverURL
	}
	if flags.Changed("protocol-path") {
		cfg.ProtocolPath = f.protocolPath
	}
	if flags.Changed("transport") {
		cfg.Transport = f.transport
	}
	if flags.Changed("binary") {
		cfg.BinaryTransport = f.binary
	}
	if flags.Changed("hide-path") {
		cfg.HideAPIPath = f.hidePath
	}
	if flags.Changed("debug") {
		cfg.ShowDebugLog = f.debug
	}
	return cfg, nil
}

func runCall(cmd *cobra.Command, f *callFlags, filename string) error {
	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}

	var req map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader([]byte(f.data)))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("invalid --data: %w", err)
	}

	logger := newLogger(f.logFile, cfg.ShowDebugLog, cmd.ErrOrStderr())
	defer logger.Sync() //nolint:errcheck

	client, err := ptlrpc.New(cfg, ptlrpc.WithLogger(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var reply map[string]interface{}
	if err := client.Call(ctx, ptlrpc.NewProtocol(filename), req, &reply); err != nil {
		var apiErr *ptlrpc.Error
		if errors.As(err, &apiErr) && apiErr.Kind != "" {
			return fmt.Errorf("%s: %s", apiErr.Kind, apiErr.Message)
		}
		return err
	}

	out, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
