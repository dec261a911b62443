// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ptlrpc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *sequence) reset() {
	s.last.Store(0)
}

func echoTransport() Transport {
	return TransportFunc(func(ctx context.Context, req *TransportRequest) ([]byte, error) {
		return []byte(`{"reply":"ok"}`), nil
	})
}

func TestSequenceAcrossClients(t *testing.T) {
	requestSN.reset()
	assert.Equal(t, uint64(0), LastRequestSN())

	var clients []*Client
	for i := 0; i < 3; i++ {
		c, err := New(Config{ServerURL: "http://host/api"}, WithTransport(echoTransport()))
		require.NoError(t, err)
		clients = append(clients, c)
	}

	var last uint64
	for i := 0; i < 9; i++ {
		call, err := clients[i%3].CallAPI(context.Background(), ptlHelloWorld, nil, nil)
		require.NoError(t, err)
		require.NoError(t, call.Wait())
		assert.Greater(t, call.SN, last)
		last = call.SN
	}
	assert.Equal(t, uint64(9), LastRequestSN())
}

func TestSequenceConcurrent(t *testing.T) {
	c, err := New(Config{ServerURL: "http://host/api"}, WithTransport(echoTransport()))
	require.NoError(t, err)

	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[uint64]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call, err := c.CallAPI(context.Background(), ptlHelloWorld, nil, nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			assert.False(t, seen[call.SN], "duplicate sn %d", call.SN)
			seen[call.SN] = true
			mu.Unlock()
			assert.NoError(t, call.Wait())
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
