// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fastcgi

import (
	"context"
	"sync"
	"time"
)

// idleConn pairs a pooled Client with the time it was returned to the
// pool, so idle_timeout can be enforced on checkout.
type idleConn struct {
	client   *Client
	idleSince time.Time
}

// Pool is a bounded FastCGI connection pool, adapted from Caddy's
// persistentDialer and extended with idle and lifetime limits (spec
// §4.3.4).
type Pool struct {
	mu      sync.Mutex
	idle    []idleConn
	network string
	address string

	MinIdle          int
	MaxSize          int
	IdleTimeout      time.Duration
	ConnectTimeout   time.Duration
	MaxLifetime      time.Duration
}

// NewPool constructs a Pool dialing network/address on demand.
func NewPool(network, address string) *Pool {
	return &Pool{
		network:        network,
		address:        address,
		MaxSize:        8,
		IdleTimeout:    60 * time.Second,
		ConnectTimeout: 5 * time.Second,
		MaxLifetime:    10 * time.Minute,
	}
}

// Get returns a pooled connection if one is live and unexpired, or
// dials a fresh one bounded by ConnectTimeout.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	now := time.Now()
	p.mu.Lock()
	for len(p.idle) > 0 {
		last := len(p.idle) - 1
		ic := p.idle[last]
		p.idle = p.idle[:last]

		if p.IdleTimeout > 0 && now.Sub(ic.idleSince) > p.IdleTimeout {
			ic.client.Close()
			continue
		}
		if p.MaxLifetime > 0 && now.Sub(ic.client.dialedAt) > p.MaxLifetime {
			ic.client.Close()
			continue
		}
		p.mu.Unlock()
		return ic.client, nil
	}
	p.mu.Unlock()

	dialCtx := ctx
	if p.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.ConnectTimeout)
		defer cancel()
	}
	return Dial(dialCtx, p.network, p.address)
}

// Put returns a connection to the pool for reuse, or closes it if the
// pool is at MaxSize. A connection involved in an error (bad param) is
// expected to go through Discard instead, per spec §5's "returned
// after error is dropped rather than reused" rule.
func (p *Pool) Put(c *Client) {
	c.useCount++

	p.mu.Lock()
	if len(p.idle) >= p.MaxSize {
		p.mu.Unlock()
		c.Close()
		return
	}
	p.idle = append(p.idle, idleConn{client: c, idleSince: time.Now()})
	p.mu.Unlock()
}

// Discard closes a connection without returning it to the pool.
func (p *Pool) Discard(c *Client) {
	c.Close()
}

// Warm dials up to MinIdle connections ahead of first use.
func (p *Pool) Warm(ctx context.Context) error {
	for i := 0; i < p.MinIdle; i++ {
		c, err := p.Get(ctx)
		if err != nil {
			return err
		}
		p.Put(c)
	}
	return nil
}

// Close drains and closes every idle connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ic := range p.idle {
		ic.client.Close()
	}
	p.idle = nil
}
