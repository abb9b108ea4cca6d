// Package compiler turns compilation boundaries into cached, executable
// compiled subgraphs.
//
// A boundary is analyzed into a Manifest (members, internal wires, crossing
// ports). The canonical manifest is hashed into the cache key, so any change
// to membership, node configuration, wiring or identifier yields a new key.
// Lookup goes memory cache, then the durable store when one is attached, then
// synthesis.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/nodegraph/internal/boundary"
	"github.com/roach88/nodegraph/internal/graph"
)

// ManifestStore persists manifests by cache key. Implemented by store.Store.
type ManifestStore interface {
	LoadManifest(ctx context.Context, key string) (payload []byte, found bool, err error)
	SaveManifest(ctx context.Context, key, identifier string, payload []byte) error
}

// Compiler synthesizes and caches compiled subgraphs.
type Compiler struct {
	cache     *Cache
	cacheSize int
	store     ManifestStore
	logger    *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithStore attaches a durable manifest store.
func WithStore(s ManifestStore) Option {
	return func(c *Compiler) {
		c.store = s
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithCacheSize bounds the in-memory cache. Default: DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(c *Compiler) {
		c.cacheSize = n
	}
}

// New creates a Compiler.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		cacheSize: DefaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	cache, err := NewCache(c.cacheSize)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

// Cache returns the in-memory artifact cache.
func (c *Compiler) Cache() *Cache {
	return c.cache
}

// Compile returns the compiled subgraph for a condensed boundary unit.
//
// A memory hit returns the identical *CompiledSubgraph as the previous call
// when resolve yields the same node instances; otherwise the cached manifest
// is linked again against resolve. A store hit rebuilds the entry point once
// the stored payload matches. Otherwise a new artifact is synthesized, cached,
// and saved to the store if attached.
func (c *Compiler) Compile(ctx context.Context, unit boundary.Unit, snap *graph.Snapshot, resolve Resolver) (*CompiledSubgraph, error) {
	m, err := BuildManifest(unit, snap, resolve)
	if err != nil {
		return nil, err
	}
	payload, err := m.Canonical()
	if err != nil {
		return nil, fmt.Errorf("compile boundary %s: %w", unit.Boundary, err)
	}
	key := Key(payload)

	if cs, ok := c.cache.get(key); ok {
		if cs.LinkedTo(m, resolve) {
			c.logger.Debug("compiled subgraph cache hit", "boundary", unit.Boundary, "key", key)
			return cs, nil
		}
		// Same manifest, different node instances: another scheduler, or a
		// member registered again since the artifact was linked.
		relinked, err := link(m, key, cs.Payload, resolve)
		if err != nil {
			return nil, err
		}
		c.cache.relink(relinked)
		c.logger.Debug("compiled subgraph relinked", "boundary", unit.Boundary, "key", key)
		return relinked, nil
	}

	if c.store != nil {
		cs, err := c.load(ctx, m, key, payload, resolve)
		if err != nil {
			return nil, fmt.Errorf("compile boundary %s: %w", unit.Boundary, err)
		}
		if cs != nil {
			c.cache.put(cs, true)
			c.logger.Debug("compiled subgraph loaded from store", "boundary", unit.Boundary, "key", key)
			return cs, nil
		}
	}

	cs, err := link(m, key, payload, resolve)
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.SaveManifest(ctx, key, unit.Boundary, payload); err != nil {
			return nil, fmt.Errorf("compile boundary %s: %w", unit.Boundary, err)
		}
	}
	c.cache.put(cs, false)
	c.logger.Info("compiled subgraph",
		"boundary", unit.Boundary,
		"key", key,
		"members", len(cs.Members),
		"inputs", len(cs.Inputs),
		"outputs", len(cs.Outputs))
	return cs, nil
}

// load rehydrates an artifact from the store. Returns nil, nil when the key
// is absent or the stored payload does not match. The entry point is linked
// from m, not from decoded payload refs, which are NFC-normalized.
func (c *Compiler) load(ctx context.Context, m *Manifest, key string, payload []byte, resolve Resolver) (*CompiledSubgraph, error) {
	stored, found, err := c.store.LoadManifest(ctx, key)
	if err != nil || !found {
		return nil, err
	}
	if !bytes.Equal(stored, payload) {
		c.logger.Warn("stored manifest does not match its key, recompiling", "key", key)
		return nil, nil
	}
	return link(m, key, stored, resolve)
}
