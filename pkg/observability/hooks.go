// Package observability lets outer layers watch the engine without the
// engine depending on a metrics backend.
//
// Hook interfaces have no-op defaults. main registers real implementations
// once at startup, and the pipeline, cache and server call the registered
// hooks:
//
//	observability.SetEngineHooks(prom)
//	...
//	observability.Engine().OnStepComplete(ctx, index, dir, affected, elapsed, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// EngineHooks receives events from dataset loading, step handling and
// rendering.
type EngineHooks interface {
	OnLoad(ctx context.Context, members, territories, steps int, duration time.Duration, err error)
	OnStepComplete(ctx context.Context, index int, direction string, affected int, duration time.Duration, err error)
	OnRenderComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
}

// CacheHooks receives events from cache lookups.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// ServerHooks receives events from the HTTP and WebSocket server.
type ServerHooks interface {
	OnResponse(ctx context.Context, method, route string, status int, duration time.Duration)
	OnSessions(ctx context.Context, active int)
	OnStreamMessage(ctx context.Context, kind string)
}

// NoopEngineHooks ignores every event.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnLoad(context.Context, int, int, int, time.Duration, error) {}
func (NoopEngineHooks) OnStepComplete(context.Context, int, string, int, time.Duration, error) {
}
func (NoopEngineHooks) OnRenderComplete(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks ignores every event.
type NoopServerHooks struct{}

func (NoopServerHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopServerHooks) OnSessions(context.Context, int)                                {}
func (NoopServerHooks) OnStreamMessage(context.Context, string)                        {}

var (
	engineHooks EngineHooks = NoopEngineHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	serverHooks ServerHooks = NoopServerHooks{}
	hooksMu     sync.RWMutex
)

// SetEngineHooks registers engine hooks. nil is ignored.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetCacheHooks registers cache hooks. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetServerHooks registers server hooks. nil is ignored.
func SetServerHooks(h ServerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serverHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Server returns the registered server hooks.
func Server() ServerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serverHooks
}

// Reset restores the no-op hooks.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	cacheHooks = NoopCacheHooks{}
	serverHooks = NoopServerHooks{}
}
