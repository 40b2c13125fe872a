// Package registry provides transport.Environment implementations backed by
// constructor tables.
package registry

import (
	"sync"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/longpolling"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/sse"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/websocket"
)

// Constructor builds a transport of one kind.
type Constructor func(cfg transport.Config) transport.Transport

// Registry is an Environment that supports exactly the registered kinds.
type Registry struct {
	mu           sync.RWMutex
	constructors map[transport.Kind]Constructor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{constructors: make(map[transport.Kind]Constructor)}
}

// Register adds or replaces the constructor for kind, which must be a single kind.
func (r *Registry) Register(kind transport.Kind, c Constructor) error {
	if len(kind.Kinds()) != 1 {
		return rterrors.InvalidArgument("kind", kind.String(), "must name exactly one transport")
	}
	if c == nil {
		return rterrors.InvalidArgument("constructor", nil, "must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[kind] = c
	return nil
}

// Unregister removes kind, making it unavailable.
func (r *Registry) Unregister(kind transport.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.constructors, kind)
}

// Supports reports whether kind has a constructor
func (r *Registry) Supports(kind transport.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// New constructs a transport of kind
func (r *Registry) New(kind transport.Kind, cfg transport.Config) (transport.Transport, error) {
	r.mu.RLock()
	c, ok := r.constructors[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, rterrors.TransportUnavailable(kind.String())
	}
	return c(cfg), nil
}

// Only returns a registry holding the default constructors for kinds.
func Only(kinds transport.Kind) *Registry {
	r := New()
	for _, k := range kinds.Kinds() {
		_ = r.Register(k, defaultConstructors[k])
	}
	return r
}

var defaultConstructors = map[transport.Kind]Constructor{
	transport.WebSockets: func(cfg transport.Config) transport.Transport {
		return websocket.New(cfg)
	},
	transport.ServerSentEvents: func(cfg transport.Config) transport.Transport {
		return sse.New(cfg)
	},
	transport.LongPolling: func(cfg transport.Config) transport.Transport {
		return longpolling.New(cfg)
	},
}

// Default supports every built-in transport.
var Default transport.Environment = Only(transport.All)
