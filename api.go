package cellar

import (
	"time"

	c "github.com/go-cellar/cellar/codec"
	pr "github.com/go-cellar/cellar/provider"
)

// Codec is the pluggable serializer, re-exported so callers can name it
// without importing the codec package.
type Codec[V any] = c.Codec[V]

// Provider is the optional in-memory byte layer, re-exported from provider.
type Provider = pr.Provider

// Options tune the store. Only Resolver is required; others have sensible
// defaults.
type Options struct {
	// Required
	Resolver Resolver // maps Root domains to base directories

	Logger Logger      // if nil, NopLogger is used
	Hooks  Hooks       // if nil, NopHooks is used
	Mem    pr.Provider // optional read-through byte cache over file reads
	MemTTL time.Duration
	// Clock supplies "now" for cell staleness checks; nil => time.Now.
	// Injected so tests can simulate elapsed time deterministically.
	Clock func() time.Time
}

// New builds a Store from opts.
func New(opts Options) (*Store, error) {
	return newStore(opts)
}
