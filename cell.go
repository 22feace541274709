package cellar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-cellar/cellar/codec"
	"github.com/go-cellar/cellar/internal/meta"
)

// Forever is the lifetime sentinel for cells that never go stale.
const Forever = meta.Forever

const metaSuffix = ".meta"

// CellOption tunes Bind.
type CellOption func(*cellConfig)

type cellConfig struct {
	root   Root
	strict bool
}

// InRoot places the cell's payload and sidecar under the given root instead
// of the default Caches domain.
func InRoot(r Root) CellOption {
	return func(cfg *cellConfig) { cfg.root = r }
}

// Strict makes Get and Set surface persist failures instead of swallowing
// them. The legacy-compatible default is lenient: cell reads and writes
// never fail the caller, and dropped persists are reported through the
// store's Logger and Hooks only.
func Strict() CellOption {
	return func(cfg *cellConfig) { cfg.strict = true }
}

// Cell is a store-backed value with a lifetime. Staleness is evaluated on
// every read against the sidecar metadata record, never maintained
// continuously: a cell is Fresh while now-updatedAt <= lifetime and Stale
// after, at which point reads yield the bound default and re-seed the store
// with it.
type Cell[V any] struct {
	st     *Store
	cod    codec.Codec[V]
	key    string
	def    V
	life   time.Duration
	loc    Location
	meta   Location
	strict bool
}

// Bind attaches a key to a default value and a lifetime, returning the
// explicit read/write handle. If a metadata record already exists for the
// key with a different lifetime, only its lifetime field is overwritten;
// createdAt and updatedAt are untouched, so a key's TTL policy can change
// across process runs without losing history.
func Bind[V any](st *Store, cod codec.Codec[V], key string, def V, lifetime time.Duration, opts ...CellOption) (*Cell[V], error) {
	if st == nil {
		return nil, errors.New("cellar: store is required")
	}
	if cod == nil {
		return nil, errors.New("cellar: codec is required")
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("cellar: invalid cell key %q", key)
	}
	if lifetime < 0 && lifetime != Forever {
		return nil, fmt.Errorf("cellar: invalid lifetime %v", lifetime)
	}

	cfg := cellConfig{root: Caches}
	for _, o := range opts {
		o(&cfg)
	}
	cell := &Cell[V]{
		st:     st,
		cod:    cod,
		key:    key,
		def:    def,
		life:   lifetime,
		loc:    At(cfg.root, key),
		meta:   At(cfg.root, key+metaSuffix),
		strict: cfg.strict,
	}
	if err := cell.ensureMeta(); err != nil {
		return nil, err
	}
	return cell, nil
}

// Key returns the bound key.
func (c *Cell[V]) Key() string { return c.key }

// Lifetime returns the bound lifetime.
func (c *Cell[V]) Lifetime() time.Duration { return c.life }

// Location returns where the payload lives.
func (c *Cell[V]) Location() Location { return c.loc }

// Get returns the current value. A stale or unreadable payload yields the
// bound default, which is eagerly persisted as the new stored value. In
// lenient mode the returned error is always nil; in strict mode re-seed
// failures are surfaced.
func (c *Cell[V]) Get() (V, error) {
	rec, ok := c.readMeta()
	if !ok {
		// sidecar vanished or corrupt since Bind; value age is unknowable,
		// treat as stale
		return c.reseed("meta_unreadable")
	}
	if rec.Stale(c.st.now()) {
		return c.reseed("stale")
	}
	v, err := Retrieve(c.st, c.cod, c.loc)
	if err != nil {
		// first-ever read or unreadable payload
		return c.reseed("unreadable")
	}
	return v, nil
}

// Set persists a new value and refreshes the metadata record's updatedAt.
// In lenient mode persist failures are swallowed (logged and hooked); in
// strict mode they are returned.
func (c *Cell[V]) Set(v V) error {
	return c.persist(v)
}

func (c *Cell[V]) reseed(reason string) (V, error) {
	c.st.log.Debug("cell reseeded with default", Fields{"key": c.key, "reason": reason})
	err := c.persist(c.def)
	if err != nil && c.strict {
		return c.def, err
	}
	return c.def, nil
}

func (c *Cell[V]) persist(v V) error {
	if err := c.writeValue(v); err != nil {
		return c.dropped(err)
	}
	if err := c.touch(); err != nil {
		return c.dropped(err)
	}
	return nil
}

func (c *Cell[V]) writeValue(v V) error {
	// the store refuses implicit overwrites, so clear the slot first
	if err := c.st.Remove(c.loc); err != nil {
		return err
	}
	return Save(c.st, c.cod, v, c.loc)
}

// dropped applies the swallow-or-surface policy to a persist error.
func (c *Cell[V]) dropped(err error) error {
	if c.strict {
		return err
	}
	c.st.log.Debug("cell persist dropped", Fields{"key": c.key, "err": err})
	c.st.hooks.CellPersistDropped(c.key, err)
	return nil
}

// ensureMeta creates the sidecar on first access, rewrites a corrupt one,
// and overwrites only the lifetime field when the bound lifetime differs.
func (c *Cell[V]) ensureMeta() error {
	abs, err := c.st.AbsPath(c.meta)
	if err != nil {
		return err
	}
	b, err := c.st.readFile(abs)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			now := c.st.now()
			return c.writeMeta(meta.Record{Lifetime: c.life, CreatedAt: now, UpdatedAt: now})
		}
		return err
	}
	rec, err := meta.Decode(b)
	if err != nil {
		c.st.hooks.MetaRewritten(abs, "corrupt")
		c.st.log.Warn("rewriting corrupt cell metadata", Fields{"key": c.key, "path": abs})
		now := c.st.now()
		return c.writeMeta(meta.Record{Lifetime: c.life, CreatedAt: now, UpdatedAt: now})
	}
	if rec.Lifetime != c.life {
		rec.Lifetime = c.life
		c.st.hooks.MetaRewritten(abs, "lifetime_change")
		return c.writeMeta(rec)
	}
	return nil
}

func (c *Cell[V]) readMeta() (meta.Record, bool) {
	abs, err := c.st.AbsPath(c.meta)
	if err != nil {
		return meta.Record{}, false
	}
	b, err := c.st.readFile(abs)
	if err != nil {
		return meta.Record{}, false
	}
	rec, err := meta.Decode(b)
	if err != nil {
		return meta.Record{}, false
	}
	return rec, true
}

func (c *Cell[V]) touch() error {
	rec, ok := c.readMeta()
	if !ok {
		c.st.hooks.MetaRewritten(c.key, "missing")
		now := c.st.now()
		rec = meta.Record{Lifetime: c.life, CreatedAt: now, UpdatedAt: now}
	}
	rec.UpdatedAt = c.st.now()
	return c.writeMeta(rec)
}

func (c *Cell[V]) writeMeta(rec meta.Record) error {
	if err := c.st.Remove(c.meta); err != nil {
		return err
	}
	abs, err := c.st.AbsPath(c.meta)
	if err != nil {
		return err
	}
	return c.st.writeNew(abs, meta.Encode(rec))
}
