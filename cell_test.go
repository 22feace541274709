package cellar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/go-cellar/cellar/codec"
)

type session struct {
	Token string `json:"token"`
	Seq   int    `json:"seq"`
}

// fakeClock lets tests move "now" without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type flakyResolver struct {
	inner Resolver
	fail  bool
}

func (f *flakyResolver) Resolve(r Root) (string, error) {
	if f.fail {
		return "", errors.New("disk offline")
	}
	return f.inner.Resolve(r)
}

type recordingHooks struct {
	NopHooks
	mu      sync.Mutex
	dropped []string
}

func (h *recordingHooks) CellPersistDropped(key string, _ error) {
	h.mu.Lock()
	h.dropped = append(h.dropped, key)
	h.mu.Unlock()
}

func newCellStore(t *testing.T, clk *fakeClock, optsOpt func(*Options)) *Store {
	t.Helper()
	opts := Options{
		Resolver: BaseResolver{Base: t.TempDir()},
		Clock:    clk.Now,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	st, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func TestCellFreshThenStale(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	def := session{Token: "", Seq: 0}
	cell, err := Bind(st, c.JSON[session]{}, "session", def, 10*time.Second)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	val := session{Token: "abc", Seq: 1}
	if err := cell.Set(val); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// read just inside the lifetime returns the last-written value
	clk.Advance(10*time.Second - time.Millisecond)
	if got, err := cell.Get(); err != nil || got != val {
		t.Fatalf("fresh read: got=%+v err=%v", got, err)
	}

	// Get refreshes nothing; one more tick past the lifetime goes stale
	clk.Advance(2 * time.Millisecond)
	got, err := cell.Get()
	if err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if got != def {
		t.Fatalf("stale read must return the default, got %+v", got)
	}

	// the store now holds the default, not the old value
	stored, err := Retrieve(st, c.JSON[session]{}, cell.Location())
	if err != nil || stored != def {
		t.Fatalf("store should hold the re-seeded default: got=%+v err=%v", stored, err)
	}

	// re-seeding refreshed updatedAt, so the default is fresh again
	if got, err := cell.Get(); err != nil || got != def {
		t.Fatalf("post-reseed read: got=%+v err=%v", got, err)
	}
}

func TestCellForeverNeverStale(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	cell, err := Bind(st, c.JSON[session]{}, "pinned", session{}, Forever)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	val := session{Token: "keep", Seq: 3}
	if err := cell.Set(val); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.Advance(10 * 365 * 24 * time.Hour)
	if got, err := cell.Get(); err != nil || got != val {
		t.Fatalf("Forever cell went stale: got=%+v err=%v", got, err)
	}
}

func TestCellFirstReadSeedsDefault(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	def := session{Token: "fresh-default", Seq: 0}
	cell, err := Bind(st, c.JSON[session]{}, "never-written", def, time.Hour)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	// nothing written yet: fall back to persisting and returning the default
	if got, err := cell.Get(); err != nil || got != def {
		t.Fatalf("first read: got=%+v err=%v", got, err)
	}
	if stored, err := Retrieve(st, c.JSON[session]{}, cell.Location()); err != nil || stored != def {
		t.Fatalf("default was not persisted: got=%+v err=%v", stored, err)
	}
}

func TestCellRebindOverwritesOnlyLifetime(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	cell1, err := Bind(st, c.JSON[session]{}, "policy", session{}, time.Minute)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := cell1.Set(session{Token: "v1", Seq: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec1, ok := cell1.readMeta()
	if !ok {
		t.Fatalf("sidecar unreadable after Set")
	}

	// policy changes across "process runs": same key, longer lifetime
	clk.Advance(30 * time.Second)
	cell2, err := Bind(st, c.JSON[session]{}, "policy", session{}, time.Hour)
	if err != nil {
		t.Fatalf("re-Bind: %v", err)
	}
	rec2, ok := cell2.readMeta()
	if !ok {
		t.Fatalf("sidecar unreadable after re-Bind")
	}

	if rec2.Lifetime != time.Hour {
		t.Fatalf("lifetime not overwritten: %v", rec2.Lifetime)
	}
	if !rec2.CreatedAt.Equal(rec1.CreatedAt) {
		t.Fatalf("createdAt must survive a policy change: %v vs %v", rec2.CreatedAt, rec1.CreatedAt)
	}
	if !rec2.UpdatedAt.Equal(rec1.UpdatedAt) {
		t.Fatalf("updatedAt moves only on value writes: %v vs %v", rec2.UpdatedAt, rec1.UpdatedAt)
	}

	// the old value is still there under the new policy
	if got, err := cell2.Get(); err != nil || got.Token != "v1" {
		t.Fatalf("value lost across rebind: got=%+v err=%v", got, err)
	}
}

func TestCellSetRefreshesUpdatedAt(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	cell, err := Bind(st, c.JSON[session]{}, "ticker", session{}, time.Minute)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := cell.Set(session{Seq: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	before, _ := cell.readMeta()

	clk.Advance(45 * time.Second)
	if err := cell.Set(session{Seq: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	after, _ := cell.readMeta()

	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("updatedAt not refreshed: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("createdAt changed on write")
	}

	// the second write restarted the lifetime window
	clk.Advance(50 * time.Second)
	if got, err := cell.Get(); err != nil || got.Seq != 2 {
		t.Fatalf("value should still be fresh after refresh: got=%+v err=%v", got, err)
	}
}

func TestCellLenientSwallowsPersistErrors(t *testing.T) {
	clk := newFakeClock()
	fr := &flakyResolver{inner: BaseResolver{Base: t.TempDir()}}
	hooks := &recordingHooks{}
	st := newCellStore(t, clk, func(o *Options) {
		o.Resolver = fr
		o.Hooks = hooks
	})

	cell, err := Bind(st, c.JSON[session]{}, "lossy", session{}, time.Minute)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	fr.fail = true
	// writes do not throw to the caller
	if err := cell.Set(session{Token: "x"}); err != nil {
		t.Fatalf("lenient Set must swallow persist failures, got %v", err)
	}
	// reads never fail either
	if _, err := cell.Get(); err != nil {
		t.Fatalf("lenient Get must not fail, got %v", err)
	}

	hooks.mu.Lock()
	n := len(hooks.dropped)
	hooks.mu.Unlock()
	if n == 0 {
		t.Fatalf("swallowed persist failures must surface through hooks")
	}
}

func TestCellStrictSurfacesPersistErrors(t *testing.T) {
	clk := newFakeClock()
	fr := &flakyResolver{inner: BaseResolver{Base: t.TempDir()}}
	st := newCellStore(t, clk, func(o *Options) { o.Resolver = fr })

	cell, err := Bind(st, c.JSON[session]{}, "strict", session{}, time.Minute, Strict())
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}

	fr.fail = true
	if err := cell.Set(session{Token: "x"}); err == nil {
		t.Fatalf("strict Set must surface persist failures")
	}
}

func TestCellCorruptSidecarIsRewritten(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	cell, err := Bind(st, c.JSON[session]{}, "healme", session{}, time.Minute)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := cell.Set(session{Token: "v"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// scribble over the sidecar
	if err := st.Remove(cell.meta); err != nil {
		t.Fatalf("Remove meta: %v", err)
	}
	abs, _ := st.AbsPath(cell.meta)
	if err := st.writeNew(abs, []byte("garbage")); err != nil {
		t.Fatalf("inject corrupt sidecar: %v", err)
	}

	// rebinding self-heals
	cell2, err := Bind(st, c.JSON[session]{}, "healme", session{}, time.Minute)
	if err != nil {
		t.Fatalf("re-Bind over corrupt sidecar: %v", err)
	}
	if rec, ok := cell2.readMeta(); !ok || rec.Lifetime != time.Minute {
		t.Fatalf("sidecar not rewritten: ok=%v rec=%+v", ok, rec)
	}
}

func TestCellInRoot(t *testing.T) {
	clk := newFakeClock()
	st := newCellStore(t, clk, nil)

	cell, err := Bind(st, c.JSON[session]{}, "prefs", session{}, Forever, InRoot(AppSupport))
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if cell.Location().Root() != AppSupport {
		t.Fatalf("InRoot ignored: %v", cell.Location())
	}
	if err := cell.Set(session{Token: "p"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := st.Exists(At(AppSupport, "prefs")); !ok {
		t.Fatalf("payload not under the requested root")
	}
	if ok, _ := st.Exists(At(AppSupport, "prefs.meta")); !ok {
		t.Fatalf("sidecar not next to the payload")
	}
}
