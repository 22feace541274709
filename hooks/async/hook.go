// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/go-cellar/cellar"
//	"github.com/go-cellar/cellar/hooks/async"
//	"github.com/go-cellar/cellar/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    MemberSkipEvery: 10, // sample logs: ~every 10th skipped member
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	store, _ := cellar.New(cellar.Options{
//	    Resolver: resolver,
//	    Hooks:    hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/go-cellar/cellar"
)

type Hooks struct {
	inner cellar.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ cellar.Hooks = (*Hooks)(nil)

func New(inner cellar.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) MemberSkipped(p, r string) { h.try(func() { h.inner.MemberSkipped(p, r) }) }
func (h *Hooks) MetaRewritten(p, r string) { h.try(func() { h.inner.MetaRewritten(p, r) }) }
func (h *Hooks) MemSetRejected(p string)   { h.try(func() { h.inner.MemSetRejected(p) }) }
func (h *Hooks) CellPersistDropped(k string, err error) {
	h.try(func() { h.inner.CellPersistDropped(k, err) })
}
