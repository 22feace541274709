// Package local is the zero-dependency in-process Provider: a mutex-guarded
// map with per-entry TTLs and an optional janitor loop that prunes expired
// entries.
package local

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	b   []byte
	exp time.Time // zero => no TTL
}

// Provider keeps entries in-process. Expired entries are dropped lazily on
// Get and, when a janitor interval is set, swept in the background.
type Provider struct {
	mu     sync.RWMutex
	m      map[string]entry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(janitorInterval time.Duration) *Provider {
	p := &Provider{m: make(map[string]entry)}
	if janitorInterval > 0 {
		p.ticker = time.NewTicker(janitorInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.ticker.C:
					p.Cleanup()
				case <-p.stopCh:
					return
				}
			}
		}()
	}
	return p
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		p.mu.Lock()
		// re-check under the write lock; a fresh Set may have replaced it
		if cur, ok := p.m[key]; ok && !cur.exp.IsZero() && time.Now().After(cur.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = entry{b: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

// Cleanup prunes every expired entry.
func (p *Provider) Cleanup() {
	now := time.Now()
	p.mu.Lock()
	for k, e := range p.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}

// Len reports the live entry count (expired-but-unswept included).
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}

func (p *Provider) Close(_ context.Context) error {
	if p.stopCh != nil {
		close(p.stopCh)
		p.ticker.Stop() // stop ticker before waiting
		p.wg.Wait()
		p.stopCh = nil
	}
	return nil
}
