package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/go-cellar/cellar"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	MemberSkipEvery uint64
	// Optional path/key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	memberSkipCtr atomic.Uint64
}

var _ cellar.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) MemberSkipped(path, reason string) {
	if h.l == nil || !sample(h.opts.MemberSkipEvery, &h.memberSkipCtr) {
		return
	}
	h.l.Debug("cellar.member_skipped",
		"path", h.redact(path),
		"reason", reason)
}

func (h *Hooks) CellPersistDropped(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cellar.cell_persist_dropped",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) MetaRewritten(path, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("cellar.meta_rewritten",
		"path", h.redact(path),
		"reason", reason)
}

func (h *Hooks) MemSetRejected(path string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cellar.mem_set_rejected",
		"path", h.redact(path))
}
