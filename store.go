package cellar

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	pr "github.com/go-cellar/cellar/provider"
)

const defaultMemTTL = time.Minute

// Store is the path-addressed object store. It is synchronous and performs
// blocking file I/O; callers invoking it from multiple goroutines must
// serialize access to the same location themselves.
type Store struct {
	res    Resolver
	log    Logger
	hooks  Hooks
	mem    pr.Provider
	memTTL time.Duration
	now    func() time.Time
}

func newStore(opts Options) (*Store, error) {
	if opts.Resolver == nil {
		return nil, errors.New("cellar: resolver is required")
	}
	s := &Store{
		res: opts.Resolver,
		mem: opts.Mem,
	}
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.memTTL = coalesce[time.Duration](opts.MemTTL, defaultMemTTL)
	if opts.Clock != nil {
		s.now = opts.Clock
	} else {
		s.now = time.Now
	}
	return s, nil
}

// Close releases the in-memory layer, if any. The filesystem needs no
// teardown.
func (s *Store) Close(ctx context.Context) error {
	if s.mem != nil {
		return s.mem.Close(ctx)
	}
	return nil
}

// AbsPath resolves a location to its absolute filesystem path, creating the
// root's base directory if needed (but not the location itself).
func (s *Store) AbsPath(loc Location) (string, error) {
	base, err := s.res.Resolve(loc.Root())
	if err != nil {
		return "", err
	}
	if loc.Rel() == "" {
		return base, nil
	}
	return filepath.Join(base, filepath.FromSlash(loc.Rel())), nil
}

// URL returns the file URL of a location.
func (s *Store) URL(loc Location) (*url.URL, error) {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// Exists reports whether any filesystem entry (file or folder) is present at
// the location.
func (s *Store) Exists(loc Location) (bool, error) {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, opErr("stat", abs, err)
	}
	return true, nil
}

// IsFolder reports whether the location is a folder. A missing location is
// ErrNotFound.
func (s *Store) IsFolder(loc Location) (bool, error) {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, opErr("stat", abs, ErrNotFound)
		}
		return false, opErr("stat", abs, err)
	}
	return fi.IsDir(), nil
}

// Remove deletes the file or folder (recursively) at the location.
// Best-effort over existence: removing a missing location is not an error.
func (s *Store) Remove(loc Location) error {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return err
	}
	s.dropMemTree(abs)
	if err := os.RemoveAll(abs); err != nil {
		return opErr("remove", abs, err)
	}
	return nil
}

// Clear removes every entry directly under the root's base directory without
// removing the base directory itself.
func (s *Store) Clear(root Root) error {
	base, err := s.res.Resolve(root)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return opErr("clear", base, err)
	}
	for _, e := range entries {
		abs := filepath.Join(base, e.Name())
		s.dropMemTree(abs)
		if err := os.RemoveAll(abs); err != nil {
			return opErr("clear", abs, err)
		}
	}
	return nil
}

// Move relocates src to dst, within one root or across roots. Destination
// parent folders are created first. An existing destination is
// ErrAlreadyExists.
func (s *Store) Move(src, dst Location) error {
	from, err := s.AbsPath(src)
	if err != nil {
		return err
	}
	to, err := s.AbsPath(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(from); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return opErr("move", from, ErrNotFound)
		}
		return opErr("move", from, err)
	}
	if _, err := os.Stat(to); err == nil {
		return opErr("move", to, ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return opErr("move", to, err)
	}
	s.dropMemTree(from)
	s.memDel(to)
	if err := os.Rename(from, to); err != nil {
		return opErr("move", to, err)
	}
	return nil
}

// Rename changes the final path element of a location in place.
func (s *Store) Rename(loc Location, newName string) error {
	return s.Move(loc, loc.Sibling(newName))
}

// readFile reads a single file, going through the in-memory layer when one
// is configured. A missing file is ErrNotFound; other I/O errors pass
// through unchanged.
func (s *Store) readFile(abs string) ([]byte, error) {
	if b, ok := s.memGet(abs); ok {
		return b, nil
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, opErr("retrieve", abs, ErrNotFound)
		}
		return nil, opErr("retrieve", abs, err)
	}
	s.memSet(abs, b)
	return b, nil
}

// writeNew writes b to a path that must not already exist. The payload lands
// in a temp file in the destination directory and is published with a hard
// link, which is atomic and enforces exclusivity in one step.
func (s *Store) writeNew(abs string, b []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return opErr("save", abs, err)
	}
	tmp, err := os.CreateTemp(dir, ".cellar-*")
	if err != nil {
		return opErr("save", abs, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return opErr("save", abs, err)
	}
	if err := tmp.Close(); err != nil {
		return opErr("save", abs, err)
	}
	// CreateTemp defaults to 0600; items are readable by other processes.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return opErr("save", abs, err)
	}
	if err := os.Link(tmp.Name(), abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return opErr("save", abs, ErrAlreadyExists)
		}
		return opErr("save", abs, err)
	}
	s.memSet(abs, b)
	return nil
}

func (s *Store) memGet(abs string) ([]byte, bool) {
	if s.mem == nil {
		return nil, false
	}
	b, ok, err := s.mem.Get(context.Background(), abs)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

func (s *Store) memSet(abs string, b []byte) {
	if s.mem == nil {
		return
	}
	ok, err := s.mem.Set(context.Background(), abs, b, int64(len(b)), s.memTTL)
	if err != nil {
		s.log.Debug("mem set failed", Fields{"path": abs, "err": err})
		return
	}
	if !ok {
		s.hooks.MemSetRejected(abs)
	}
}

func (s *Store) memDel(abs string) {
	if s.mem == nil {
		return
	}
	_ = s.mem.Del(context.Background(), abs)
}

// dropMemTree invalidates the entry itself and, for folders, its direct
// members. Deeper descendants age out via the mem TTL.
func (s *Store) dropMemTree(abs string) {
	if s.mem == nil {
		return
	}
	s.memDel(abs)
	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		return
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return
	}
	for _, e := range entries {
		s.memDel(filepath.Join(abs, e.Name()))
	}
}
