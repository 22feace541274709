package cellar

import (
	"fmt"
	"os"
	"path/filepath"
)

type rootKind uint8

const (
	kindDocuments rootKind = iota
	kindCaches
	kindAppSupport
	kindTemporary
	kindShared
)

// Root is an enumerated storage domain. Each root resolves to exactly one
// base directory at runtime via the Resolver; resolution is idempotent and
// creates the directory on first use.
type Root struct {
	kind      rootKind
	container string // shared containers only
}

var (
	// Documents is the durable, user-visible domain.
	Documents = Root{kind: kindDocuments}
	// Caches is the durable, hidden, cache-eligible domain.
	Caches = Root{kind: kindCaches}
	// AppSupport is the durable, app-private domain.
	AppSupport = Root{kind: kindAppSupport}
	// Temporary is the volatile domain; contents may vanish between runs.
	Temporary = Root{kind: kindTemporary}
)

// Shared names a shared container domain, e.g. a directory a group of
// cooperating tools agrees on.
func Shared(container string) Root {
	return Root{kind: kindShared, container: container}
}

func (r Root) String() string {
	switch r.kind {
	case kindDocuments:
		return "documents"
	case kindCaches:
		return "caches"
	case kindAppSupport:
		return "support"
	case kindTemporary:
		return "tmp"
	case kindShared:
		return "shared:" + r.container
	}
	return "unknown"
}

// Resolver maps a Root to its absolute base directory, creating it if
// necessary. Must be idempotent and safe to call repeatedly.
type Resolver interface {
	Resolve(r Root) (string, error)
}

// BaseResolver nests every root under one fixed base directory. Handy for
// tests and sandboxed deployments.
type BaseResolver struct {
	Base string
}

func (b BaseResolver) Resolve(r Root) (string, error) {
	var dir string
	switch r.kind {
	case kindShared:
		dir = filepath.Join(b.Base, "shared", r.container)
	default:
		dir = filepath.Join(b.Base, r.String())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", opErr("resolve", dir, err)
	}
	return dir, nil
}

// OSResolver maps roots onto the conventional per-user directories of the
// host platform, namespaced by App:
//
//	Documents  -> $HOME/Documents/<App>
//	Caches     -> os.UserCacheDir()/<App>
//	AppSupport -> os.UserConfigDir()/<App>
//	Temporary  -> os.TempDir()/<App>
//	Shared(c)  -> SharedBase/<c> (SharedBase defaults to os.UserConfigDir())
type OSResolver struct {
	App        string
	SharedBase string
}

func NewOSResolver(app string) (*OSResolver, error) {
	if app == "" {
		return nil, fmt.Errorf("cellar: app name is required")
	}
	return &OSResolver{App: app}, nil
}

func (o *OSResolver) Resolve(r Root) (string, error) {
	dir, err := o.baseFor(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", opErr("resolve", dir, err)
	}
	return dir, nil
}

func (o *OSResolver) baseFor(r Root) (string, error) {
	switch r.kind {
	case kindDocuments:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Documents", o.App), nil
	case kindCaches:
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, o.App), nil
	case kindAppSupport:
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, o.App), nil
	case kindTemporary:
		return filepath.Join(os.TempDir(), o.App), nil
	case kindShared:
		base := o.SharedBase
		if base == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return "", err
			}
			base = dir
		}
		return filepath.Join(base, r.container), nil
	}
	return "", fmt.Errorf("cellar: unknown root %v", r)
}
