package cellar

import (
	"path"
	"strings"
)

// Location is a Root plus a relative path. A trailing separator marks the
// path as a folder (collection) rather than a file (single item); aside from
// that hint, the same relative string with and without trailing separator
// names the same filesystem entry.
type Location struct {
	root   Root
	rel    string // normalized: no leading or trailing separators, "/"-joined
	folder bool
}

// At builds a Location from a root and a relative path. Leading separators
// are stripped (a path of only separators resolves to the empty relative
// path, i.e. the root's base directory). A trailing separator sets the
// folder hint.
func At(root Root, rel string) Location {
	rel = strings.ReplaceAll(rel, "\\", "/")
	folder := strings.HasSuffix(rel, "/")
	rel = strings.Trim(rel, "/")
	rel = path.Clean(rel)
	// a relative path can never climb above its root
	for strings.HasPrefix(rel, "../") {
		rel = rel[3:]
	}
	if rel == "." || rel == ".." {
		rel = ""
	}
	if rel == "" {
		folder = true
	}
	return Location{root: root, rel: rel, folder: folder}
}

// Folder is At with the folder hint forced on, regardless of trailing
// separator.
func Folder(root Root, rel string) Location {
	l := At(root, rel)
	l.folder = true
	return l
}

// Root returns the storage domain the location lives under.
func (l Location) Root() Root { return l.root }

// Rel returns the normalized relative path (no leading/trailing separators).
func (l Location) Rel() string { return l.rel }

// IsFolderHint reports whether the location was declared as a folder.
func (l Location) IsFolderHint() bool { return l.folder }

// Base returns the final path element, "" for the root itself.
func (l Location) Base() string {
	if l.rel == "" {
		return ""
	}
	return path.Base(l.rel)
}

// Ext returns the basename's extension without the dot, "" if none.
func (l Location) Ext() string {
	return strings.TrimPrefix(path.Ext(l.Base()), ".")
}

// In returns the location of a child entry inside l.
func (l Location) In(name string) Location {
	child := name
	if l.rel != "" {
		child = l.rel + "/" + name
	}
	return Location{root: l.root, rel: child}
}

// Sibling returns a location next to l with a different final element.
func (l Location) Sibling(name string) Location {
	dir := path.Dir(l.rel)
	if dir == "." {
		dir = ""
	}
	out := Location{root: l.root, folder: l.folder}
	if dir == "" {
		out.rel = name
	} else {
		out.rel = dir + "/" + name
	}
	return out
}

// Equal ignores the folder hint: two locations naming the same entry under
// the same root compare equal.
func (l Location) Equal(o Location) bool {
	return l.root == o.root && l.rel == o.rel
}

func (l Location) String() string {
	s := l.root.String() + ":/" + l.rel
	if l.folder && l.rel != "" {
		s += "/"
	}
	return s
}
