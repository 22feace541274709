package cellar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	c "github.com/go-cellar/cellar/codec"
)

// Save encodes a single value and writes it to the location. The file must
// not already exist (ErrAlreadyExists otherwise); parent folders are created
// on demand. A folder-hinted location stores the value as a one-element
// collection instead.
func Save[V any](s *Store, cod c.Codec[V], v V, loc Location) error {
	if loc.IsFolderHint() {
		return SaveAll(s, cod, []V{v}, loc)
	}
	b, err := cod.Encode(v)
	if err != nil {
		return fmt.Errorf("cellar: encode %v: %w", loc, err)
	}
	abs, err := s.AbsPath(loc)
	if err != nil {
		return err
	}
	return s.writeNew(abs, b)
}

// SaveAll treats the location as a folder, creates it if absent, and writes
// each element as a new stored item at index 0..n-1. Members share the
// location basename's extension when it has one, else the codec's default
// extension.
func SaveAll[V any](s *Store, cod c.Codec[V], vs []V, loc Location) error {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return opErr("save", abs, err)
	}
	ext := coalesce(loc.Ext(), cod.Ext())
	for i, v := range vs {
		b, err := cod.Encode(v)
		if err != nil {
			return fmt.Errorf("cellar: encode %v[%d]: %w", loc, i, err)
		}
		if err := s.writeNew(memberPath(abs, i, ext), b); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve decodes the single item at the location. A folder cannot decode
// as a scalar and is ErrInvalidFileName; a missing location is ErrNotFound.
func Retrieve[V any](s *Store, cod c.Codec[V], loc Location) (V, error) {
	var zero V
	abs, err := s.AbsPath(loc)
	if err != nil {
		return zero, err
	}
	// a mem hit skips the disk entirely; only files are ever cached there
	if b, ok := s.memGet(abs); ok {
		v, err := cod.Decode(b)
		if err != nil {
			return zero, opErr("retrieve", abs, fmt.Errorf("%w: %v", ErrInvalidFileName, err))
		}
		return v, nil
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, opErr("retrieve", abs, ErrNotFound)
		}
		return zero, opErr("retrieve", abs, err)
	}
	if fi.IsDir() {
		return zero, opErr("retrieve", abs, fmt.Errorf("%w: folder cannot decode as a single item", ErrInvalidFileName))
	}
	b, err := s.readFile(abs)
	if err != nil {
		return zero, err
	}
	v, err := cod.Decode(b)
	if err != nil {
		return zero, opErr("retrieve", abs, fmt.Errorf("%w: %v", ErrInvalidFileName, err))
	}
	return v, nil
}

// RetrieveAll returns the location's collection in ascending numeric stem
// order. Members that do not decode under the requested element type are
// skipped, so a heterogeneous folder can be queried by type. A single file
// at the location is returned as a one-element sequence.
func RetrieveAll[V any](s *Store, cod c.Codec[V], loc Location) ([]V, error) {
	return retrieveSeq(s, cod, loc, false)
}

// RetrieveAllStrict is RetrieveAll except that an undecodable member is
// ErrInvalidFileName instead of being skipped.
func RetrieveAllStrict[V any](s *Store, cod c.Codec[V], loc Location) ([]V, error) {
	return retrieveSeq(s, cod, loc, true)
}

func retrieveSeq[V any](s *Store, cod c.Codec[V], loc Location, strict bool) ([]V, error) {
	abs, err := s.AbsPath(loc)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, opErr("retrieve", abs, ErrNotFound)
		}
		return nil, opErr("retrieve", abs, err)
	}
	if !fi.IsDir() {
		// single file queried as a sequence => one-element sequence
		v, err := Retrieve(s, cod, loc)
		if err != nil {
			return nil, err
		}
		return []V{v}, nil
	}

	members, err := listMembers(abs)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(members))
	for _, m := range members {
		mp := filepath.Join(abs, m.name)
		b, err := s.readFile(mp)
		if err != nil {
			if strict {
				return nil, err
			}
			s.hooks.MemberSkipped(mp, "read")
			s.log.Debug("member skipped (read)", Fields{"path": mp, "err": err})
			continue
		}
		v, err := cod.Decode(b)
		if err != nil {
			if strict {
				return nil, opErr("retrieve", mp, fmt.Errorf("%w: %v", ErrInvalidFileName, err))
			}
			s.hooks.MemberSkipped(mp, "decode")
			s.log.Debug("member skipped (decode)", Fields{"path": mp, "err": err})
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Append adds one value after the existing content of the location,
// whatever its current shape.
func Append[V any](s *Store, cod c.Codec[V], v V, loc Location) error {
	return AppendAll(s, cod, []V{v}, loc)
}

// AppendAll unifies the four shape combinations:
//
//   - nothing on disk: a folder-hinted location becomes a fresh collection;
//     a bare location with exactly one new element becomes a plain file.
//   - existing single item: the file is promoted in place to a folder holding
//     the old bytes at index 0 and the new elements after it.
//   - existing collection: new elements land after the current maximum index;
//     existing members are never re-indexed.
//
// Existing content that does not decode under the element type fails with
// ErrInvalidFileName before anything is touched - appending never discards
// data.
func AppendAll[V any](s *Store, cod c.Codec[V], vs []V, loc Location) error {
	if len(vs) == 0 {
		return nil
	}
	abs, err := s.AbsPath(loc)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !loc.IsFolderHint() && len(vs) == 1 {
			return Save(s, cod, vs[0], loc)
		}
		return SaveAll(s, cod, vs, loc)
	case err != nil:
		return opErr("append", abs, err)
	}

	if fi.IsDir() {
		return appendMembers(s, cod, vs, loc, abs)
	}
	return promoteAndAppend(s, cod, vs, loc, abs)
}

// appendMembers extends an existing collection from max index + 1. The
// newest existing member must decode under the element type first; a
// mismatch is ErrInvalidFileName and nothing is written - the collection is
// never silently coerced into a mixed folder.
func appendMembers[V any](s *Store, cod c.Codec[V], vs []V, loc Location, abs string) error {
	members, err := listMembers(abs)
	if err != nil {
		return err
	}
	next := 0
	ext := coalesce(loc.Ext(), cod.Ext())
	if n := len(members); n > 0 {
		last := members[n-1]
		lp := filepath.Join(abs, last.name)
		b, err := s.readFile(lp)
		if err != nil {
			return err
		}
		if _, err := cod.Decode(b); err != nil {
			return opErr("append", lp, fmt.Errorf("%w: existing collection does not decode as the element type: %v", ErrInvalidFileName, err))
		}
		next = last.index + 1
		ext = coalesce(loc.Ext(), coalesce(last.ext, cod.Ext()))
	}
	for i, v := range vs {
		b, err := cod.Encode(v)
		if err != nil {
			return fmt.Errorf("cellar: encode %v[%d]: %w", loc, i, err)
		}
		if err := s.writeNew(memberPath(abs, next+i, ext), b); err != nil {
			return err
		}
	}
	return nil
}

// promoteAndAppend converts a single-item location in place into a folder
// holding the original bytes at index 0, then appends the new elements.
func promoteAndAppend[V any](s *Store, cod c.Codec[V], vs []V, loc Location, abs string) error {
	old, err := s.readFile(abs)
	if err != nil {
		return err
	}
	if _, err := cod.Decode(old); err != nil {
		return opErr("append", abs, fmt.Errorf("%w: existing content does not decode as the element type: %v", ErrInvalidFileName, err))
	}
	encoded := make([][]byte, len(vs))
	for i, v := range vs {
		b, err := cod.Encode(v)
		if err != nil {
			return fmt.Errorf("cellar: encode %v[%d]: %w", loc, i, err)
		}
		encoded[i] = b
	}

	ext := coalesce(loc.Ext(), cod.Ext())
	s.memDel(abs)

	// The original file is only ever moved, never deleted and rewritten, so
	// a failure part way through cannot lose it.
	aside := abs + ".promoting"
	if err := os.Rename(abs, aside); err != nil {
		return opErr("append", abs, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		os.Rename(aside, abs)
		return opErr("append", abs, err)
	}
	if err := os.Rename(aside, memberPath(abs, 0, ext)); err != nil {
		os.Remove(abs)
		os.Rename(aside, abs)
		return opErr("append", abs, err)
	}
	for i, b := range encoded {
		if err := s.writeNew(memberPath(abs, 1+i, ext), b); err != nil {
			return err
		}
	}
	return nil
}

type member struct {
	name  string
	index int
	ext   string
}

// listMembers returns the folder's direct stored items sorted by ascending
// numeric stem. Lexical filename order would break at two digits, so the
// stems are parsed and compared as integers. Entries without an all-digit
// stem (and subfolders) are not collection members and are ignored.
func listMembers(abs string) ([]member, error) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, opErr("list", abs, err)
	}
	members := make([]member, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ext, ok := parseMemberName(e.Name())
		if !ok {
			continue
		}
		members = append(members, member{name: e.Name(), index: idx, ext: ext})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].index < members[j].index })
	return members, nil
}

// parseMemberName splits "<index>.<ext>" (or a bare "<index>") and reports
// whether the stem is a valid non-negative decimal index.
func parseMemberName(name string) (idx int, ext string, ok bool) {
	stem := name
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		stem = name[:dot]
		ext = name[dot+1:]
	}
	if stem == "" {
		return 0, "", false
	}
	for i := 0; i < len(stem); i++ {
		if stem[i] < '0' || stem[i] > '9' {
			return 0, "", false
		}
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, "", false
	}
	return n, ext, true
}

func memberPath(abs string, idx int, ext string) string {
	name := strconv.Itoa(idx)
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(abs, name)
}
