package renamer

import (
	"strconv"

	"github.com/rollpack/rollpack/internal/ast"
)

// NumberRenamer assigns each symbol one canonical name within a chunk. Names
// are handed out in discovery order and collisions between identically named
// top-level bindings from merged modules are broken with a numbered suffix
// ("foo", "foo2", "foo3", ...). An assignment is immutable once made: asking
// again for the same ref always returns the same name.
type NumberRenamer struct {
	symbols ast.SymbolMap

	// The canonical-name overlay being built for one chunk. This is layered
	// on top of the shared symbol arena, which is never written to.
	names map[ast.Ref]string

	// Maps a name to the last numbered suffix tried for it
	nameCounts map[string]uint32
}

func NewNumberRenamer(symbols ast.SymbolMap) *NumberRenamer {
	return &NumberRenamer{
		symbols:    symbols,
		names:      make(map[ast.Ref]string),
		nameCounts: make(map[string]uint32),
	}
}

// AssignName returns the canonical name for a symbol, assigning one on first
// use. Links are followed first so an import and the export it was matched
// with share a single name.
func (r *NumberRenamer) AssignName(ref ast.Ref) string {
	ref = ast.FollowSymbols(r.symbols, ref)
	if name, ok := r.names[ref]; ok {
		return name
	}
	name := r.findUnusedName(r.symbols.Get(ref).OriginalName)
	r.names[ref] = name
	return name
}

// NameForSymbol is the read-only variant used at render time. Every symbol a
// render can see must already have a name; a miss is a linker bug.
func (r *NumberRenamer) NameForSymbol(ref ast.Ref) (string, bool) {
	ref = ast.FollowSymbols(r.symbols, ref)
	name, ok := r.names[ref]
	return name, ok
}

// CanonicalNames exposes the finished overlay. The caller must not mutate it
// once rendering has started.
func (r *NumberRenamer) CanonicalNames() map[ast.Ref]string {
	return r.names
}

func (r *NumberRenamer) findUnusedName(name string) string {
	if tries, ok := r.nameCounts[name]; ok {
		prefix := name

		// Keep incrementing the number until the name is unused
		for {
			tries++
			name = prefix + strconv.Itoa(int(tries))
			if _, ok := r.nameCounts[name]; !ok {
				break
			}
		}

		// Remember where the number ended up so the next collision on the
		// same prefix starts from here
		r.nameCounts[prefix] = tries
	}

	r.nameCounts[name] = 1
	return name
}
