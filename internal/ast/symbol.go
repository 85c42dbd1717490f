package ast

// Ref is a reference to a symbol declared somewhere in the module graph. The
// pair (module index, per-module inner index) is unique across the whole
// graph, so a Ref can be passed between modules and chunks without carrying
// any context along with it.
type Ref struct {
	SourceIndex uint32
	InnerIndex  uint32
}

var InvalidRef = Ref{^uint32(0), ^uint32(0)}

type Symbol struct {
	// The original name as written in the source. This is never the final
	// output name: chunks layer a canonical-name map on top.
	OriginalName string

	// Two symbols can be merged by linking one to the other, for example when
	// an import is matched with the export it refers to. Both refs then print
	// as whatever the target symbol's canonical name ends up being.
	Link Ref
}

func (s Symbol) HasLink() bool {
	return s.Link != InvalidRef
}

// SymbolMap is an arena holding every symbol in the graph, indexed by source
// index then inner index. The linker and all chunk renders share one map and
// never mutate it after linking completes, which is what makes the parallel
// render phase safe without locks.
type SymbolMap struct {
	SymbolsForSource [][]Symbol
}

func NewSymbolMap(sourceCount int) SymbolMap {
	return SymbolMap{SymbolsForSource: make([][]Symbol, sourceCount)}
}

func (sm SymbolMap) Get(ref Ref) *Symbol {
	return &sm.SymbolsForSource[ref.SourceIndex][ref.InnerIndex]
}

// FollowSymbols collapses a chain of symbol links and returns the final
// target. Cycles are impossible because links only ever point at symbols
// created earlier in the link pass.
func FollowSymbols(symbols SymbolMap, ref Ref) Ref {
	symbol := symbols.Get(ref)
	if !symbol.HasLink() {
		return ref
	}
	link := FollowSymbols(symbols, symbol.Link)

	// Only write if needed to avoid concurrent map update hazards
	if symbol.Link != link {
		symbol.Link = link
	}
	return link
}
