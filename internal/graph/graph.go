package graph

import (
	"github.com/rollpack/rollpack/internal/ast"
)

type EntryPoint struct {
	// The logical name used by the "[name]" file name placeholder. Derived
	// from the entry's path unless the user supplied an explicit name.
	OutputName string

	ModuleIndex uint32
}

// LinkerGraph owns the modules, the shared symbol arena, and the per-module
// linker metadata. Everything here except Meta is immutable after the parse
// phase; Meta is mutable during linking and frozen before rendering starts.
type LinkerGraph struct {
	Modules     []Module
	Meta        []ModuleMeta
	Symbols     ast.SymbolMap
	EntryPoints []EntryPoint
}

func MakeLinkerGraph(modules []Module, symbols ast.SymbolMap, entryPoints []EntryPoint) LinkerGraph {
	return LinkerGraph{
		Modules:     modules,
		Meta:        make([]ModuleMeta, len(modules)),
		Symbols:     symbols,
		EntryPoints: entryPoints,
	}
}

// GenerateSymbol appends a fresh symbol to a module's slice in the arena.
// Only the link phase calls this (to create wrapper symbols); the render
// phase sees a frozen arena.
func (g *LinkerGraph) GenerateSymbol(sourceIndex uint32, originalName string) ast.Ref {
	symbols := g.Symbols.SymbolsForSource[sourceIndex]
	ref := ast.Ref{SourceIndex: sourceIndex, InnerIndex: uint32(len(symbols))}
	g.Symbols.SymbolsForSource[sourceIndex] = append(symbols, ast.Symbol{
		OriginalName: originalName,
		Link:         ast.InvalidRef,
	})
	return ref
}
