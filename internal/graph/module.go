package graph

import (
	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/logger"
)

type ExportsKind uint8

const (
	// The module has no exports at all
	ExportsNone ExportsKind = iota

	// The module uses "module.exports" / "exports" assignments
	ExportsCommonJS

	// The module uses ES module export syntax
	ExportsESM
)

func (kind ExportsKind) IsESM() bool {
	return kind == ExportsESM
}

type NamedImport struct {
	// The alias as exported by the target module ("default" for default
	// imports)
	Alias string

	ImportRecordIndex uint32
}

// Module is one parsed input file. It's owned by the graph and is immutable
// after the parse phase: the linker reads it from many goroutines at once.
type Module struct {
	Source logger.Source

	// The statement-level body consumed by the per-module renderer
	Stmts []ast.Stmt

	// One record per static import, dynamic import, or require call, in
	// source order
	ImportRecords []ast.ImportRecord

	// Top-level bindings exported by name
	NamedExports map[string]ast.Ref

	// Local bindings created by import statements, keyed by the local
	// symbol. Linking matches each one with an export of the target module
	// and links the symbols together.
	NamedImports map[ast.Ref]NamedImport

	// Refs of all top-level declarations, in declaration order. Declaration
	// order matters because canonical names are assigned in discovery order.
	TopLevelDecls []ast.Ref

	ExportsKind ExportsKind

	// True if the module text already begins with a "use strict" directive
	ContainsUseStrict bool

	// True for paths marked ignored by the resolver: the module keeps its
	// position in the graph but renders as empty text
	IsIgnored bool
}
