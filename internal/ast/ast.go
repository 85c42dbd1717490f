package ast

// This file contains the data structures that cross the boundary between the
// scan phase and the linker. Import records describe every place one module
// pulls in another, and symbol references identify declared bindings without
// caring which package owns the declaring module.

import (
	"github.com/rollpack/rollpack/internal/logger"
)

type ImportKind uint8

const (
	// An ES6 import or re-export statement
	ImportStmt ImportKind = iota

	// An "import()" expression with a possibly-computed argument
	ImportDynamic

	// A call to "require()"
	ImportRequire
)

// IsStatic is true when the import target is always resolvable before code
// generation. A dynamic "import()" specifier may be computed at run-time, so
// it only establishes reachability, never a linkable binding.
func (kind ImportKind) IsStatic() bool {
	return kind == ImportStmt || kind == ImportRequire
}

func (kind ImportKind) String() string {
	switch kind {
	case ImportStmt:
		return "import-statement"
	case ImportDynamic:
		return "dynamic-import"
	case ImportRequire:
		return "require-call"
	default:
		panic("Internal error")
	}
}

// RawImportRecord is an import record before path resolution has run. The
// resolved form can only be obtained through "Resolve", which keeps records
// with a missing target out of the linker by construction.
type RawImportRecord struct {
	// The request text as written in the source
	Path  string
	Range logger.Range

	// The symbol holding this import's namespace object, if one is ever
	// materialized
	NamespaceRef Ref

	Kind ImportKind

	// True when the import contains syntax like "* as ns"
	ContainsImportStar bool

	// True when the import binds the "default" alias, either via
	// "import x from" or "import {default as x} from"
	ContainsDefaultAlias bool
}

func MakeRawImportRecord(path string, kind ImportKind, namespaceRef Ref) RawImportRecord {
	return RawImportRecord{
		Path:         path,
		Kind:         kind,
		NamespaceRef: namespaceRef,
	}
}

func (raw RawImportRecord) Resolve(targetIndex uint32) ImportRecord {
	return ImportRecord{
		Path:                 raw.Path,
		Range:                raw.Range,
		NamespaceRef:         raw.NamespaceRef,
		Kind:                 raw.Kind,
		TargetIndex:          MakeIndex32(targetIndex),
		ContainsImportStar:   raw.ContainsImportStar,
		ContainsDefaultAlias: raw.ContainsDefaultAlias,
	}
}

// ResolveExternal produces a record for an import that stays external to the
// bundle. It has no target module; the original statement is preserved in
// the output.
func (raw RawImportRecord) ResolveExternal() ImportRecord {
	return ImportRecord{
		Path:                 raw.Path,
		Range:                raw.Range,
		NamespaceRef:         raw.NamespaceRef,
		Kind:                 raw.Kind,
		IsExternal:           true,
		ContainsImportStar:   raw.ContainsImportStar,
		ContainsDefaultAlias: raw.ContainsDefaultAlias,
	}
}

// ResolveNone produces a record whose resolution failed. Static records in
// this state stop the pipeline before linking; dynamic ones are left for the
// host runtime to resolve.
func (raw RawImportRecord) ResolveNone() ImportRecord {
	return ImportRecord{
		Path:                 raw.Path,
		Range:                raw.Range,
		NamespaceRef:         raw.NamespaceRef,
		Kind:                 raw.Kind,
		ContainsImportStar:   raw.ContainsImportStar,
		ContainsDefaultAlias: raw.ContainsDefaultAlias,
	}
}

// ImportRecord is immutable once resolution has produced it.
type ImportRecord struct {
	Path  string
	Range logger.Range

	NamespaceRef Ref

	// The module index of the resolved target for an internal import, or
	// invalid for an external import (not included in the bundle) and for
	// dynamic imports whose specifier is computed at run-time
	TargetIndex Index32

	Kind ImportKind

	// True when the import is deliberately left external to the bundle
	IsExternal bool

	ContainsImportStar   bool
	ContainsDefaultAlias bool
}

// Index32 is a 1-biased wrapper so the zero value is "invalid index". This
// matters because import records are stored by value in large slices.
type Index32 struct {
	flippedBits uint32
}

func MakeIndex32(index uint32) Index32 {
	return Index32{flippedBits: ^index}
}

func (i Index32) IsValid() bool {
	return i.flippedBits != 0
}

func (i Index32) GetIndex() uint32 {
	return ^i.flippedBits
}
