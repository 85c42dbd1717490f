package graph

import (
	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/helpers"
)

type WrapKind uint8

const (
	WrapNone WrapKind = iota

	// The module is wrapped CommonJS-style. Evaluating it means calling its
	// generated "require_xxx" wrapper, which returns the exports object:
	//
	//   var require_foo = __commonJS((exports, module) => {
	//     exports.foo = 123;
	//   });
	//
	WrapCJS

	// The module is wrapped ESM-style to defer initialization, which is how
	// circular imports keep the correct evaluation order:
	//
	//   var foo;
	//   var init_foo = __esm(() => {
	//     foo = 123;
	//   });
	//
	WrapESM
)

// ModuleMeta is linker-specific state for one module. It's kept separate from
// Module because several linking operations may run against the same parsed
// modules in parallel, each with its own metadata.
type ModuleMeta struct {
	// Which entry points can reach this module, through any import edge.
	// Frozen once reachability finishes; chunk assignment never revises it.
	EntryBits helpers.BitSet

	// Computed by linking to handle circular-import deferred initialization
	// and CommonJS interop. Read-only at render time.
	Wrap WrapKind

	// The symbol holding the generated wrapper ("init_xxx" or "require_xxx").
	// Only valid when Wrap != WrapNone.
	WrapperRef ast.Ref

	// True once any entry point has reached this module
	IsReached bool
}
