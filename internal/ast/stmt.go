package ast

import "github.com/rollpack/rollpack/internal/logger"

// The linker treats a module body as an ordered list of statements with just
// enough structure to relink them: which statements are import/export syntax
// and where identifiers that refer to graph symbols appear in the text. The
// real parser produces this; the linker never looks inside "Text" except at
// the recorded use offsets.

type StmtKind uint8

const (
	// An import/re-export statement. Dropped from the rendered body because
	// its binding is satisfied either in-chunk or by the chunk's generated
	// import preamble.
	SImport StmtKind = iota

	// An "export"-prefixed declaration. Rendered with the "export " keyword
	// stripped; the chunk's export block re-exposes the binding if needed.
	SExportDecl

	// Any other statement, rendered as-is modulo name substitution
	SOther
)

// NameUse marks one identifier occurrence inside a statement's text. Loc is a
// byte offset into Stmt.Text and the identifier's length is the length of the
// referenced symbol's original name.
type NameUse struct {
	Loc int32
	Ref Ref
}

type Stmt struct {
	Kind StmtKind

	// The original source text of this statement, without a trailing newline
	Text string

	// Offset of this statement in the module source, for source maps
	Loc logger.Loc

	// Only valid when Kind == SImport
	ImportRecordIndex uint32

	// Identifier occurrences in ascending Loc order
	Uses []NameUse
}
