package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/logger"
)

func parseDescriptor(t *testing.T, contents string) (ParsedModule, []logger.Msg, bool) {
	t.Helper()
	log := logger.NewDeferLog()
	source := logger.Source{Index: 7, PrettyPath: "a.json", Contents: contents}
	parsed, ok := DescriptorParser{}.Parse(log, source)
	return parsed, log.Done(), ok
}

func TestDescriptorParsesAllFields(t *testing.T) {
	parsed, msgs, ok := parseDescriptor(t, `{
		"source": "import { dep } from \"./dep\";\nexport const out = dep;\n",
		"exports": "esm",
		"useStrict": true,
		"symbols": ["dep", "out"],
		"topLevel": [1],
		"namedExports": {"out": 1},
		"namedImports": [{"symbol": 0, "alias": "dep", "record": 0}],
		"imports": [{"path": "./dep.json", "kind": "import-statement", "start": 0, "length": 28}],
		"stmts": [
			{"kind": "import", "loc": 0, "text": "import { dep } from \"./dep\";", "record": 0},
			{"kind": "export", "loc": 29, "text": "export const out = dep;",
				"uses": [{"loc": 19, "symbol": 0}]}
		]
	}`)
	require.True(t, ok, "%v", msgs)
	require.Empty(t, msgs)

	assert.Equal(t, graph.ExportsESM, parsed.ExportsKind)
	assert.True(t, parsed.ContainsUseStrict)
	require.NotNil(t, parsed.Contents)
	assert.Equal(t, "import { dep } from \"./dep\";\nexport const out = dep;\n", *parsed.Contents)

	require.Len(t, parsed.Symbols, 2)
	assert.Equal(t, "dep", parsed.Symbols[0].OriginalName)
	assert.Equal(t, ast.InvalidRef, parsed.Symbols[0].Link)

	// Refs use the source index the scanner assigned
	outRef := ast.Ref{SourceIndex: 7, InnerIndex: 1}
	depRef := ast.Ref{SourceIndex: 7, InnerIndex: 0}
	assert.Equal(t, []ast.Ref{outRef}, parsed.TopLevelDecls)
	assert.Equal(t, map[string]ast.Ref{"out": outRef}, parsed.NamedExports)
	assert.Equal(t, map[ast.Ref]graph.NamedImport{
		depRef: {Alias: "dep", ImportRecordIndex: 0},
	}, parsed.NamedImports)

	require.Len(t, parsed.RawImportRecords, 1)
	assert.Equal(t, "./dep.json", parsed.RawImportRecords[0].Path)
	assert.Equal(t, ast.ImportStmt, parsed.RawImportRecords[0].Kind)
	assert.Equal(t, int32(28), parsed.RawImportRecords[0].Range.Len)

	require.Len(t, parsed.Stmts, 2)
	assert.Equal(t, ast.SImport, parsed.Stmts[0].Kind)
	assert.Equal(t, ast.SExportDecl, parsed.Stmts[1].Kind)
	assert.Equal(t, int32(29), parsed.Stmts[1].Loc.Start)
	assert.Equal(t, []ast.NameUse{{Loc: 19, Ref: depRef}}, parsed.Stmts[1].Uses)
}

func TestDescriptorImportKinds(t *testing.T) {
	parsed, msgs, ok := parseDescriptor(t, `{
		"source": "",
		"imports": [
			{"path": "./a", "kind": "import-statement"},
			{"path": "./b", "kind": "dynamic-import"},
			{"path": "./c", "kind": "require-call"}
		]
	}`)
	require.True(t, ok, "%v", msgs)
	require.Len(t, parsed.RawImportRecords, 3)
	assert.Equal(t, ast.ImportStmt, parsed.RawImportRecords[0].Kind)
	assert.Equal(t, ast.ImportDynamic, parsed.RawImportRecords[1].Kind)
	assert.Equal(t, ast.ImportRequire, parsed.RawImportRecords[2].Kind)
	assert.Equal(t, graph.ExportsNone, parsed.ExportsKind)
}

func TestDescriptorRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		expect   string
	}{
		{"InvalidJSON", `{`, "Invalid module descriptor"},
		{"UnknownExportsKind", `{"source": "", "exports": "umd"}`, `unknown exports kind "umd"`},
		{"UnknownImportKind", `{"source": "", "imports": [{"path": "./a", "kind": "side-effect"}]}`,
			`unknown import kind "side-effect"`},
		{"UnknownStmtKind", `{"source": "", "stmts": [{"kind": "class", "text": "x"}]}`,
			`unknown statement kind "class"`},
		{"SymbolOutOfRange", `{"source": "", "symbols": ["a"], "topLevel": [3]}`,
			"symbol index 3 out of range"},
		{"RecordOutOfRange", `{"source": "", "stmts": [{"kind": "import", "text": "x", "record": 0}]}`,
			"import record index 0 out of range"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, msgs, ok := parseDescriptor(t, tc.contents)
			assert.False(t, ok)
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0].Text, tc.expect)
		})
	}
}
