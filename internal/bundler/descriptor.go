package bundler

// Module descriptors are pre-parsed module bodies in JSON form, produced by a
// host tool that already ran a real JavaScript parser. The descriptor carries
// the original source text plus the statement list with recorded identifier
// offsets, which is everything linking and rendering need.
//
// Descriptor shape:
//
//	{
//	  "source": "import { x } from \"./b.js\";\nconsole.log(x);\n",
//	  "exports": "esm",
//	  "useStrict": false,
//	  "symbols": ["x"],
//	  "topLevel": [],
//	  "namedExports": {},
//	  "namedImports": [{"symbol": 0, "alias": "x", "record": 0}],
//	  "imports": [{"path": "./b.js", "kind": "import-statement", "start": 0, "length": 27}],
//	  "stmts": [
//	    {"kind": "import", "loc": 0, "text": "import { x } from \"./b.js\";", "record": 0},
//	    {"kind": "other", "loc": 28, "text": "console.log(x);", "uses": [{"loc": 12, "symbol": 0}]}
//	  ]
//	}

import (
	"encoding/json"
	"fmt"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/logger"
)

type descriptorJSON struct {
	Source    string `json:"source"`
	Exports   string `json:"exports"`
	UseStrict bool   `json:"useStrict"`

	Symbols      []string          `json:"symbols"`
	TopLevel     []uint32          `json:"topLevel"`
	NamedExports map[string]uint32 `json:"namedExports"`

	NamedImports []struct {
		Symbol uint32 `json:"symbol"`
		Alias  string `json:"alias"`
		Record uint32 `json:"record"`
	} `json:"namedImports"`

	Imports []struct {
		Path   string `json:"path"`
		Kind   string `json:"kind"`
		Start  int32  `json:"start"`
		Length int32  `json:"length"`
	} `json:"imports"`

	Stmts []struct {
		Kind   string `json:"kind"`
		Loc    int32  `json:"loc"`
		Text   string `json:"text"`
		Record uint32 `json:"record"`
		Uses   []struct {
			Loc    int32  `json:"loc"`
			Symbol uint32 `json:"symbol"`
		} `json:"uses"`
	} `json:"stmts"`
}

// DescriptorParser is the ModuleParser for JSON module descriptors.
type DescriptorParser struct{}

func (DescriptorParser) Parse(log logger.Log, source logger.Source) (ParsedModule, bool) {
	var desc descriptorJSON
	if err := json.Unmarshal([]byte(source.Contents), &desc); err != nil {
		log.AddError(nil, logger.Loc{}, fmt.Sprintf(
			"Invalid module descriptor for %s: %s", source.PrettyPath, err.Error()))
		return ParsedModule{}, false
	}

	ref := func(innerIndex uint32) (ast.Ref, bool) {
		if innerIndex >= uint32(len(desc.Symbols)) {
			log.AddError(nil, logger.Loc{}, fmt.Sprintf(
				"Invalid module descriptor for %s: symbol index %d out of range",
				source.PrettyPath, innerIndex))
			return ast.InvalidRef, false
		}
		return ast.Ref{SourceIndex: source.Index, InnerIndex: innerIndex}, true
	}

	parsed := ParsedModule{
		Symbols:           ast.MakeSymbols(desc.Symbols...),
		ContainsUseStrict: desc.UseStrict,
		Contents:          &desc.Source,
	}

	switch desc.Exports {
	case "esm":
		parsed.ExportsKind = graph.ExportsESM
	case "cjs":
		parsed.ExportsKind = graph.ExportsCommonJS
	case "none", "":
		parsed.ExportsKind = graph.ExportsNone
	default:
		log.AddError(nil, logger.Loc{}, fmt.Sprintf(
			"Invalid module descriptor for %s: unknown exports kind %q", source.PrettyPath, desc.Exports))
		return ParsedModule{}, false
	}

	for _, record := range desc.Imports {
		kind, ok := importKindFromString(record.Kind)
		if !ok {
			log.AddError(nil, logger.Loc{}, fmt.Sprintf(
				"Invalid module descriptor for %s: unknown import kind %q", source.PrettyPath, record.Kind))
			return ParsedModule{}, false
		}
		raw := ast.MakeRawImportRecord(record.Path, kind, ast.InvalidRef)
		raw.Range = logger.Range{Loc: logger.Loc{Start: record.Start}, Len: record.Length}
		parsed.RawImportRecords = append(parsed.RawImportRecords, raw)
	}

	for _, innerIndex := range desc.TopLevel {
		r, ok := ref(innerIndex)
		if !ok {
			return ParsedModule{}, false
		}
		parsed.TopLevelDecls = append(parsed.TopLevelDecls, r)
	}

	if len(desc.NamedExports) > 0 {
		parsed.NamedExports = make(map[string]ast.Ref, len(desc.NamedExports))
		for alias, innerIndex := range desc.NamedExports {
			r, ok := ref(innerIndex)
			if !ok {
				return ParsedModule{}, false
			}
			parsed.NamedExports[alias] = r
		}
	}

	if len(desc.NamedImports) > 0 {
		parsed.NamedImports = make(map[ast.Ref]graph.NamedImport, len(desc.NamedImports))
		for _, namedImport := range desc.NamedImports {
			r, ok := ref(namedImport.Symbol)
			if !ok {
				return ParsedModule{}, false
			}
			if namedImport.Record >= uint32(len(parsed.RawImportRecords)) {
				log.AddError(nil, logger.Loc{}, fmt.Sprintf(
					"Invalid module descriptor for %s: import record index %d out of range",
					source.PrettyPath, namedImport.Record))
				return ParsedModule{}, false
			}
			parsed.NamedImports[r] = graph.NamedImport{
				Alias:             namedImport.Alias,
				ImportRecordIndex: namedImport.Record,
			}
		}
	}

	for _, stmt := range desc.Stmts {
		out := ast.Stmt{
			Text:              stmt.Text,
			Loc:               logger.Loc{Start: stmt.Loc},
			ImportRecordIndex: stmt.Record,
		}
		switch stmt.Kind {
		case "import":
			out.Kind = ast.SImport
			if stmt.Record >= uint32(len(parsed.RawImportRecords)) {
				log.AddError(nil, logger.Loc{}, fmt.Sprintf(
					"Invalid module descriptor for %s: import record index %d out of range",
					source.PrettyPath, stmt.Record))
				return ParsedModule{}, false
			}
		case "export":
			out.Kind = ast.SExportDecl
		case "other", "":
			out.Kind = ast.SOther
		default:
			log.AddError(nil, logger.Loc{}, fmt.Sprintf(
				"Invalid module descriptor for %s: unknown statement kind %q", source.PrettyPath, stmt.Kind))
			return ParsedModule{}, false
		}
		for _, use := range stmt.Uses {
			r, ok := ref(use.Symbol)
			if !ok {
				return ParsedModule{}, false
			}
			out.Uses = append(out.Uses, ast.NameUse{Loc: use.Loc, Ref: r})
		}
		parsed.Stmts = append(parsed.Stmts, out)
	}

	return parsed, true
}

func importKindFromString(text string) (ast.ImportKind, bool) {
	switch text {
	case "import-statement", "":
		return ast.ImportStmt, true
	case "dynamic-import":
		return ast.ImportDynamic, true
	case "require-call":
		return ast.ImportRequire, true
	}
	return 0, false
}
