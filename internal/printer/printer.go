package printer

// The default per-module renderer. It operates on the statement-level module
// body: imports are dropped or preserved, "export" keywords are stripped, and
// every recorded identifier occurrence is replaced by its canonical name. It
// never parses; offsets were recorded by the real parser.

import (
	"fmt"
	"strings"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/linker"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/sourcemap"
)

// RenderModule satisfies linker.RenderModuleFn. It returns nil for ignored
// and empty modules so they keep their graph position without contributing
// code.
func RenderModule(
	module *graph.Module,
	canonicalNames map[ast.Ref]string,
	g *graph.LinkerGraph,
	chunkGraph *linker.ChunkGraph,
) (*linker.ModuleRenderOutput, error) {
	if module.IsIgnored || len(module.Stmts) == 0 {
		return nil, nil
	}

	meta := &g.Meta[module.Source.Index]
	lineStarts := computeLineStarts(module.Source.Contents)

	p := printer{
		module:         module,
		graph:          g,
		canonicalNames: canonicalNames,
		lineStarts:     lineStarts,
	}

	switch meta.Wrap {
	case graph.WrapNone:
		p.printBody("")

	case graph.WrapESM:
		wrapper, err := p.wrapperName(meta)
		if err != nil {
			return nil, err
		}
		p.printLine("var " + wrapper + " = __esm(() => {")
		p.printBody("  ")
		p.printLine("});")

	case graph.WrapCJS:
		wrapper, err := p.wrapperName(meta)
		if err != nil {
			return nil, err
		}
		p.printLine("var " + wrapper + " = __commonJS((exports, module) => {")
		p.printBody("  ")
		p.printLine("});")
	}

	if p.err != nil {
		return nil, p.err
	}
	code := strings.TrimSuffix(p.sb.String(), "\n")
	if code == "" {
		return nil, nil
	}

	output := &linker.ModuleRenderOutput{
		ModulePath: module.Source.KeyPath,
		PrettyPath: module.Source.PrettyPath,
		Code:       code,
		LinesCount: int32(strings.Count(code, "\n")) + 1,
		Map: &sourcemap.SourceMap{
			Sources:        []string{module.Source.KeyPath.Text},
			SourcesContent: []string{module.Source.Contents},
			Mappings:       p.mappings,
		},
	}

	// Virtual modules stay out of introspection metadata
	if !module.Source.KeyPath.IsVirtual() {
		output.NameMapping = p.nameMapping()
	}
	return output, nil
}

type printer struct {
	module         *graph.Module
	graph          *graph.LinkerGraph
	canonicalNames map[ast.Ref]string
	lineStarts     []int32

	sb       strings.Builder
	mappings []sourcemap.Mapping
	line     int32
	err      error
}

func (p *printer) printLine(text string) {
	p.sb.WriteString(text)
	p.sb.WriteByte('\n')
	p.line += int32(strings.Count(text, "\n")) + 1
}

func (p *printer) printBody(indent string) {
	for stmtIndex := range p.module.Stmts {
		stmt := &p.module.Stmts[stmtIndex]

		if stmt.Kind == ast.SImport {
			record := &p.module.ImportRecords[stmt.ImportRecordIndex]
			if !record.IsExternal {
				// The binding is satisfied in-chunk or by the chunk's
				// generated import preamble
				continue
			}
		}

		text := p.substituteNames(stmt)
		if p.err != nil {
			return
		}
		if stmt.Kind == ast.SExportDecl {
			text = strings.TrimPrefix(text, "export ")
		}

		originalLine, originalColumn := p.locate(stmt.Loc)
		p.mappings = append(p.mappings, sourcemap.Mapping{
			GeneratedLine:   p.line,
			GeneratedColumn: int32(len(indent)),
			OriginalLine:    originalLine,
			OriginalColumn:  originalColumn,
		})

		if indent != "" {
			text = indent + strings.ReplaceAll(text, "\n", "\n"+indent)
		}
		p.printLine(text)
	}
}

// substituteNames rewrites a statement's text so every recorded identifier
// occurrence uses its canonical name. A reference with no canonical name is
// an unresolved symbol escaping the chunk, which linking promised can't
// happen.
func (p *printer) substituteNames(stmt *ast.Stmt) string {
	if len(stmt.Uses) == 0 {
		return stmt.Text
	}

	sb := strings.Builder{}
	end := int32(0)
	for _, use := range stmt.Uses {
		original := p.graph.Symbols.Get(use.Ref).OriginalName
		followed := ast.FollowSymbols(p.graph.Symbols, use.Ref)
		canonical, ok := p.canonicalNames[followed]
		if !ok {
			p.err = fmt.Errorf("unresolved reference to %q in %s",
				original, p.module.Source.PrettyPath)
			return ""
		}
		sb.WriteString(stmt.Text[end:use.Loc])
		sb.WriteString(canonical)
		end = use.Loc + int32(len(original))
	}
	sb.WriteString(stmt.Text[end:])
	return sb.String()
}

func (p *printer) wrapperName(meta *graph.ModuleMeta) (string, error) {
	ref := ast.FollowSymbols(p.graph.Symbols, meta.WrapperRef)
	name, ok := p.canonicalNames[ref]
	if !ok {
		return "", fmt.Errorf("missing wrapper name for %s", p.module.Source.PrettyPath)
	}
	return name, nil
}

func (p *printer) nameMapping() map[string]string {
	mapping := make(map[string]string)
	record := func(ref ast.Ref) {
		original := p.graph.Symbols.Get(ref).OriginalName
		followed := ast.FollowSymbols(p.graph.Symbols, ref)
		if canonical, ok := p.canonicalNames[followed]; ok {
			mapping[original] = canonical
		}
	}
	for _, ref := range p.module.TopLevelDecls {
		record(ref)
	}
	for stmtIndex := range p.module.Stmts {
		for _, use := range p.module.Stmts[stmtIndex].Uses {
			record(use.Ref)
		}
	}
	return mapping
}

// locate converts a byte offset into 0-based line and column
func (p *printer) locate(loc logger.Loc) (line int32, column int32) {
	starts := p.lineStarts
	lo, hi := 0, len(starts)
	for lo < hi {
		mid := (lo + hi) / 2
		if starts[mid] <= loc.Start {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	line = int32(lo - 1)
	column = loc.Start - starts[line]
	return
}

func computeLineStarts(contents string) []int32 {
	starts := []int32{0}
	for i := 0; i < len(contents); i++ {
		if contents[i] == '\n' {
			starts = append(starts, int32(i+1))
		}
	}
	return starts
}
