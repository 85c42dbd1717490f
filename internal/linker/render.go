package linker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/cache"
	"github.com/rollpack/rollpack/internal/config"
	"github.com/rollpack/rollpack/internal/fs"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/runtime"
	"github.com/rollpack/rollpack/internal/sourcemap"
)

// ModuleRenderOutput is the fragment produced by the per-module renderer.
// The renderer is a collaborator: it only reads its own module, the chunk's
// already-finalized canonical names, and shared read-only graph metadata.
type ModuleRenderOutput struct {
	ModulePath logger.Path

	// For path comments only, never semantic
	PrettyPath string

	// Original name to canonical name, for introspection. Virtual module
	// paths are filtered out by the renderer.
	NameMapping map[string]string

	Code       string
	Map        *sourcemap.SourceMap
	LinesCount int32
}

// RenderModuleFn renders one member module. A nil output (with nil error) is
// permitted for empty or ignored modules. Must be a pure function of its
// arguments: no blocking I/O, no shared mutation.
type RenderModuleFn func(
	module *graph.Module,
	canonicalNames map[ast.Ref]string,
	g *graph.LinkerGraph,
	chunkGraph *ChunkGraph,
) (*ModuleRenderOutput, error)

// RenderCache memoizes module fragments across renders of unchanged modules
type RenderCache = cache.Cache[*ModuleRenderOutput]

func NewRenderCache(size int) (*RenderCache, error) {
	return cache.New[*ModuleRenderOutput](size)
}

// ChunkRenderOutput is the per-chunk artifact handed back to the bundler.
type ChunkRenderOutput struct {
	Code string
	Map  *sourcemap.SourceMap

	// Format-agnostic summary, identical to the one the banner/footer
	// callbacks saw
	RenderedChunk config.RenderedChunk

	// Absolute output directory of this chunk's file
	FileDir string

	PreliminaryFileName string
}

// OutputFile is one file the bundler will write to disk
type OutputFile struct {
	AbsPath  string
	Contents []byte
}

// RenderChunk turns one linked chunk into final text plus a composite source
// map. Stage order is fixed:
//
//  1. cross-chunk import preamble
//  2. member modules, rendered in parallel, concatenated in module order
//  3. "use strict" for CommonJS output when every member allows it
//  4. entry wrapper invocation (ES module output only)
//  5. export block (omitted for the app format)
//  6. footer callback
//  7. concatenation + source map stitching
//  8. banner callback, prepended before everything
//
// Failure returns false with the details in the log; no partial output.
func RenderChunk(
	ctx context.Context,
	log logger.Log,
	g *graph.LinkerGraph,
	chunkGraph *ChunkGraph,
	chunkIndex uint32,
	options *config.Options,
	renderModule RenderModuleFn,
	fsys fs.FS,
	renderCache *RenderCache,
) (ChunkRenderOutput, bool) {
	chunk := &chunkGraph.Chunks[chunkIndex]

	// These are broken upstream invariants, not user errors. Never default.
	if chunk.PreliminaryFileName == "" {
		log.AddInternalError(fmt.Sprintf("chunk %d has no preliminary file name", chunkIndex))
		return ChunkRenderOutput{}, false
	}
	filePath := fsys.Join(options.AbsOutputDir, chunk.PreliminaryFileName)
	fileDir := fsys.Dir(filePath)
	if fileDir == filePath {
		log.AddInternalError(fmt.Sprintf("chunk file path %q has no parent directory", filePath))
		return ChunkRenderOutput{}, false
	}

	concat := sourcemap.ConcatSource{}

	// Stage 1: one import statement per chunk imported from, in the order
	// the chunks were first discovered
	if options.Format != config.FormatApp {
		if imports := renderChunkImports(chunk, chunkGraph, options); imports != "" {
			concat.AddRawSource(imports)
		}
	}

	// Wrapped modules reference the "__esm"/"__commonJS" helpers, which are
	// emitted once per chunk, ahead of all member modules
	for _, moduleIndex := range chunk.Modules {
		if g.Meta[moduleIndex].Wrap != graph.WrapNone {
			concat.AddRawSource(runtime.Helpers)
			break
		}
	}

	// Stage 2: render member modules data-parallel, then fold the fragments
	// in static module order. Completion order never leaks into the output.
	results := make([]*ModuleRenderOutput, len(chunk.Modules))
	renderErrs := make([]error, len(chunk.Modules))
	group, groupCtx := errgroup.WithContext(ctx)
	if options.RenderWorkers > 0 {
		group.SetLimit(options.RenderWorkers)
	}
	for i, moduleIndex := range chunk.Modules {
		i, moduleIndex := i, moduleIndex
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				renderErrs[i] = err
				return nil
			}
			module := &g.Modules[moduleIndex]

			if renderCache != nil {
				key := moduleRenderKey(module, chunk, g)
				if output, ok := renderCache.Get(key); ok {
					results[i] = output
					return nil
				}
				output, err := renderModule(module, chunk.CanonicalNames, g, chunkGraph)
				if err != nil {
					renderErrs[i] = err
					return nil
				}
				renderCache.Add(key, output)
				results[i] = output
				return nil
			}

			output, err := renderModule(module, chunk.CanonicalNames, g, chunkGraph)
			if err != nil {
				// Collected below; sibling renders keep going so one build
				// attempt surfaces as many diagnostics as possible
				renderErrs[i] = err
				return nil
			}
			results[i] = output
			return nil
		})
	}
	group.Wait()

	hasRenderErrors := false
	for i, err := range renderErrs {
		if err != nil {
			hasRenderErrors = true
			module := &g.Modules[chunk.Modules[i]]
			log.AddError(&module.Source, logger.Loc{}, err.Error())
		}
	}
	if hasRenderErrors {
		return ChunkRenderOutput{}, false
	}

	for _, output := range results {
		if output == nil {
			continue
		}
		concat.AddRawSource("// " + output.PrettyPath)
		concat.AddMappedSource(output.Code, output.Map)
	}

	// Stage 3: a CommonJS chunk is strict only if every member module is
	// either of ES-module export kind or textually already strict. Never
	// assume strict for possibly-sloppy content.
	if options.Format == config.FormatCommonJS {
		allStrict := true
		for _, moduleIndex := range chunk.Modules {
			module := &g.Modules[moduleIndex]
			if !module.ExportsKind.IsESM() && !module.ContainsUseStrict {
				allStrict = false
				break
			}
		}
		if allStrict {
			concat.PrependRawSource("\"use strict\";\n")
		}
	}

	// Stage 4: entry wrapper invocation, ES module output only
	if options.Format == config.FormatESModule && chunk.IsEntryPoint() {
		entryIndex := chunk.EntryModule.GetIndex()
		meta := &g.Meta[entryIndex]
		if meta.Wrap != graph.WrapNone {
			ref := ast.FollowSymbols(g.Symbols, meta.WrapperRef)
			name, ok := chunk.CanonicalNames[ref]
			if !ok {
				log.AddInternalError(fmt.Sprintf(
					"entry chunk %q is missing its wrapper symbol", chunk.PreliminaryFileName))
				return ChunkRenderOutput{}, false
			}
			switch meta.Wrap {
			case graph.WrapESM:
				concat.AddRawSource(name + "();")
			case graph.WrapCJS:
				concat.AddRawSource("export default " + name + "();")
			}
		}
	}

	// Stage 5: export block, omitted for the app format
	if options.Format != config.FormatApp {
		if exports := renderChunkExports(chunk, g, options); exports != "" {
			concat.AddRawSource(exports)
		}
	}

	// The summary must be complete before either callback runs; both see the
	// same read-only value
	summary := renderedChunkSummary(chunk, chunkGraph, g)

	// Stage 6: footer, awaited only after all code generation is done
	if options.Footer != nil {
		text, err := options.Footer(ctx, &summary)
		if err != nil {
			log.AddMsg(logger.Msg{Kind: logger.Error, Text: "footer: " + err.Error()})
			return ChunkRenderOutput{}, false
		}
		if text != "" {
			concat.AddRawSource(text)
		}
	}

	// Stage 8 before stage 7 in call order: the banner is awaited after
	// everything else yet physically prepended first, so a banner carrying a
	// shebang ends up as the file's first bytes
	if options.Banner != nil {
		text, err := options.Banner(ctx, &summary)
		if err != nil {
			log.AddMsg(logger.Msg{Kind: logger.Error, Text: "banner: " + err.Error()})
			return ChunkRenderOutput{}, false
		}
		if text != "" {
			concat.PrependRawSource(text)
		}
	}

	// Stage 7: one buffer, one composite map. Mapped source paths become
	// relative to this chunk's output directory with no further
	// normalization; downstream tooling depends on the raw relative form.
	code, outputMap := concat.ContentAndSourceMap()
	if outputMap != nil {
		for i, source := range outputMap.Sources {
			if rel, ok := fsys.Rel(fileDir, source); ok {
				outputMap.Sources[i] = rel
			}
		}
	}

	return ChunkRenderOutput{
		Code:                code,
		Map:                 outputMap,
		RenderedChunk:       summary,
		FileDir:             fileDir,
		PreliminaryFileName: chunk.PreliminaryFileName,
	}, true
}

// GenerateChunks renders every chunk on its own goroutine. Chunk state is
// frozen by the link phase, no chunk's render touches another chunk's state,
// and fragment order is pinned, so the output is byte-identical across runs
// regardless of scheduling.
func GenerateChunks(
	ctx context.Context,
	log logger.Log,
	g *graph.LinkerGraph,
	chunkGraph *ChunkGraph,
	options *config.Options,
	renderModule RenderModuleFn,
	fsys fs.FS,
	renderCache *RenderCache,
) []OutputFile {
	outputs := make([]ChunkRenderOutput, len(chunkGraph.Chunks))
	oks := make([]bool, len(chunkGraph.Chunks))

	waitGroup := sync.WaitGroup{}
	waitGroup.Add(len(chunkGraph.Chunks))
	for chunkIndex := range chunkGraph.Chunks {
		go func(chunkIndex uint32) {
			defer waitGroup.Done()
			outputs[chunkIndex], oks[chunkIndex] = RenderChunk(
				ctx, log, g, chunkGraph, chunkIndex, options, renderModule, fsys, renderCache)
		}(uint32(chunkIndex))
	}
	waitGroup.Wait()

	var outputFiles []OutputFile
	for chunkIndex := range outputs {
		if !oks[chunkIndex] {
			continue
		}
		output := &outputs[chunkIndex]
		filePath := fsys.Join(output.FileDir, fsys.Base(output.PreliminaryFileName))

		code := output.Code
		if output.Map != nil {
			mapPath := filePath + ".map"
			if !strings.HasSuffix(code, "\n") {
				code += "\n"
			}
			code += "//# sourceMappingURL=" + fsys.Base(mapPath) + "\n"
			outputFiles = append(outputFiles, OutputFile{
				AbsPath:  mapPath,
				Contents: output.Map.EncodeJSON(),
			})
		}
		outputFiles = append(outputFiles, OutputFile{
			AbsPath:  filePath,
			Contents: []byte(code),
		})
	}
	return outputFiles
}

func renderChunkImports(chunk *Chunk, chunkGraph *ChunkGraph, options *config.Options) string {
	sb := strings.Builder{}
	for _, importedIndex := range chunk.importedChunkOrder {
		imported := &chunkGraph.Chunks[importedIndex]
		items := chunk.ImportsFromOtherChunks[importedIndex]

		clauses := make([]string, 0, len(items))
		for _, item := range items {
			local := chunk.CanonicalNames[item.Ref]
			if item.ExportAlias == local {
				clauses = append(clauses, local)
			} else if options.Format == config.FormatCommonJS {
				clauses = append(clauses, item.ExportAlias+": "+local)
			} else {
				clauses = append(clauses, item.ExportAlias+" as "+local)
			}
		}

		path := "./" + imported.PreliminaryFileName
		switch options.Format {
		case config.FormatESModule:
			sb.WriteString("import { ")
			sb.WriteString(strings.Join(clauses, ", "))
			sb.WriteString(" } from \"")
			sb.WriteString(path)
			sb.WriteString("\";\n")
		case config.FormatCommonJS:
			sb.WriteString("const { ")
			sb.WriteString(strings.Join(clauses, ", "))
			sb.WriteString(" } = require(\"")
			sb.WriteString(path)
			sb.WriteString("\");\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func renderChunkExports(chunk *Chunk, g *graph.LinkerGraph, options *config.Options) string {
	type exportItem struct {
		alias string
		name  string
	}
	var items []exportItem

	if chunk.IsEntryPoint() {
		// The entry module's named exports become the chunk's public surface.
		// Aliases are emitted in sorted order for reproducible output.
		module := &g.Modules[chunk.EntryModule.GetIndex()]
		aliases := make([]string, 0, len(module.NamedExports))
		for alias := range module.NamedExports {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			ref := ast.FollowSymbols(g.Symbols, module.NamedExports[alias])
			items = append(items, exportItem{alias: alias, name: chunk.CanonicalNames[ref]})
		}
	} else {
		// Shared chunks export whatever other chunks import, in discovery order
		for _, ref := range chunk.exportOrder {
			items = append(items, exportItem{
				alias: chunk.ExportsToOtherChunks[ref],
				name:  chunk.CanonicalNames[ref],
			})
		}
	}

	if len(items) == 0 {
		return ""
	}

	switch options.Format {
	case config.FormatESModule:
		clauses := make([]string, len(items))
		for i, item := range items {
			if item.alias == item.name {
				clauses[i] = item.name
			} else {
				clauses[i] = item.name + " as " + item.alias
			}
		}
		return "export { " + strings.Join(clauses, ", ") + " };"

	case config.FormatCommonJS:
		sb := strings.Builder{}
		for _, item := range items {
			sb.WriteString("exports.")
			sb.WriteString(item.alias)
			sb.WriteString(" = ")
			sb.WriteString(item.name)
			sb.WriteString(";\n")
		}
		return strings.TrimSuffix(sb.String(), "\n")
	}
	return ""
}

func renderedChunkSummary(chunk *Chunk, chunkGraph *ChunkGraph, g *graph.LinkerGraph) config.RenderedChunk {
	summary := config.RenderedChunk{
		FileName: chunk.PreliminaryFileName,
		IsEntry:  chunk.IsEntryPoint(),
	}

	for _, moduleIndex := range chunk.Modules {
		module := &g.Modules[moduleIndex]
		// Virtual module paths can't round-trip through host APIs
		if module.Source.KeyPath.IsVirtual() {
			continue
		}
		summary.Modules = append(summary.Modules, module.Source.PrettyPath)
	}

	for _, importedIndex := range chunk.importedChunkOrder {
		summary.Imports = append(summary.Imports, chunkGraph.Chunks[importedIndex].PreliminaryFileName)
	}

	if chunk.IsEntryPoint() {
		module := &g.Modules[chunk.EntryModule.GetIndex()]
		aliases := make([]string, 0, len(module.NamedExports))
		for alias := range module.NamedExports {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		summary.Exports = aliases
	} else {
		for _, ref := range chunk.exportOrder {
			summary.Exports = append(summary.Exports, chunk.ExportsToOtherChunks[ref])
		}
	}

	return summary
}

// moduleRenderKey mixes everything a module render depends on: the module
// text, the wrap kind and wrapper name, which import records stay external,
// and the canonical names its statements resolve to. A cache may outlive one
// link result, so link-computed state that shapes the fragment has to be part
// of the key. Two renders with the same key produce the same fragment.
func moduleRenderKey(module *graph.Module, chunk *Chunk, g *graph.LinkerGraph) uint64 {
	meta := &g.Meta[module.Source.Index]

	sb := strings.Builder{}
	sb.WriteByte(byte(meta.Wrap))
	if meta.Wrap != graph.WrapNone {
		ref := ast.FollowSymbols(g.Symbols, meta.WrapperRef)
		sb.WriteString(chunk.CanonicalNames[ref])
	}
	sb.WriteByte(0)
	for _, record := range module.ImportRecords {
		if record.IsExternal {
			sb.WriteByte(1)
		} else {
			sb.WriteByte(0)
		}
	}
	sb.WriteByte(0)
	for _, stmt := range module.Stmts {
		for _, use := range stmt.Uses {
			ref := ast.FollowSymbols(g.Symbols, use.Ref)
			sb.WriteString(chunk.CanonicalNames[ref])
			sb.WriteByte(0)
		}
	}
	return cache.Key(module.Source.KeyPath.Text, module.Source.Contents, sb.String())
}
