package linker

import (
	"fmt"
	"sort"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/config"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/helpers"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/renamer"
)

type linkerContext struct {
	log     logger.Log
	graph   *graph.LinkerGraph
	options *config.Options

	chunks        []Chunk
	moduleToChunk []ast.Index32

	// One renamer per chunk, indexed like "chunks". Dropped once canonical
	// names are frozen.
	renamers []*renamer.NumberRenamer
}

// Link computes reachability, partitions modules into chunks, computes wrap
// kinds, and resolves every cross-module symbol reference to one canonical
// name per chunk. The returned chunk graph is frozen: rendering reads it
// concurrently without locks.
//
// Returns nil if a link invariant doesn't hold; the details are in the log.
func Link(log logger.Log, g *graph.LinkerGraph, options *config.Options) *ChunkGraph {
	c := linkerContext{
		log:     log,
		graph:   g,
		options: options,
	}

	if !c.checkAllStaticImportsResolved() {
		return nil
	}

	c.computeReachability()
	if !c.matchImportsWithExports() {
		return nil
	}
	c.computeWrapKinds()
	c.computeChunks()
	c.computeCrossChunkDependencies()
	c.computeChunkFileNames()

	return &ChunkGraph{
		Chunks:        c.chunks,
		ModuleToChunk: c.moduleToChunk,
	}
}

// Canonical naming must not begin while any static import edge is unresolved.
// The scan phase reports resolution failures as user errors; reaching this
// point with one still present means the caller ignored them.
func (c *linkerContext) checkAllStaticImportsResolved() bool {
	ok := true
	for moduleIndex := range c.graph.Modules {
		module := &c.graph.Modules[moduleIndex]
		for _, record := range module.ImportRecords {
			if record.Kind.IsStatic() && !record.IsExternal && !record.TargetIndex.IsValid() {
				c.log.AddInternalError(fmt.Sprintf(
					"linking started with unresolved %s for %q in %s",
					record.Kind, record.Path, module.Source.PrettyPath))
				ok = false
			}
		}
	}
	return ok
}

// Each entry point owns one bit position. A module's bit set is the union of
// the bits of every entry point that reaches it through any import edge,
// static or dynamic. The bit sets are frozen once this returns; chunk
// assignment never revises them.
func (c *linkerContext) computeReachability() {
	bitCount := uint(len(c.graph.EntryPoints))
	for moduleIndex := range c.graph.Meta {
		c.graph.Meta[moduleIndex].EntryBits = helpers.NewBitSet(bitCount)
	}
	for i, entryPoint := range c.graph.EntryPoints {
		c.markModuleReachable(entryPoint.ModuleIndex, uint(i))
	}
}

func (c *linkerContext) markModuleReachable(moduleIndex uint32, entryBit uint) {
	meta := &c.graph.Meta[moduleIndex]
	if meta.EntryBits.HasBit(entryBit) {
		return
	}
	meta.EntryBits.SetBit(entryBit)
	meta.IsReached = true

	for _, record := range c.graph.Modules[moduleIndex].ImportRecords {
		if record.TargetIndex.IsValid() {
			c.markModuleReachable(record.TargetIndex.GetIndex(), entryBit)
		}
	}
}

// Each named import is matched with an export of its target module and the
// two symbols are linked, so both sides resolve to one canonical name later.
// A missing export is a user-facing error; all of them are reported, not just
// the first.
func (c *linkerContext) matchImportsWithExports() bool {
	ok := true
	for moduleIndex := range c.graph.Modules {
		module := &c.graph.Modules[moduleIndex]
		if !c.graph.Meta[moduleIndex].IsReached || len(module.NamedImports) == 0 {
			continue
		}

		// Map iteration order must not decide anything user-visible, so the
		// imports are walked in symbol order
		refs := make([]ast.Ref, 0, len(module.NamedImports))
		for ref := range module.NamedImports {
			refs = append(refs, ref)
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].InnerIndex < refs[j].InnerIndex })

		for _, ref := range refs {
			namedImport := module.NamedImports[ref]
			record := &module.ImportRecords[namedImport.ImportRecordIndex]
			if record.IsExternal || !record.TargetIndex.IsValid() {
				continue
			}
			target := &c.graph.Modules[record.TargetIndex.GetIndex()]

			exportRef, found := target.NamedExports[namedImport.Alias]
			if !found {
				c.log.AddRangeError(&module.Source, record.Range, fmt.Sprintf(
					"No matching export in %q for import %q",
					target.Source.PrettyPath, namedImport.Alias))
				ok = false
				continue
			}
			c.graph.Symbols.Get(ref).Link = exportRef
		}
	}
	return ok
}

// Wrap kinds preserve module-system semantics when modules are merged:
//
//   - An ES module pulled in with "require()" defers its initialization
//     behind an "init_xxx" wrapper (WrapESM).
//   - A CommonJS module pulled in with an import statement gets a
//     "require_xxx" wrapper returning its exports object (WrapCJS).
//   - An entry point that is itself CommonJS gets a CJS wrapper under ES
//     module output so "export default require_xxx()" can expose it.
//   - An ES-module entry point on an import cycle defers through an ESM
//     wrapper so circular initialization order is preserved.
//
// All of this is decided here, before rendering, and is read-only afterward.
func (c *linkerContext) computeWrapKinds() {
	for moduleIndex := range c.graph.Modules {
		if !c.graph.Meta[moduleIndex].IsReached {
			continue
		}
		for _, record := range c.graph.Modules[moduleIndex].ImportRecords {
			if !record.TargetIndex.IsValid() {
				continue
			}
			targetIndex := record.TargetIndex.GetIndex()
			target := &c.graph.Modules[targetIndex]

			switch {
			case record.Kind == ast.ImportRequire && target.ExportsKind.IsESM():
				c.wrapModule(targetIndex, graph.WrapESM)
			case record.Kind == ast.ImportStmt && target.ExportsKind == graph.ExportsCommonJS:
				c.wrapModule(targetIndex, graph.WrapCJS)
			}
		}
	}

	if c.options.Format == config.FormatESModule {
		for _, entryPoint := range c.graph.EntryPoints {
			module := &c.graph.Modules[entryPoint.ModuleIndex]
			switch {
			case module.ExportsKind == graph.ExportsCommonJS:
				c.wrapModule(entryPoint.ModuleIndex, graph.WrapCJS)
			case module.ExportsKind.IsESM() && c.isOnImportCycle(entryPoint.ModuleIndex):
				c.wrapModule(entryPoint.ModuleIndex, graph.WrapESM)
			}
		}
	}
}

func (c *linkerContext) wrapModule(moduleIndex uint32, wrap graph.WrapKind) {
	meta := &c.graph.Meta[moduleIndex]
	if meta.Wrap != graph.WrapNone {
		return
	}
	module := &c.graph.Modules[moduleIndex]

	prefix := "init_"
	if wrap == graph.WrapCJS {
		prefix = "require_"
	}

	meta.Wrap = wrap
	meta.WrapperRef = c.graph.GenerateSymbol(moduleIndex, prefix+module.Source.IdentifierName)
}

func (c *linkerContext) isOnImportCycle(moduleIndex uint32) bool {
	visited := make(map[uint32]bool)
	var visit func(index uint32) bool
	visit = func(index uint32) bool {
		if visited[index] {
			return false
		}
		visited[index] = true
		for _, record := range c.graph.Modules[index].ImportRecords {
			if record.Kind.IsStatic() && record.TargetIndex.IsValid() {
				target := record.TargetIndex.GetIndex()
				if target == moduleIndex || visit(target) {
					return true
				}
			}
		}
		return false
	}
	return visit(moduleIndex)
}

// Modules with bit-identical entry bits always share a chunk. Chunk order and
// intra-chunk module order come from one fixed dependency-first traversal in
// entry-point order: dependencies land before their importers, which is the
// order the output needs, and nothing here depends on bit set values or map
// iteration order.
func (c *linkerContext) computeChunks() {
	c.moduleToChunk = make([]ast.Index32, len(c.graph.Modules))
	chunkForKey := make(map[string]uint32)

	newChunk := func(key string) uint32 {
		chunkIndex := uint32(len(c.chunks))
		chunkForKey[key] = chunkIndex
		c.chunks = append(c.chunks, Chunk{
			ImportsFromOtherChunks: make(map[uint32][]CrossChunkImportItem),
			ExportsToOtherChunks:   make(map[ast.Ref]string),
		})
		return chunkIndex
	}

	// Create a chunk for each entry point up front, in entry-point order, so
	// an entry chunk exists even when the entry module's group is otherwise
	// empty. Two entry points can share bits (mutual imports); the first one
	// keeps the chunk.
	for i, entryPoint := range c.graph.EntryPoints {
		meta := &c.graph.Meta[entryPoint.ModuleIndex]
		key := meta.EntryBits.String()
		chunkIndex, ok := chunkForKey[key]
		if !ok {
			chunkIndex = newChunk(key)
		}
		chunk := &c.chunks[chunkIndex]
		if !chunk.EntryModule.IsValid() {
			chunk.EntryModule = ast.MakeIndex32(entryPoint.ModuleIndex)
			chunk.EntryPointBit = uint(i)
			chunk.Name = entryPoint.OutputName
			chunk.EntryBits = meta.EntryBits
		}
	}

	// One fixed traversal assigns every reached module to its group.
	// Post-order: a module is appended after everything it imports.
	visited := make([]bool, len(c.graph.Modules))
	var visit func(moduleIndex uint32)
	visit = func(moduleIndex uint32) {
		if visited[moduleIndex] {
			return
		}
		visited[moduleIndex] = true

		for _, record := range c.graph.Modules[moduleIndex].ImportRecords {
			if record.TargetIndex.IsValid() {
				visit(record.TargetIndex.GetIndex())
			}
		}

		meta := &c.graph.Meta[moduleIndex]
		key := meta.EntryBits.String()
		chunkIndex, ok := chunkForKey[key]
		if !ok {
			chunkIndex = newChunk(key)
			c.chunks[chunkIndex].EntryBits = meta.EntryBits
		}
		c.chunks[chunkIndex].Modules = append(c.chunks[chunkIndex].Modules, moduleIndex)
		c.moduleToChunk[moduleIndex] = ast.MakeIndex32(chunkIndex)
	}
	for _, entryPoint := range c.graph.EntryPoints {
		visit(entryPoint.ModuleIndex)
	}
}

// computeCrossChunkDependencies assigns canonical names and synthesizes the
// cross-chunk import/export maps. Two passes: first every chunk names its own
// top-level declarations in discovery order, then symbol uses that cross a
// chunk boundary are wired up. The maps are fully populated before any chunk
// begins rendering.
func (c *linkerContext) computeCrossChunkDependencies() {
	c.renamers = make([]*renamer.NumberRenamer, len(c.chunks))

	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]
		r := renamer.NewNumberRenamer(c.graph.Symbols)
		c.renamers[chunkIndex] = r

		for _, moduleIndex := range chunk.Modules {
			module := &c.graph.Modules[moduleIndex]
			for _, ref := range module.TopLevelDecls {
				r.AssignName(ref)
			}
			if meta := &c.graph.Meta[moduleIndex]; meta.Wrap != graph.WrapNone {
				r.AssignName(meta.WrapperRef)
			}
		}
	}

	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]

		// Refs already imported into this chunk, so a second use reuses the
		// existing local alias instead of adding another import item
		imported := make(map[ast.Ref]bool)

		for _, moduleIndex := range chunk.Modules {
			module := &c.graph.Modules[moduleIndex]
			for stmtIndex := range module.Stmts {
				for _, use := range module.Stmts[stmtIndex].Uses {
					c.wireSymbolUse(uint32(chunkIndex), imported, use.Ref)
				}
			}
		}
	}

	// Freeze the canonical-name overlays
	for chunkIndex := range c.chunks {
		c.chunks[chunkIndex].CanonicalNames = c.renamers[chunkIndex].CanonicalNames()
	}
	c.renamers = nil
}

func (c *linkerContext) wireSymbolUse(chunkIndex uint32, imported map[ast.Ref]bool, ref ast.Ref) {
	ref = ast.FollowSymbols(c.graph.Symbols, ref)

	ownerChunk := c.moduleToChunk[ref.SourceIndex]
	if !ownerChunk.IsValid() {
		// The declaring module was never reached. The render phase reports
		// this as an unresolved reference if the use survives.
		return
	}

	if ownerChunk.GetIndex() == chunkIndex {
		// Locally declared. Top-level declarations are already named; this
		// also covers symbols discovered only through uses.
		c.renamers[chunkIndex].AssignName(ref)
		return
	}

	if imported[ref] {
		return
	}
	imported[ref] = true

	// The exporting chunk records one stable alias per symbol
	exportingIndex := ownerChunk.GetIndex()
	exporting := &c.chunks[exportingIndex]
	alias, ok := exporting.ExportsToOtherChunks[ref]
	if !ok {
		alias = c.renamers[exportingIndex].AssignName(ref)
		exporting.ExportsToOtherChunks[ref] = alias
		exporting.exportOrder = append(exporting.exportOrder, ref)
	}

	// The importing chunk appends a new import item in discovery order
	chunk := &c.chunks[chunkIndex]
	if _, ok := chunk.ImportsFromOtherChunks[exportingIndex]; !ok {
		chunk.importedChunkOrder = append(chunk.importedChunkOrder, exportingIndex)
	}
	chunk.ImportsFromOtherChunks[exportingIndex] = append(
		chunk.ImportsFromOtherChunks[exportingIndex],
		CrossChunkImportItem{ExportAlias: alias, Ref: ref})

	// The local binding gets a canonical name in the importing chunk too
	c.renamers[chunkIndex].AssignName(ref)
}

func (c *linkerContext) computeChunkFileNames() {
	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]
		keyPaths := make([]string, len(chunk.Modules))
		for i, moduleIndex := range chunk.Modules {
			keyPaths[i] = c.graph.Modules[moduleIndex].Source.KeyPath.Text
		}
		chunk.renderFileName(c.options, keyPaths)
	}
}
