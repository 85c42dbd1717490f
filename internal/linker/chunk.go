package linker

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/config"
	"github.com/rollpack/rollpack/internal/helpers"
)

// CrossChunkImportItem is one generated binding between two chunks. The list
// order inside a chunk import is first-discovery order because it's emitted
// verbatim into generated code and must be reproducible across builds.
type CrossChunkImportItem struct {
	// The alias under which the exporting chunk exposes the symbol. Empty
	// only while linking is still in progress.
	ExportAlias string

	// The imported symbol
	Ref ast.Ref
}

// Chunk is one emitted output file containing one or more bundled modules.
type Chunk struct {
	// Member module indices, all sharing one entry-bits value, in
	// first-discovery order
	Modules []uint32

	// Only valid for entry chunks
	EntryModule   ast.Index32
	EntryPointBit uint

	// The logical name used by the "[name]" placeholder; empty for
	// anonymously named shared chunks
	Name string

	EntryBits helpers.BitSet

	// Symbol ref to final identifier, unique within the chunk. Frozen before
	// rendering starts.
	CanonicalNames map[ast.Ref]string

	// Generated imports, grouped by the chunk imported from. The keys of the
	// map are chunk indices; iteration uses importedChunkOrder, never the map.
	ImportsFromOtherChunks map[uint32][]CrossChunkImportItem

	// Chunk indices in the order another chunk was first imported from
	importedChunkOrder []uint32

	// Aliases this chunk exposes to other chunks. Meaningless for entry
	// chunks with no importer.
	ExportsToOtherChunks map[ast.Ref]string

	// Refs in the order they were first exported, for deterministic output
	exportOrder []ast.Ref

	// The output file name before any final-path adjustments. Rendering a
	// chunk without one is a broken upstream invariant.
	PreliminaryFileName string
}

func (chunk *Chunk) IsEntryPoint() bool {
	return chunk.EntryModule.IsValid()
}

// ChunkGraph owns all chunks and the inverse module-to-chunk mapping. Each
// module belongs to exactly one chunk.
type ChunkGraph struct {
	Chunks []Chunk

	// Module index to chunk index; invalid for unreached modules
	ModuleToChunk []ast.Index32
}

func (cg *ChunkGraph) ChunkForModule(moduleIndex uint32) (uint32, bool) {
	index := cg.ModuleToChunk[moduleIndex]
	if !index.IsValid() {
		return 0, false
	}
	return index.GetIndex(), true
}

// renderFileName materializes a chunk's preliminary output file name. This is
// a pure function of the template and the chunk's own identity: the "[hash]"
// placeholder is fed from the member modules' key paths, which are fixed
// before rendering.
func (chunk *Chunk) renderFileName(options *config.Options, moduleKeyPaths []string) {
	var template string
	name := chunk.Name
	if chunk.IsEntryPoint() {
		template = options.EntryNamesOrDefault()
	} else {
		template = options.ChunkNamesOrDefault()
		if name == "" {
			name = "chunk"
		}
	}

	hash := ""
	if config.HasPlaceholder(template, "[hash]") {
		d := xxhash.New()
		for _, keyPath := range moduleKeyPaths {
			d.WriteString(keyPath)
			d.WriteString("\x00")
		}
		hash = fmt.Sprintf("%08X", uint32(d.Sum64()))
	}

	chunk.PreliminaryFileName = config.TemplateToString(template, name, hash)
}
