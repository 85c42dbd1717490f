package sourcemap

import (
	"strings"

	"github.com/rollpack/rollpack/internal/helpers"
)

type concatPiece struct {
	text string

	// Only set for mapped pieces
	sourceMap *SourceMap
}

// ConcatSource stitches rendered fragments into one buffer plus a composite
// source map. Pieces are separated by single newlines. Appends go at the end;
// prepends go in front of everything added so far, including earlier
// prepends, so the banner can be prepended after the strict-mode directive
// and still end up as the first bytes of the file.
type ConcatSource struct {
	prepends []concatPiece
	pieces   []concatPiece
}

func (cs *ConcatSource) AddRawSource(text string) {
	cs.pieces = append(cs.pieces, concatPiece{text: text})
}

func (cs *ConcatSource) AddMappedSource(text string, sourceMap *SourceMap) {
	if sourceMap == nil {
		cs.AddRawSource(text)
		return
	}
	cs.pieces = append(cs.pieces, concatPiece{text: text, sourceMap: sourceMap})
}

func (cs *ConcatSource) PrependRawSource(text string) {
	cs.prepends = append(cs.prepends, concatPiece{text: text})
}

// ContentAndSourceMap joins every piece in final order and merges the piece
// source maps, offsetting generated lines and remapping source indices into
// one deduplicated source list. The result map is nil if no piece was mapped.
func (cs *ConcatSource) ContentAndSourceMap() (string, *SourceMap) {
	j := helpers.Joiner{}
	merged := &SourceMap{}
	sourceIndices := make(map[string]int32)
	lineOffset := int32(0)
	hasMappings := false

	appendPiece := func(piece concatPiece) {
		// Separate pieces with a newline unless the previous piece already
		// ended with one. The separator occupies a generated line, so it has
		// to count toward the line offset.
		if j.Length() > 0 && j.LastByte() != '\n' {
			j.AddString("\n")
			lineOffset++
		}
		j.AddString(piece.text)

		if piece.sourceMap != nil {
			hasMappings = true

			// Remap this piece's source indices into the merged source list
			remap := make([]int32, len(piece.sourceMap.Sources))
			for i, source := range piece.sourceMap.Sources {
				index, ok := sourceIndices[source]
				if !ok {
					index = int32(len(merged.Sources))
					sourceIndices[source] = index
					merged.Sources = append(merged.Sources, source)
					if piece.sourceMap.SourcesContent != nil {
						merged.SourcesContent = append(merged.SourcesContent, piece.sourceMap.SourcesContent[i])
					} else {
						merged.SourcesContent = append(merged.SourcesContent, "")
					}
				}
				remap[i] = index
			}

			for _, mapping := range piece.sourceMap.Mappings {
				mapping.GeneratedLine += lineOffset
				mapping.SourceIndex = remap[mapping.SourceIndex]
				merged.Mappings = append(merged.Mappings, mapping)
			}
		}

		lineOffset += int32(strings.Count(piece.text, "\n"))
	}

	// The most recent prepend comes first
	for i := len(cs.prepends) - 1; i >= 0; i-- {
		appendPiece(cs.prepends[i])
	}
	for _, piece := range cs.pieces {
		appendPiece(piece)
	}

	if !hasMappings {
		return string(j.Done()), nil
	}
	return string(j.Done()), merged
}
