package sourcemap

import (
	"encoding/json"
	"strings"

	"github.com/rollpack/rollpack/internal/helpers"
)

// Mapping is one decoded source map entry. Lines and columns are 0-based.
type Mapping struct {
	GeneratedLine   int32
	GeneratedColumn int32
	SourceIndex     int32
	OriginalLine    int32
	OriginalColumn  int32
}

// SourceMap is kept in decoded form while chunks are being stitched together
// and only encoded to the VLQ wire format at the very end.
type SourceMap struct {
	Sources        []string
	SourcesContent []string
	Mappings       []Mapping
}

func (sm *SourceMap) HasContent() bool {
	return sm != nil && len(sm.Mappings) > 0
}

// The source map specification's base64 alphabet
const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func encodeVLQ(encoded []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = ((-value) << 1) | 1
	} else {
		vlq = value << 1
	}

	// Handle the zero case first because of the "do-while" loop
	for {
		digit := vlq & 31
		vlq >>= 5

		// If there are still more digits in this value, we must make sure the
		// continuation bit is marked
		if vlq != 0 {
			digit |= 32
		}

		encoded = append(encoded, base64Chars[digit])
		if vlq == 0 {
			break
		}
	}

	return encoded
}

func DecodeVLQ(encoded string, start int) (value int, next int) {
	shift := 0
	vlq := 0

	// Scan over the input
	for start < len(encoded) {
		index := strings.IndexByte(base64Chars, encoded[start])
		if index < 0 {
			break
		}
		start++

		// Decode a single byte
		vlq |= (index & 31) << shift
		shift += 5

		// Stop if there's no continuation bit
		if (index & 32) == 0 {
			break
		}
	}

	// Recover the value
	value = vlq >> 1
	if (vlq & 1) != 0 {
		value = -value
	}
	return value, start
}

// EncodeJSON renders a source map in the standard version 3 JSON format.
func (sm *SourceMap) EncodeJSON() []byte {
	j := helpers.Joiner{}
	j.AddString("{\n  \"version\": 3")

	j.AddString(",\n  \"sources\": [")
	for i, source := range sm.Sources {
		if i > 0 {
			j.AddString(", ")
		}
		j.AddBytes(quoteJSON(source))
	}
	j.AddString("]")

	if sm.SourcesContent != nil {
		j.AddString(",\n  \"sourcesContent\": [")
		for i, content := range sm.SourcesContent {
			if i > 0 {
				j.AddString(", ")
			}
			j.AddBytes(quoteJSON(content))
		}
		j.AddString("]")
	}

	j.AddString(",\n  \"mappings\": \"")
	j.AddBytes(sm.encodeMappings())
	j.AddString("\",\n  \"names\": []\n}\n")
	return j.Done()
}

// encodeMappings serializes the decoded mappings into the delta-encoded VLQ
// string. Mappings must already be in generated order, which the concatenator
// guarantees because it appends pieces in output order.
func (sm *SourceMap) encodeMappings() []byte {
	var encoded []byte
	var prevGeneratedLine, prevGeneratedColumn int32
	var prevSourceIndex, prevOriginalLine, prevOriginalColumn int32

	for _, mapping := range sm.Mappings {
		// Emit one semicolon per generated line in between
		for prevGeneratedLine < mapping.GeneratedLine {
			encoded = append(encoded, ';')
			prevGeneratedLine++
			prevGeneratedColumn = 0
		}
		if len(encoded) > 0 && encoded[len(encoded)-1] != ';' {
			encoded = append(encoded, ',')
		}

		encoded = encodeVLQ(encoded, int(mapping.GeneratedColumn-prevGeneratedColumn))
		encoded = encodeVLQ(encoded, int(mapping.SourceIndex-prevSourceIndex))
		encoded = encodeVLQ(encoded, int(mapping.OriginalLine-prevOriginalLine))
		encoded = encodeVLQ(encoded, int(mapping.OriginalColumn-prevOriginalColumn))

		prevGeneratedColumn = mapping.GeneratedColumn
		prevSourceIndex = mapping.SourceIndex
		prevOriginalLine = mapping.OriginalLine
		prevOriginalColumn = mapping.OriginalColumn
	}

	return encoded
}

func quoteJSON(text string) []byte {
	quoted, err := json.Marshal(text)
	if err != nil {
		panic("Internal error")
	}
	return quoted
}
