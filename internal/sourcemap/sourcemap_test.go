package sourcemap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQRoundTrip(t *testing.T) {
	values := []int{0, 1, -1, 15, 16, -16, 31, 32, 1000, -1000, 1 << 20}
	for _, value := range values {
		encoded := encodeVLQ(nil, value)
		decoded, next := DecodeVLQ(string(encoded), 0)
		assert.Equal(t, value, decoded)
		assert.Equal(t, len(encoded), next)
	}
}

func TestEncodeJSONShape(t *testing.T) {
	sm := SourceMap{
		Sources:        []string{"../src/a.js"},
		SourcesContent: []string{"const x = 1;\n"},
		Mappings: []Mapping{
			{GeneratedLine: 0, GeneratedColumn: 0, SourceIndex: 0, OriginalLine: 0, OriginalColumn: 0},
			{GeneratedLine: 1, GeneratedColumn: 2, SourceIndex: 0, OriginalLine: 1, OriginalColumn: 0},
		},
	}
	encoded := sm.EncodeJSON()

	var decoded struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent"`
		Mappings       string   `json:"mappings"`
		Names          []string `json:"names"`
	}
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, 3, decoded.Version)
	assert.Equal(t, []string{"../src/a.js"}, decoded.Sources)
	assert.Equal(t, []string{"const x = 1;\n"}, decoded.SourcesContent)
	assert.Equal(t, "AAAA;EACA", decoded.Mappings)
	assert.Empty(t, decoded.Names)
}

func TestConcatSourceJoinsWithNewlines(t *testing.T) {
	cs := ConcatSource{}
	cs.AddRawSource("one")
	cs.AddRawSource("two\n")
	cs.AddRawSource("three")

	code, sm := cs.ContentAndSourceMap()
	assert.Equal(t, "one\ntwo\nthree", code)
	assert.Nil(t, sm)
}

func TestConcatSourceOffsetsMappedPieces(t *testing.T) {
	cs := ConcatSource{}
	cs.AddRawSource("// header")
	cs.AddMappedSource("line1;\nline2;", &SourceMap{
		Sources:        []string{"/src/a.js"},
		SourcesContent: []string{"line1;\nline2;\n"},
		Mappings: []Mapping{
			{GeneratedLine: 0, OriginalLine: 0},
			{GeneratedLine: 1, OriginalLine: 1},
		},
	})
	cs.AddMappedSource("line3;", &SourceMap{
		Sources:        []string{"/src/b.js"},
		SourcesContent: []string{"line3;\n"},
		Mappings:       []Mapping{{GeneratedLine: 0, OriginalLine: 0}},
	})

	code, sm := cs.ContentAndSourceMap()
	require.NotNil(t, sm)
	assert.Equal(t, "// header\nline1;\nline2;\nline3;", code)

	// The header occupies generated line 0, the first mapped piece starts on
	// line 1, the second on line 3
	assert.Equal(t, []string{"/src/a.js", "/src/b.js"}, sm.Sources)
	require.Len(t, sm.Mappings, 3)
	assert.Equal(t, int32(1), sm.Mappings[0].GeneratedLine)
	assert.Equal(t, int32(2), sm.Mappings[1].GeneratedLine)
	assert.Equal(t, int32(3), sm.Mappings[2].GeneratedLine)
	assert.Equal(t, int32(0), sm.Mappings[0].SourceIndex)
	assert.Equal(t, int32(1), sm.Mappings[2].SourceIndex)
}

func TestConcatSourceDeduplicatesSources(t *testing.T) {
	piece := func(line int32) *SourceMap {
		return &SourceMap{
			Sources:        []string{"/src/a.js"},
			SourcesContent: []string{"text\n"},
			Mappings:       []Mapping{{GeneratedLine: 0, OriginalLine: line}},
		}
	}
	cs := ConcatSource{}
	cs.AddMappedSource("x;", piece(0))
	cs.AddMappedSource("y;", piece(1))

	_, sm := cs.ContentAndSourceMap()
	require.NotNil(t, sm)
	assert.Equal(t, []string{"/src/a.js"}, sm.Sources)
	require.Len(t, sm.Mappings, 2)
	assert.Equal(t, int32(0), sm.Mappings[1].SourceIndex)
}

func TestConcatSourceMostRecentPrependComesFirst(t *testing.T) {
	cs := ConcatSource{}
	cs.AddRawSource("body")
	cs.PrependRawSource("\"use strict\";\n")
	cs.PrependRawSource("#!/usr/bin/env node")

	code, _ := cs.ContentAndSourceMap()
	assert.Equal(t, "#!/usr/bin/env node\n\"use strict\";\nbody", code)
}

func TestConcatSourcePrependShiftsMappings(t *testing.T) {
	cs := ConcatSource{}
	cs.AddMappedSource("x;", &SourceMap{
		Sources:  []string{"/src/a.js"},
		Mappings: []Mapping{{GeneratedLine: 0}},
	})
	cs.PrependRawSource("// first\n// second\n")

	code, sm := cs.ContentAndSourceMap()
	assert.Equal(t, "// first\n// second\nx;", code)
	require.NotNil(t, sm)
	require.Len(t, sm.Mappings, 1)
	assert.Equal(t, int32(2), sm.Mappings[0].GeneratedLine)
}

func TestHasContent(t *testing.T) {
	var nilMap *SourceMap
	assert.False(t, nilMap.HasContent())
	assert.False(t, (&SourceMap{}).HasContent())
	assert.True(t, (&SourceMap{Mappings: []Mapping{{}}}).HasContent())
}
