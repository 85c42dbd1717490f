package config

import (
	"context"
	"strings"
)

type Format uint8

const (
	// ES module output: generated glue uses "import"/"export" syntax
	FormatESModule Format = iota

	// CommonJS output: generated glue uses "require()" and "exports"
	FormatCommonJS

	// Self-executing application output: no external export surface
	FormatApp
)

func (f Format) String() string {
	switch f {
	case FormatESModule:
		return "esm"
	case FormatCommonJS:
		return "cjs"
	case FormatApp:
		return "app"
	default:
		panic("Internal error")
	}
}

// RenderedChunk is the read-only summary handed to banner/footer callbacks.
// It's fully computed before either callback runs.
type RenderedChunk struct {
	FileName string

	// Pretty paths of member modules, with virtual (null-byte-prefixed) paths
	// filtered out because host APIs can't round-trip them
	Modules []string

	// File names of chunks this chunk imports from
	Imports []string

	// Aliases this chunk exports
	Exports []string

	IsEntry bool
}

// ChunkAddon produces banner or footer text for one rendered chunk. It may do
// asynchronous work; an error or context cancellation aborts that chunk's
// render with no partial output.
type ChunkAddon func(ctx context.Context, chunk *RenderedChunk) (string, error)

type Options struct {
	Format Format

	// Absolute output directory. Source map "sources" entries are rewritten
	// relative to each chunk's resolved output directory.
	AbsOutputDir string

	// File name templates with "[name]" and "[hash]" placeholders
	EntryNames string
	ChunkNames string

	Banner ChunkAddon
	Footer ChunkAddon

	// Maximum number of member modules rendered concurrently per chunk.
	// Zero means one worker per module.
	RenderWorkers int
}

func (options *Options) EntryNamesOrDefault() string {
	if options.EntryNames != "" {
		return options.EntryNames
	}
	return "[name].js"
}

func (options *Options) ChunkNamesOrDefault() string {
	if options.ChunkNames != "" {
		return options.ChunkNames
	}
	return "chunk-[hash].js"
}

// TemplateToString materializes a file name from a template. This is a pure
// function of its arguments: same template, name, and hash always give the
// same file name.
func TemplateToString(template string, name string, hash string) string {
	out := strings.ReplaceAll(template, "[name]", name)
	out = strings.ReplaceAll(out, "[hash]", hash)
	return out
}

// HasPlaceholder reports whether a template still mentions a placeholder.
// Rendering a template that needs "[hash]" before the hash is known is a bug
// in the caller.
func HasPlaceholder(template string, placeholder string) bool {
	return strings.Contains(template, placeholder)
}
