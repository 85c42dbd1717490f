package api

// The public API. It mirrors the CLI: every CLI flag maps to a field here and
// the CLI is implemented in terms of this package.

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rollpack/rollpack/internal/bundler"
	"github.com/rollpack/rollpack/internal/config"
	"github.com/rollpack/rollpack/internal/fs"
	"github.com/rollpack/rollpack/internal/linker"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/printer"
	"github.com/rollpack/rollpack/internal/resolver"
)

type Format uint8

const (
	FormatESModule Format = iota
	FormatCommonJS
	FormatApp
)

type LogLevel uint8

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarning
	LogLevelError
	LogLevelSilent
)

// EntryPoint is one entry module. OutputName overrides the "[name]" file name
// placeholder; when empty the name is derived from the input path.
type EntryPoint struct {
	InputPath  string
	OutputName string
}

// ChunkInfo is the summary passed to Banner and Footer callbacks.
type ChunkInfo = config.RenderedChunk

// AddonFunc produces per-chunk banner or footer text. Returning an error
// aborts that chunk with no partial output.
type AddonFunc func(ctx context.Context, chunk *ChunkInfo) (string, error)

type BuildOptions struct {
	EntryPoints []EntryPoint
	Format      Format

	// Output directory. Created on demand when Write is true.
	Outdir string

	// File name templates supporting "[name]" and "[hash]"
	EntryNames string
	ChunkNames string

	Banner AddonFunc
	Footer AddonFunc

	// Maximum concurrently rendered modules per chunk; zero means unbounded
	RenderWorkers int

	// When true output files are written to Outdir; the in-memory copies are
	// returned either way
	Write bool

	LogLevel   LogLevel
	ErrorLimit int
}

type Location struct {
	File   string
	Line   int // 1-based
	Column int // 0-based, in bytes
}

type Message struct {
	Text     string
	Location *Location
}

type OutputFile struct {
	Path     string
	Contents []byte
}

type BuildResult struct {
	Errors   []Message
	Warnings []Message

	OutputFiles []OutputFile
}

// Build runs the whole pipeline: scan, link, render, and optionally write.
// Inputs are JSON module descriptors (see the bundler package for the shape).
func Build(options BuildOptions) BuildResult {
	log := logger.NewStderrLog(logger.StderrOptions{
		LogLevel:   stderrLogLevel(options.LogLevel),
		ErrorLimit: options.ErrorLimit,
	})
	fsys := fs.RealFS()
	result := build(context.Background(), log, fsys, &options)
	result.Errors, result.Warnings = convertMessages(log.Done())

	if options.Write && len(result.Errors) == 0 {
		for _, file := range result.OutputFiles {
			if err := os.MkdirAll(filepath.Dir(file.Path), 0755); err != nil {
				result.Errors = append(result.Errors, Message{Text: err.Error()})
				break
			}
			if err := os.WriteFile(file.Path, file.Contents, 0644); err != nil {
				result.Errors = append(result.Errors, Message{Text: err.Error()})
				break
			}
		}
	}
	return result
}

func build(ctx context.Context, log logger.Log, fsys fs.FS, options *BuildOptions) BuildResult {
	entries := make([]bundler.Entry, len(options.EntryPoints))
	for i, entry := range options.EntryPoints {
		entries[i] = bundler.Entry{Path: entry.InputPath, Name: entry.OutputName}
	}

	res := &resolver.FSResolver{FS: fsys}
	bundle, ok := bundler.ScanBundle(log, fsys, res, bundler.DescriptorParser{}, nil, entries)
	if !ok {
		return BuildResult{}
	}

	absOutputDir, ok := fsys.Abs(options.Outdir)
	if !ok {
		absOutputDir = options.Outdir
	}
	linkOptions := config.Options{
		Format:        configFormat(options.Format),
		AbsOutputDir:  absOutputDir,
		EntryNames:    options.EntryNames,
		ChunkNames:    options.ChunkNames,
		Banner:        config.ChunkAddon(options.Banner),
		Footer:        config.ChunkAddon(options.Footer),
		RenderWorkers: options.RenderWorkers,
	}

	chunkGraph := linker.Link(log, bundle.Graph(), &linkOptions)
	if chunkGraph == nil {
		return BuildResult{}
	}

	files := linker.GenerateChunks(ctx, log, bundle.Graph(), chunkGraph, &linkOptions,
		printer.RenderModule, fsys, renderCache)
	if log.HasErrors() {
		return BuildResult{}
	}

	outputFiles := make([]OutputFile, len(files))
	for i, file := range files {
		outputFiles[i] = OutputFile{Path: file.AbsPath, Contents: file.Contents}
	}
	return BuildResult{OutputFiles: outputFiles}
}

// One cache for the whole process, so repeated Build calls reuse fragments of
// modules that didn't change between builds. Module fragments are small; the
// fixed size bounds memory.
const renderCacheSize = 1024

var renderCache = mustRenderCache()

func mustRenderCache() *linker.RenderCache {
	c, err := linker.NewRenderCache(renderCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

func stderrLogLevel(level LogLevel) logger.LogLevel {
	switch level {
	case LogLevelWarning:
		return logger.LevelWarning
	case LogLevelError:
		return logger.LevelError
	case LogLevelSilent:
		return logger.LevelSilent
	default:
		return logger.LevelInfo
	}
}

func configFormat(format Format) config.Format {
	switch format {
	case FormatCommonJS:
		return config.FormatCommonJS
	case FormatApp:
		return config.FormatApp
	default:
		return config.FormatESModule
	}
}

func convertMessages(msgs []logger.Msg) (errors []Message, warnings []Message) {
	for _, msg := range msgs {
		converted := Message{Text: msg.Text}
		if msg.Location != nil {
			converted.Location = &Location{
				File:   msg.Location.File,
				Line:   msg.Location.Line,
				Column: msg.Location.Column,
			}
		}
		if msg.Kind == logger.Error {
			errors = append(errors, converted)
		} else {
			warnings = append(warnings, converted)
		}
	}
	return
}
