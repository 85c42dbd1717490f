package bundler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollpack/rollpack/internal/config"
	"github.com/rollpack/rollpack/internal/fs"
	"github.com/rollpack/rollpack/internal/linker"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/printer"
	"github.com/rollpack/rollpack/internal/resolver"
)

const mainDescriptor = `{
	"source": "import { x } from \"./lib\";\nconsole.log(x);\n",
	"exports": "esm",
	"symbols": ["x"],
	"namedImports": [{"symbol": 0, "alias": "x", "record": 0}],
	"imports": [{"path": "./lib.json", "kind": "import-statement", "start": 0, "length": 26}],
	"stmts": [
		{"kind": "import", "loc": 0, "text": "import { x } from \"./lib\";", "record": 0},
		{"kind": "other", "loc": 27, "text": "console.log(x);", "uses": [{"loc": 12, "symbol": 0}]}
	]
}`

const libDescriptor = `{
	"source": "export const x = 1;\n",
	"exports": "esm",
	"symbols": ["x"],
	"topLevel": [0],
	"namedExports": {"x": 0},
	"stmts": [{"kind": "export", "loc": 0, "text": "export const x = 1;"}]
}`

func TestScanBundleThroughDescriptors(t *testing.T) {
	fsys := fs.MockFS(map[string]string{
		"/src/main.json": mainDescriptor,
		"/src/lib.json":  libDescriptor,
	})
	log := logger.NewDeferLog()

	bundle, ok := ScanBundle(log, fsys, &resolver.FSResolver{FS: fsys},
		DescriptorParser{}, nil, []Entry{{Path: "src/main.json"}})
	for _, msg := range log.Done() {
		t.Logf("scan: %s", msg.Text)
	}
	require.True(t, ok)

	g := bundle.Graph()
	require.Len(t, g.Modules, 2)
	require.Len(t, g.EntryPoints, 1)
	assert.Equal(t, "main", g.EntryPoints[0].OutputName)

	// The module carries the embedded source, not the descriptor JSON
	entry := &g.Modules[g.EntryPoints[0].ModuleIndex]
	assert.Equal(t, "import { x } from \"./lib\";\nconsole.log(x);\n", entry.Source.Contents)
	assert.Equal(t, "src/main.json", entry.Source.PrettyPath)
}

func TestScanLinkRenderEndToEnd(t *testing.T) {
	fsys := fs.MockFS(map[string]string{
		"/src/main.json": mainDescriptor,
		"/src/lib.json":  libDescriptor,
	})
	log := logger.NewDeferLog()

	bundle, ok := ScanBundle(log, fsys, &resolver.FSResolver{FS: fsys},
		DescriptorParser{}, nil, []Entry{{Path: "src/main.json"}})
	require.True(t, ok)

	options := config.Options{Format: config.FormatESModule, AbsOutputDir: "/out"}
	chunkGraph := linker.Link(log, bundle.Graph(), &options)
	for _, msg := range log.Done() {
		t.Logf("link: %s", msg.Text)
	}
	require.NotNil(t, chunkGraph)
	require.Len(t, chunkGraph.Chunks, 1)

	files := linker.GenerateChunks(context.Background(), log, bundle.Graph(), chunkGraph,
		&options, printer.RenderModule, fsys, nil)
	require.False(t, log.HasErrors())

	var code string
	for _, file := range files {
		if file.AbsPath == "/out/main.js" {
			code = string(file.Contents)
		}
	}
	require.NotEmpty(t, code)
	assert.Contains(t, code, "// src/lib.json\nconst x = 1;\n// src/main.json\nconsole.log(x);")
	assert.NotContains(t, code, "import {")
	assert.NotContains(t, code, "export {")
}

func TestScanReportsEveryResolutionFailure(t *testing.T) {
	broken := `{
		"source": "import { a } from \"./gone1\";\nimport { b } from \"./gone2\";\n",
		"exports": "esm",
		"symbols": ["a", "b"],
		"namedImports": [
			{"symbol": 0, "alias": "a", "record": 0},
			{"symbol": 1, "alias": "b", "record": 1}
		],
		"imports": [
			{"path": "./gone1.json", "kind": "import-statement"},
			{"path": "./gone2.json", "kind": "import-statement"}
		],
		"stmts": [
			{"kind": "import", "loc": 0, "text": "import { a } from \"./gone1\";", "record": 0},
			{"kind": "import", "loc": 29, "text": "import { b } from \"./gone2\";", "record": 1}
		]
	}`
	fsys := fs.MockFS(map[string]string{"/src/main.json": broken})
	log := logger.NewDeferLog()

	_, ok := ScanBundle(log, fsys, &resolver.FSResolver{FS: fsys},
		DescriptorParser{}, nil, []Entry{{Path: "src/main.json"}})

	assert.False(t, ok)
	msgs := log.Done()
	require.Len(t, msgs, 2)
	texts := []string{msgs[0].Text, msgs[1].Text}
	assert.Contains(t, texts, `Could not resolve "./gone1.json"`)
	assert.Contains(t, texts, `Could not resolve "./gone2.json"`)
}

func TestScanFailsOnMissingEntryPoint(t *testing.T) {
	fsys := fs.MockFS(nil)
	log := logger.NewDeferLog()

	_, ok := ScanBundle(log, fsys, &resolver.FSResolver{FS: fsys},
		DescriptorParser{}, nil, []Entry{{Path: "src/missing.json"}})

	assert.False(t, ok)
	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.Equal(t, `Could not resolve entry point "src/missing.json"`, msgs[0].Text)
}

func TestLoadHookSuppliesVirtualModules(t *testing.T) {
	virtualPath := logger.Path{Text: "\x00virtual:entry", Namespace: "virtual"}
	res := &resolver.MapResolver{Table: map[string]resolver.ResolveResult{
		"app": {Path: virtualPath, Status: resolver.ResolveInternal},
	}}
	onLoad := func(path logger.Path) (string, bool, error) {
		if path == virtualPath {
			return libDescriptor, true, nil
		}
		return "", false, nil
	}
	log := logger.NewDeferLog()

	bundle, ok := ScanBundle(log, fs.MockFS(nil), res, DescriptorParser{}, onLoad,
		[]Entry{{Path: "app", Name: "app"}})
	for _, msg := range log.Done() {
		t.Logf("scan: %s", msg.Text)
	}
	require.True(t, ok)

	g := bundle.Graph()
	require.Len(t, g.Modules, 1)
	assert.Equal(t, "export const x = 1;\n", g.Modules[0].Source.Contents)
	assert.True(t, g.Modules[0].Source.KeyPath.IsVirtual())
}

func TestIgnoredModulesKeepGraphPositionAndRenderEmpty(t *testing.T) {
	main := `{
		"source": "import \"./skip\";\nrun();\n",
		"exports": "esm",
		"imports": [{"path": "./skip.json", "kind": "import-statement"}],
		"stmts": [
			{"kind": "import", "loc": 0, "text": "import \"./skip\";", "record": 0},
			{"kind": "other", "loc": 17, "text": "run();"}
		]
	}`
	fsys := fs.MockFS(map[string]string{"/src/main.json": main})
	res := &resolver.MapResolver{Table: map[string]resolver.ResolveResult{
		"src/main.json": {Path: logger.Path{Text: "/src/main.json", Namespace: "file"}, Status: resolver.ResolveInternal},
		"/src/main.json\x00./skip.json": {
			Path:   logger.Path{Text: "/src/skip.json", Namespace: "file"},
			Status: resolver.ResolveIgnored,
		},
	}}
	log := logger.NewDeferLog()

	bundle, ok := ScanBundle(log, fsys, res, DescriptorParser{}, nil,
		[]Entry{{Path: "src/main.json"}})
	for _, msg := range log.Done() {
		t.Logf("scan: %s", msg.Text)
	}
	require.True(t, ok)

	g := bundle.Graph()
	require.Len(t, g.Modules, 2)

	var ignoredCount int
	for i := range g.Modules {
		if g.Modules[i].IsIgnored {
			ignoredCount++
		}
	}
	assert.Equal(t, 1, ignoredCount)

	options := config.Options{Format: config.FormatESModule, AbsOutputDir: "/out"}
	chunkGraph := linker.Link(log, g, &options)
	require.NotNil(t, chunkGraph)

	files := linker.GenerateChunks(context.Background(), log, g, chunkGraph,
		&options, printer.RenderModule, fsys, nil)
	require.False(t, log.HasErrors())

	var code string
	for _, file := range files {
		if file.AbsPath == "/out/main.js" {
			code = string(file.Contents)
		}
	}
	assert.Contains(t, code, "run();")
	assert.NotContains(t, code, "skip")
}

func TestBareSpecifiersStayExternal(t *testing.T) {
	main := `{
		"source": "import fs from \"node:fs\";\ngo();\n",
		"exports": "esm",
		"imports": [{"path": "node:fs", "kind": "import-statement"}],
		"stmts": [
			{"kind": "import", "loc": 0, "text": "import fs from \"node:fs\";", "record": 0},
			{"kind": "other", "loc": 26, "text": "go();"}
		]
	}`
	fsys := fs.MockFS(map[string]string{"/src/main.json": main})
	log := logger.NewDeferLog()

	bundle, ok := ScanBundle(log, fsys, &resolver.FSResolver{FS: fsys},
		DescriptorParser{}, nil, []Entry{{Path: "src/main.json"}})
	require.True(t, ok)

	g := bundle.Graph()
	require.Len(t, g.Modules, 1)
	require.Len(t, g.Modules[0].ImportRecords, 1)
	assert.True(t, g.Modules[0].ImportRecords[0].IsExternal)

	options := config.Options{Format: config.FormatESModule, AbsOutputDir: "/out"}
	chunkGraph := linker.Link(log, g, &options)
	require.NotNil(t, chunkGraph)

	files := linker.GenerateChunks(context.Background(), log, g, chunkGraph,
		&options, printer.RenderModule, fsys, nil)
	require.False(t, log.HasErrors())

	var code string
	for _, file := range files {
		if file.AbsPath == "/out/main.js" {
			code = string(file.Contents)
		}
	}
	assert.Contains(t, code, "import fs from \"node:fs\";")
}

func TestOutputNameDerivation(t *testing.T) {
	fsys := fs.MockFS(nil)
	assert.Equal(t, "main", outputNameForPath(fsys, logger.Path{Text: "/src/main.json"}))
	assert.Equal(t, "main.mod", outputNameForPath(fsys, logger.Path{Text: "/src/main.mod.json"}))
	assert.Equal(t, "noext", outputNameForPath(fsys, logger.Path{Text: "/src/noext"}))
}

func TestIdentifierNameDerivation(t *testing.T) {
	fsys := fs.MockFS(nil)
	assert.Equal(t, "my_lib", identifierNameForPath(fsys, logger.Path{Text: "/src/my-lib.json"}))
	assert.Equal(t, "_2cool", identifierNameForPath(fsys, logger.Path{Text: "/src/2cool.json"}))
}
