package bundler

// The scan phase discovers and loads every module reachable from the entry
// points, resolves all import records, and produces the frozen module graph
// that linking and rendering consume. Modules are loaded and parsed
// concurrently; module indices are assigned at discovery time under a lock,
// so index values depend on scheduling but nothing user-visible is derived
// from them.

import (
	"fmt"
	"sync"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/fs"
	"github.com/rollpack/rollpack/internal/graph"
	"github.com/rollpack/rollpack/internal/helpers"
	"github.com/rollpack/rollpack/internal/logger"
	"github.com/rollpack/rollpack/internal/resolver"
)

// ParsedModule is what the parser collaborator hands back for one loaded
// source. Refs use the source index the scanner assigned before parsing.
type ParsedModule struct {
	Stmts            []ast.Stmt
	RawImportRecords []ast.RawImportRecord
	Symbols          []ast.Symbol
	NamedExports     map[string]ast.Ref
	NamedImports     map[ast.Ref]graph.NamedImport
	TopLevelDecls    []ast.Ref
	ExportsKind      graph.ExportsKind

	ContainsUseStrict bool

	// Overrides the loaded text when the input was an indirect representation
	// of the module (e.g. a descriptor wrapping the real source). Statement
	// offsets refer to this text.
	Contents *string
}

// ModuleParser turns raw source text into the statement-level form the linker
// operates on. Implementations must be safe for concurrent use.
type ModuleParser interface {
	Parse(log logger.Log, source logger.Source) (ParsedModule, bool)
}

// LoadHook lets a plugin supply module contents before the file system is
// consulted. Returning handled == false falls through to the next loader.
type LoadHook func(path logger.Path) (contents string, handled bool, err error)

// Entry is one entry point request. Name feeds the "[name]" file name
// placeholder; when empty it's derived from the resolved path.
type Entry struct {
	Path string
	Name string
}

type parseResult struct {
	module  graph.Module
	symbols []ast.Symbol
	ok      bool
}

type scanner struct {
	log      logger.Log
	fsys     fs.FS
	resolver resolver.Resolver
	parser   ModuleParser
	onLoad   LoadHook

	// Everything below is guarded by "mutex". The wait group tracks
	// outstanding parse goroutines.
	mutex   sync.Mutex
	visited map[logger.Path]uint32
	results []*parseResult
	wg      *helpers.ThreadSafeWaitGroup
}

// Bundle owns the scanned module graph, ready for linking.
type Bundle struct {
	fsys  fs.FS
	graph graph.LinkerGraph
}

// ScanBundle runs the scan phase for the given entry points. Returns false if
// any module failed to load, parse, or resolve a static import; the log holds
// the details and the partial graph is discarded.
func ScanBundle(
	log logger.Log,
	fsys fs.FS,
	res resolver.Resolver,
	parser ModuleParser,
	onLoad LoadHook,
	entries []Entry,
) (Bundle, bool) {
	s := scanner{
		log:      log,
		fsys:     fsys,
		resolver: res,
		parser:   parser,
		onLoad:   onLoad,
		visited:  make(map[logger.Path]uint32),
		wg:       helpers.MakeThreadSafeWaitGroup(),
	}

	s.wg.Add(1)
	entryPoints := make([]graph.EntryPoint, 0, len(entries))
	for _, entry := range entries {
		result, ok := res.Resolve(logger.Path{}, entry.Path, ast.ImportStmt)
		if !ok {
			log.AddError(nil, logger.Loc{}, fmt.Sprintf("Could not resolve entry point %q", entry.Path))
			continue
		}
		moduleIndex := s.maybeScanModule(result.Path, result.Status == resolver.ResolveIgnored)
		name := entry.Name
		if name == "" {
			name = outputNameForPath(fsys, result.Path)
		}
		entryPoints = append(entryPoints, graph.EntryPoint{
			OutputName:  name,
			ModuleIndex: moduleIndex,
		})
	}
	s.wg.Done()
	s.wg.Wait()

	ok := !log.HasErrors()
	modules := make([]graph.Module, len(s.results))
	symbols := make([][]ast.Symbol, len(s.results))
	for i, result := range s.results {
		ok = ok && result.ok
		modules[i] = result.module
		symbols[i] = result.symbols
	}
	if !ok {
		return Bundle{}, false
	}

	return Bundle{
		fsys:  fsys,
		graph: graph.MakeLinkerGraph(modules, ast.SymbolMap{SymbolsForSource: symbols}, entryPoints),
	}, true
}

func (b *Bundle) Graph() *graph.LinkerGraph {
	return &b.graph
}

// maybeScanModule returns the module index for a resolved path, kicking off a
// parse goroutine the first time the path is seen.
func (s *scanner) maybeScanModule(path logger.Path, isIgnored bool) uint32 {
	s.mutex.Lock()
	if moduleIndex, ok := s.visited[path]; ok {
		s.mutex.Unlock()
		return moduleIndex
	}
	moduleIndex := uint32(len(s.results))
	s.visited[path] = moduleIndex
	result := &parseResult{}
	s.results = append(s.results, result)
	s.mutex.Unlock()

	s.wg.Add(1)
	go s.parseModule(moduleIndex, path, isIgnored, result)
	return moduleIndex
}

func (s *scanner) parseModule(moduleIndex uint32, path logger.Path, isIgnored bool, result *parseResult) {
	defer s.wg.Done()

	source := logger.Source{
		Index:          moduleIndex,
		KeyPath:        path,
		PrettyPath:     prettyPath(s.fsys, path),
		IdentifierName: identifierNameForPath(s.fsys, path),
	}

	// Ignored modules keep their graph position but have no body and no
	// symbols, so there is nothing to load or parse
	if isIgnored {
		result.module = graph.Module{Source: source, IsIgnored: true}
		result.ok = true
		return
	}

	contents, ok := s.loadContents(path, source.PrettyPath)
	if !ok {
		return
	}
	source.Contents = contents

	parsed, ok := s.parser.Parse(s.log, source)
	if !ok {
		return
	}
	if parsed.Contents != nil {
		source.Contents = *parsed.Contents
	}

	result.module = graph.Module{
		Source:            source,
		Stmts:             parsed.Stmts,
		ImportRecords:     s.resolveImportRecords(&source, parsed.RawImportRecords),
		NamedExports:      parsed.NamedExports,
		NamedImports:      parsed.NamedImports,
		TopLevelDecls:     parsed.TopLevelDecls,
		ExportsKind:       parsed.ExportsKind,
		ContainsUseStrict: parsed.ContainsUseStrict,
	}
	result.symbols = parsed.Symbols
	result.ok = true
}

// Load precedence: plugin, then the file system. Resolver-ignored paths never
// get here.
func (s *scanner) loadContents(path logger.Path, prettyPath string) (string, bool) {
	if s.onLoad != nil {
		contents, handled, err := s.onLoad(path)
		if err != nil {
			s.log.AddError(nil, logger.Loc{}, fmt.Sprintf("Could not load %q: %s", prettyPath, err.Error()))
			return "", false
		}
		if handled {
			return contents, true
		}
	}

	contents, ok := s.fsys.ReadFile(path.Text)
	if !ok {
		s.log.AddError(nil, logger.Loc{}, fmt.Sprintf("Could not read from file: %s", prettyPath))
		return "", false
	}
	return contents, true
}

// resolveImportRecords resolves every raw record, scheduling newly discovered
// modules for scanning. A static record that fails to resolve is a user
// error; a dynamic one is left unresolved for the host runtime.
func (s *scanner) resolveImportRecords(source *logger.Source, raw []ast.RawImportRecord) []ast.ImportRecord {
	records := make([]ast.ImportRecord, len(raw))
	for i, rawRecord := range raw {
		result, ok := s.resolver.Resolve(source.KeyPath, rawRecord.Path, rawRecord.Kind)
		if !ok {
			if rawRecord.Kind.IsStatic() {
				s.log.AddRangeError(source, rawRecord.Range, fmt.Sprintf("Could not resolve %q", rawRecord.Path))
			}
			records[i] = rawRecord.ResolveNone()
			continue
		}

		switch result.Status {
		case resolver.ResolveExternal:
			records[i] = rawRecord.ResolveExternal()
		case resolver.ResolveIgnored:
			records[i] = rawRecord.Resolve(s.maybeScanModule(result.Path, true))
		default:
			records[i] = rawRecord.Resolve(s.maybeScanModule(result.Path, false))
		}
	}
	return records
}

func prettyPath(fsys fs.FS, path logger.Path) string {
	if path.Namespace != "" && path.Namespace != "file" {
		return path.Text
	}
	if rel, ok := fsys.Rel(fsys.Cwd(), path.Text); ok {
		return rel
	}
	return path.Text
}

// outputNameForPath derives the "[name]" placeholder value from an entry's
// resolved path: the base name without its extension.
func outputNameForPath(fsys fs.FS, path logger.Path) string {
	base := fsys.Base(path.Text)
	for i := len(base) - 1; i > 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

func identifierNameForPath(fsys fs.FS, path logger.Path) string {
	base := outputNameForPath(fsys, path)
	bytes := []byte{}
	for _, c := range base {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '$' {
			bytes = append(bytes, byte(c))
		} else {
			bytes = append(bytes, '_')
		}
	}
	if len(bytes) == 0 || bytes[0] >= '0' && bytes[0] <= '9' {
		bytes = append([]byte{'_'}, bytes...)
	}
	return string(bytes)
}
