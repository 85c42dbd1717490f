package resolver

// Path resolution is a collaborator of the linker, not part of it. The linker
// only needs the contract below: each raw import record either resolves to a
// module index, is declared external, or fails. Linking must not proceed to
// canonical naming while any static record is unresolved; dynamic records may
// legitimately stay unresolved and are handled at run-time.

import (
	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/logger"
)

type ResolveStatus uint8

const (
	// The request maps to a module inside the bundle
	ResolveInternal ResolveStatus = iota

	// The request is left as-is in the output (e.g. a Node built-in)
	ResolveExternal

	// The path exists but is marked ignored: it keeps its graph position and
	// renders as empty text
	ResolveIgnored
)

type ResolveResult struct {
	// Only valid when Status == ResolveInternal or ResolveIgnored
	Path logger.Path

	Status ResolveStatus
}

type Resolver interface {
	// Returns false when the request cannot be resolved at all. The caller
	// turns that into a user-facing "Could not resolve" error for static
	// records and ignores it for dynamic ones.
	Resolve(importer logger.Path, request string, kind ast.ImportKind) (ResolveResult, bool)
}

// MapResolver resolves requests through a fixed table keyed by
// "<importer dir>\x00<request>" with a fallback keyed by the bare request.
// It exists for tests and for pre-resolved module descriptor input, where the
// host tool already ran real resolution.
type MapResolver struct {
	Table map[string]ResolveResult
}

func (r *MapResolver) Resolve(importer logger.Path, request string, kind ast.ImportKind) (ResolveResult, bool) {
	if result, ok := r.Table[importer.Text+"\x00"+request]; ok {
		return result, true
	}
	result, ok := r.Table[request]
	return result, ok
}
