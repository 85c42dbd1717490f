package resolver

import (
	"strings"

	"github.com/rollpack/rollpack/internal/ast"
	"github.com/rollpack/rollpack/internal/fs"
	"github.com/rollpack/rollpack/internal/logger"
)

// FSResolver resolves relative requests against the importing module's
// directory and leaves bare specifiers external. Package resolution
// (node_modules walking, extension guessing) is a host concern; inputs are
// expected to use explicit relative paths.
type FSResolver struct {
	FS fs.FS
}

func (r *FSResolver) Resolve(importer logger.Path, request string, kind ast.ImportKind) (ResolveResult, bool) {
	isEntry := importer.Text == ""
	if !isEntry && !strings.HasPrefix(request, "./") && !strings.HasPrefix(request, "../") {
		return ResolveResult{Status: ResolveExternal}, true
	}

	base := r.FS.Cwd()
	if !isEntry {
		base = r.FS.Dir(importer.Text)
	}
	abs, ok := r.FS.Abs(r.FS.Join(base, request))
	if !ok {
		return ResolveResult{}, false
	}

	// Resolution fails for paths that don't exist so typos surface as
	// "Could not resolve" with the importer's location attached
	if _, ok := r.FS.ReadFile(abs); !ok {
		return ResolveResult{}, false
	}

	return ResolveResult{
		Path:   logger.Path{Text: abs, Namespace: "file"},
		Status: ResolveInternal,
	}, true
}
