package fs

import (
	"path"
	"strings"
)

type mockFS struct {
	files map[string]string
}

// MockFS returns a purely in-memory file system for tests. Paths use forward
// slashes and "/" as the working directory on all platforms.
func MockFS(input map[string]string) FS {
	return &mockFS{files: input}
}

func (fs *mockFS) ReadFile(path string) (string, bool) {
	contents, ok := fs.files[path]
	return contents, ok
}

func (*mockFS) Abs(p string) (string, bool) {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p), true
}

func (*mockFS) Dir(p string) string {
	return path.Dir(p)
}

func (*mockFS) Base(p string) string {
	return path.Base(p)
}

func (*mockFS) Join(parts ...string) string {
	return path.Clean(path.Join(parts...))
}

func (*mockFS) Rel(base string, target string) (string, bool) {
	base = path.Clean(base)
	target = path.Clean(target)

	if base == "" || base == "." {
		return target, true
	}
	if base == target {
		return ".", true
	}

	// Walk up from the base one directory at a time until the target is
	// underneath it
	prefix := ""
	for {
		if strings.HasPrefix(target, base+"/") {
			return prefix + target[len(base)+1:], true
		}
		if base == "/" {
			return prefix + strings.TrimPrefix(target, "/"), true
		}
		base = path.Dir(base)
		prefix += "../"
	}
}

func (*mockFS) Cwd() string {
	return "/"
}
