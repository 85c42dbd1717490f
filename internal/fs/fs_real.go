package fs

import (
	"os"
	"path/filepath"
)

type realFS struct {
	cwd string
}

func RealFS() FS {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return &realFS{cwd: cwd}
}

func (*realFS) ReadFile(path string) (string, bool) {
	buffer, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(buffer), true
}

func (fs *realFS) Abs(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	return abs, err == nil
}

func (*realFS) Dir(p string) string {
	return filepath.Dir(p)
}

func (*realFS) Base(p string) string {
	return filepath.Base(p)
}

func (*realFS) Join(parts ...string) string {
	return filepath.Clean(filepath.Join(parts...))
}

func (*realFS) Rel(base string, target string) (string, bool) {
	if rel, err := filepath.Rel(base, target); err == nil {
		return rel, true
	}
	return "", false
}

func (fs *realFS) Cwd() string {
	return fs.cwd
}
