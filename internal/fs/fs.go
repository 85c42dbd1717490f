package fs

// The file system collaborator supplies raw source text when no plugin
// supplies content for a path. It's an interface so tests and in-memory
// builds can run without touching the real file system.

type FS interface {
	// Returns the file contents and true, or "" and false on failure
	ReadFile(path string) (string, bool)

	// Path utilities. The mock implementation always uses forward slashes so
	// tests behave the same on every platform.
	Abs(path string) (string, bool)
	Dir(path string) string
	Base(path string) string
	Join(parts ...string) string
	Rel(base string, target string) (string, bool)
	Cwd() string
}
