package editor

// Host is the editor environment the external-edit coordinator runs against.
// The desktop implementation spawns the user's editor; tests substitute an
// in-memory fake.
//
// Subscription methods return a release function; releasing twice is safe.
type Host interface {
	// WorkspaceRoot returns the open workspace directory, when there is one.
	WorkspaceRoot() (string, bool)
	// TempDir returns the OS temp directory used when no workspace exists.
	TempDir() string

	EnsureDir(path string) error
	WriteFile(path, content string) error
	ReadFile(path string) (string, error)
	DeleteFile(path string) error

	// OpenBeside shows path in a non-preview pane next to the active one.
	OpenBeside(path string) error
	// ClosePane dismisses the pane showing path, best effort.
	ClosePane(path string) error

	// OnSaved fires fn each time path is saved.
	OnSaved(path string, fn func()) (release func())
	// OnVisibilityChanged fires fn with the visible pane paths whenever that
	// set changes.
	OnVisibilityChanged(fn func(visible []string)) (release func())
}
