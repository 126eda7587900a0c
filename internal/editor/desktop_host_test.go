package editor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func startedHost(t *testing.T, editorCommand string) *DesktopHost {
	t.Helper()
	h := NewDesktopHost(t.TempDir(), func() string { return editorCommand })
	h.debounce = 50 * time.Millisecond
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Stop)
	return h
}

func TestFileRoundTripHelpers(t *testing.T) {
	h := startedHost(t, "")
	root, ok := h.WorkspaceRoot()
	assert.True(t, ok)

	dir := filepath.Join(root, ".stepweave", "edits")
	assert.NoError(t, h.EnsureDir(dir))

	path := filepath.Join(dir, "note.md")
	assert.NoError(t, h.WriteFile(path, "hello"))

	got, err := h.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "hello", got)

	assert.NoError(t, h.DeleteFile(path))
	_, err = h.ReadFile(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOnSavedFiresAfterExternalWriteButNotForOwnWrite(t *testing.T) {
	h := startedHost(t, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	other := filepath.Join(dir, "other.md")
	assert.NoError(t, h.WriteFile(path, "original"))

	var mu sync.Mutex
	fires := 0
	release := h.OnSaved(path, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})
	defer release()

	// A sibling file changing must not look like a save of the tracked one.
	assert.NoError(t, os.WriteFile(other, []byte("noise"), 0o644))

	// Step past the own-write grace window, then simulate the editor saving
	// the tracked file.
	time.Sleep(selfWriteGrace + 100*time.Millisecond)
	assert.NoError(t, os.WriteFile(path, []byte("edited"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fires == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestOnSavedDebouncesBurstsIntoOneFire(t *testing.T) {
	h := startedHost(t, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	assert.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	var mu sync.Mutex
	fires := 0
	release := h.OnSaved(path, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})
	defer release()

	for i := 0; i < 5; i++ {
		assert.NoError(t, os.WriteFile(path, []byte("burst"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fires >= 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fires, "a burst of writes is one save")
}

func TestReleasedSaveListenerStopsFiring(t *testing.T) {
	h := startedHost(t, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	assert.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	var mu sync.Mutex
	fires := 0
	release := h.OnSaved(path, func() {
		mu.Lock()
		fires++
		mu.Unlock()
	})
	release()
	release() // double release is safe

	assert.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, fires)
}

func TestProcessExitReportsPaneClosed(t *testing.T) {
	h := startedHost(t, "true") // exits immediately, ignoring its argument
	path := filepath.Join(t.TempDir(), "doc.md")
	assert.NoError(t, h.WriteFile(path, "x"))

	var mu sync.Mutex
	var last []string
	seen := false
	release := h.OnVisibilityChanged(func(visible []string) {
		mu.Lock()
		last = append([]string(nil), visible...)
		seen = true
		mu.Unlock()
	})
	defer release()

	assert.NoError(t, h.OpenBeside(path))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen && !contains(last, filepath.Clean(path))
	}, 3*time.Second, 20*time.Millisecond, "pane must disappear when the editor process exits")
}

func TestOpenBesideFailsForMissingEditor(t *testing.T) {
	h := startedHost(t, "definitely-not-a-real-editor-binary")
	path := filepath.Join(t.TempDir(), "doc.md")
	assert.NoError(t, h.WriteFile(path, "x"))

	assert.Error(t, h.OpenBeside(path))
}

func TestClosePaneRemovesVisibility(t *testing.T) {
	h := startedHost(t, "tail -f") // stays attached to the file until killed
	path := filepath.Join(t.TempDir(), "doc.md")
	assert.NoError(t, h.WriteFile(path, "x"))

	var mu sync.Mutex
	var last []string
	release := h.OnVisibilityChanged(func(visible []string) {
		mu.Lock()
		last = append([]string(nil), visible...)
		mu.Unlock()
	})
	defer release()

	assert.NoError(t, h.OpenBeside(path))
	mu.Lock()
	opened := contains(last, filepath.Clean(path))
	mu.Unlock()
	assert.True(t, opened, "pane must appear after open")

	assert.NoError(t, h.ClosePane(path))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return !contains(last, filepath.Clean(path))
	}, 3*time.Second, 20*time.Millisecond)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
