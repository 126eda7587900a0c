package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"stepweave/internal/editor"
	"stepweave/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEditorHost is an in-memory editor.Host. Tests drive saves and pane
// visibility by hand.
type fakeEditorHost struct {
	mu      sync.Mutex
	root    string
	hasRoot bool

	files   map[string]string
	visible map[string]bool

	writeErr error
	openErr  error
	readErr  error

	opened  []string
	closed  []string
	deleted []string

	savedSubs  map[int]savedSub
	visSubs    map[int]func([]string)
	nextSubID  int
	subsActive int
}

type savedSub struct {
	path string
	fn   func()
}

func newFakeEditorHost(root string) *fakeEditorHost {
	return &fakeEditorHost{
		root:      root,
		hasRoot:   root != "",
		files:     make(map[string]string),
		visible:   make(map[string]bool),
		savedSubs: make(map[int]savedSub),
		visSubs:   make(map[int]func([]string)),
	}
}

func (h *fakeEditorHost) WorkspaceRoot() (string, bool) { return h.root, h.hasRoot }
func (h *fakeEditorHost) TempDir() string               { return "/tmp" }
func (h *fakeEditorHost) EnsureDir(string) error        { return nil }

func (h *fakeEditorHost) WriteFile(path, content string) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = content
	return nil
}

func (h *fakeEditorHost) ReadFile(path string) (string, error) {
	if h.readErr != nil {
		return "", h.readErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	content, ok := h.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

func (h *fakeEditorHost) DeleteFile(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, path)
	h.deleted = append(h.deleted, path)
	return nil
}

func (h *fakeEditorHost) OpenBeside(path string) error {
	if h.openErr != nil {
		return h.openErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, path)
	h.visible[path] = true
	return nil
}

func (h *fakeEditorHost) ClosePane(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, path)
	delete(h.visible, path)
	return nil
}

func (h *fakeEditorHost) OnSaved(path string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	h.savedSubs[id] = savedSub{path: path, fn: fn}
	h.subsActive++
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.savedSubs, id)
			h.subsActive--
		})
	}
}

func (h *fakeEditorHost) OnVisibilityChanged(fn func([]string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	h.visSubs[id] = fn
	h.subsActive++
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.visSubs, id)
			h.subsActive--
		})
	}
}

// fireSaved simulates the editor saving a path.
func (h *fakeEditorHost) fireSaved(path string) {
	h.mu.Lock()
	var fns []func()
	for _, sub := range h.savedSubs {
		if sub.path == path {
			fns = append(fns, sub.fn)
		}
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// closePaneExternally removes a path from the visible set and notifies
// visibility subscribers, as if the user closed the editor.
func (h *fakeEditorHost) closePaneExternally(path string) {
	h.mu.Lock()
	delete(h.visible, path)
	var stillVisible []string
	for p := range h.visible {
		stillVisible = append(stillVisible, p)
	}
	var fns []func([]string)
	for _, fn := range h.visSubs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(stillVisible)
	}
}

func (h *fakeEditorHost) activeSubs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subsActive
}

func (h *fakeEditorHost) fileContent(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	content, ok := h.files[path]
	return content, ok
}

// captureEditorEvents routes emitted payload events into slices for the test.
func captureEditorEvents(t *testing.T) (*[]events.EditorContentUpdatedEvent, *[]events.Notice) {
	t.Helper()
	var updates []events.EditorContentUpdatedEvent
	var notifications []events.Notice
	var mu sync.Mutex

	events.SetCustomPayloadEmitter(func(_ context.Context, name string, payload interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if name == events.EditorContentUpdated {
			updates = append(updates, payload.(events.EditorContentUpdatedEvent))
		}
	})
	events.SetCustomEmitter(func(_ context.Context, name string, evt events.Notice) {
		mu.Lock()
		defer mu.Unlock()
		notifications = append(notifications, evt)
	})
	t.Cleanup(func() {
		events.SetCustomPayloadEmitter(func(context.Context, string, interface{}) {})
		events.SetCustomEmitter(func(context.Context, string, events.Notice) {})
	})
	return &updates, &notifications
}

func newEditService(host editor.Host) *EditSessionService {
	svc := NewEditSessionService(host)
	svc.Startup(context.Background())
	return svc
}

func scratchPath(root, name string) string {
	return filepath.Join(root, ".stepweave", "edits", name)
}

func TestOpenForEdit_SaveRoundTrip(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-1", "hello", editor.KindMarkdown, "copilot"))
	path := scratchPath("/ws", "msg-1.md")

	content, ok := host.fileContent(path)
	require.True(t, ok)
	assert.Equal(t, "hello", content)
	assert.Equal(t, []string{path}, host.opened)
	assert.Equal(t, 1, svc.ActiveSessions())

	// The user edits and saves.
	require.NoError(t, host.WriteFile(path, "hello edited"))
	host.fireSaved(path)

	require.Len(t, *updates, 1)
	update := (*updates)[0]
	assert.Equal(t, "msg-1", update.SessionID)
	assert.Equal(t, "copilot", update.Surface)
	assert.Equal(t, "hello edited", update.Content)
	assert.True(t, update.Saved)

	assert.Equal(t, 0, svc.ActiveSessions())
	assert.Equal(t, 0, host.activeSubs())
	_, exists := host.fileContent(path)
	assert.False(t, exists, "scratch file should be deleted")
	assert.Equal(t, []string{path}, host.closed)
}

func TestOpenForEdit_CloseWithoutSaveCapturesTypedText(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-2", "draft", editor.KindText, "copilot"))
	path := scratchPath("/ws", "msg-2.txt")

	// Editor wrote to disk without the app seeing an explicit save event.
	require.NoError(t, host.WriteFile(path, "draft with more text"))
	host.closePaneExternally(path)

	require.Len(t, *updates, 1)
	update := (*updates)[0]
	assert.Equal(t, "draft with more text", update.Content)
	assert.False(t, update.Saved)
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.Equal(t, 0, host.activeSubs())
}

func TestOpenForEdit_CloseReadFailureFallsBackToOriginal(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-3", "original", editor.KindText, "node"))
	path := scratchPath("/ws", "msg-3.txt")

	host.readErr = fmt.Errorf("file vanished")
	host.closePaneExternally(path)

	require.Len(t, *updates, 1)
	assert.Equal(t, "original", (*updates)[0].Content)
	assert.False(t, (*updates)[0].Saved)
}

func TestOpenForEdit_SaveThenCloseDeliversOnce(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-4", "content", editor.KindMarkdown, "copilot"))
	path := scratchPath("/ws", "msg-4.md")

	host.fireSaved(path)
	host.closePaneExternally(path)
	host.fireSaved(path)

	require.Len(t, *updates, 1)
	assert.True(t, (*updates)[0].Saved)
	assert.Equal(t, 0, svc.ActiveSessions())
}

func TestOpenForEdit_DuplicateSessionDroppedSilently(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, notifications := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("dup", "first", editor.KindText, "copilot"))
	require.NoError(t, svc.OpenForEdit("dup", "second", editor.KindText, "copilot"))

	path := scratchPath("/ws", "dup.txt")
	content, _ := host.fileContent(path)
	assert.Equal(t, "first", content, "live session's file must not be overwritten")
	assert.Equal(t, 1, svc.ActiveSessions())
	assert.Empty(t, *updates)
	assert.Empty(t, *notifications)
	assert.Len(t, host.opened, 1)
}

func TestOpenForEdit_OpenFailureDeliversOriginalUnsaved(t *testing.T) {
	host := newFakeEditorHost("/ws")
	host.openErr = fmt.Errorf("no editor available")
	updates, notifications := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-5", "body", editor.KindText, "copilot"))

	require.Len(t, *updates, 1)
	assert.Equal(t, "body", (*updates)[0].Content)
	assert.False(t, (*updates)[0].Saved)
	require.Len(t, *notifications, 1)
	assert.Equal(t, events.EventError, (*notifications)[0].Type)

	assert.Equal(t, 0, svc.ActiveSessions())
	path := scratchPath("/ws", "msg-5.txt")
	_, exists := host.fileContent(path)
	assert.False(t, exists, "written file should be removed after open failure")
}

func TestOpenForEdit_WriteFailureDeliversOriginalUnsaved(t *testing.T) {
	host := newFakeEditorHost("/ws")
	host.writeErr = fmt.Errorf("disk full")
	updates, notifications := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("msg-6", "body", editor.KindText, "copilot"))

	require.Len(t, *updates, 1)
	assert.Equal(t, "body", (*updates)[0].Content)
	assert.False(t, (*updates)[0].Saved)
	require.Len(t, *notifications, 1)
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.Empty(t, host.opened)
}

func TestOpenForEdit_IndependentSessionsDeliverIndependently(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("many-%d", i)
		require.NoError(t, svc.OpenForEdit(id, fmt.Sprintf("content %d", i), editor.KindText, "copilot"))
	}
	assert.Equal(t, 3, svc.ActiveSessions())

	// Terminal events in a different order than the opens.
	host.fireSaved(scratchPath("/ws", "many-1.txt"))
	host.closePaneExternally(scratchPath("/ws", "many-2.txt"))
	host.fireSaved(scratchPath("/ws", "many-0.txt"))

	require.Len(t, *updates, 3)
	seen := map[string]bool{}
	for _, update := range *updates {
		assert.False(t, seen[update.SessionID], "session %s delivered twice", update.SessionID)
		seen[update.SessionID] = true
	}
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.Equal(t, 0, host.activeSubs())
}

func TestOpenForEdit_NoWorkspaceFallsBackToTempDir(t *testing.T) {
	host := newFakeEditorHost("")
	captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("tmp-1", "x", editor.KindText, "copilot"))
	path := filepath.Join("/tmp", "stepweave-edits", "tmp-1.txt")
	_, ok := host.fileContent(path)
	assert.True(t, ok)
}

func TestOpenForEdit_VisibilityOfOtherPanesIsIgnored(t *testing.T) {
	host := newFakeEditorHost("/ws")
	updates, _ := captureEditorEvents(t)
	svc := newEditService(host)

	require.NoError(t, svc.OpenForEdit("stay", "keep me", editor.KindText, "copilot"))
	require.NoError(t, svc.OpenForEdit("go", "close me", editor.KindText, "copilot"))

	host.closePaneExternally(scratchPath("/ws", "go.txt"))

	require.Len(t, *updates, 1)
	assert.Equal(t, "go", (*updates)[0].SessionID)
	assert.Equal(t, 1, svc.ActiveSessions(), "unrelated session must stay live")
}
