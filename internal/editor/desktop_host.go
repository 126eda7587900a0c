package editor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSaveDebounce = 400 * time.Millisecond

// selfWriteGrace is how long after materializing a file its change events are
// still assumed to be our own write surfacing through the watcher.
const selfWriteGrace = 150 * time.Millisecond

// DesktopHost implements Host by spawning the user's editor command and
// watching scratch directories for saves.
//
// Saves: one fsnotify watcher covers the directories of all tracked files.
// Events are debounced per path because editors truncate-then-write, or
// rename a temp file over the target, producing several events per save.
//
// Panes: each spawned editor process is one pane; process exit means the pane
// closed. The system-opener fallback detaches immediately, so panes it opened
// stay visible until the session ends another way.
type DesktopHost struct {
	workspaceRoot string
	editorCommand func() string // current configured command, may return ""

	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	saveSubs   map[string]map[int]func()
	dirRefs    map[string]int
	timers     map[string]*time.Timer
	selfWrites map[string]time.Time
	visible    map[string]*exec.Cmd // nil value = opener-launched pane
	visSubs    map[int]func(visible []string)
	nextSub    int
	debounce   time.Duration
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewDesktopHost creates a host rooted at workspaceRoot (may be empty when no
// workspace is open). editorCommand supplies the user's configured editor at
// open time so settings changes apply without a restart.
func NewDesktopHost(workspaceRoot string, editorCommand func() string) *DesktopHost {
	return &DesktopHost{
		workspaceRoot: workspaceRoot,
		editorCommand: editorCommand,
		saveSubs:      map[string]map[int]func(){},
		dirRefs:       map[string]int{},
		timers:        map[string]*time.Timer{},
		selfWrites:    map[string]time.Time{},
		visible:       map[string]*exec.Cmd{},
		visSubs:       map[int]func([]string){},
		debounce:      defaultSaveDebounce,
	}
}

// Start begins delivering save and visibility events. Non-blocking.
func (h *DesktopHost) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	h.watcher = w
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	go h.run(ctx)
	return nil
}

// Stop halts event delivery and waits for the loop to drain.
func (h *DesktopHost) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stop := h.stopCh
	done := h.doneCh
	h.mu.Unlock()

	close(stop)
	<-done
	_ = h.watcher.Close()
}

func (h *DesktopHost) run(ctx context.Context) {
	defer close(h.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handleEvent(ev)
		case _, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (h *DesktopHost) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	abs := filepath.Clean(ev.Name)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, tracked := h.saveSubs[abs]; !tracked {
		return
	}
	// The materializing write races with listener attachment when the
	// directory is already watched for another session; a session must not
	// observe its own initial content as a save. One write can surface as
	// several events, so the suppression entry survives its whole window.
	if wrote, ok := h.selfWrites[abs]; ok {
		if time.Since(wrote) < selfWriteGrace {
			return
		}
		delete(h.selfWrites, abs)
	}
	if t, ok := h.timers[abs]; ok {
		t.Reset(h.debounce)
		return
	}
	h.timers[abs] = time.AfterFunc(h.debounce, func() { h.fireSaved(abs) })
}

func (h *DesktopHost) fireSaved(abs string) {
	h.mu.Lock()
	delete(h.timers, abs)
	subs := make([]func(), 0, len(h.saveSubs[abs]))
	for _, fn := range h.saveSubs[abs] {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (h *DesktopHost) WorkspaceRoot() (string, bool) {
	return h.workspaceRoot, h.workspaceRoot != ""
}

func (h *DesktopHost) TempDir() string {
	return os.TempDir()
}

func (h *DesktopHost) EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (h *DesktopHost) WriteFile(path, content string) error {
	abs := filepath.Clean(path)
	h.mu.Lock()
	h.selfWrites[abs] = time.Now()
	h.mu.Unlock()
	return os.WriteFile(abs, []byte(content), 0o600)
}

func (h *DesktopHost) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *DesktopHost) DeleteFile(path string) error {
	abs := filepath.Clean(path)
	h.forgetPane(abs, false)
	h.mu.Lock()
	delete(h.selfWrites, abs)
	h.mu.Unlock()
	return os.Remove(abs)
}

// OpenBeside launches the configured editor on path. When neither a setting
// nor $VISUAL/$EDITOR names a command, the platform opener takes over; its
// process detaches, so pane-close detection is unavailable for it.
func (h *DesktopHost) OpenBeside(path string) error {
	abs := filepath.Clean(path)

	cmdline := ""
	if h.editorCommand != nil {
		cmdline = strings.TrimSpace(h.editorCommand())
	}
	if cmdline == "" {
		cmdline = strings.TrimSpace(os.Getenv("VISUAL"))
	}
	if cmdline == "" {
		cmdline = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	trackExit := cmdline != ""
	if cmdline == "" {
		cmdline = systemOpener()
	}

	parts := strings.Fields(cmdline)
	cmd := exec.Command(parts[0], append(parts[1:], abs)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch editor %q: %w", parts[0], err)
	}

	h.mu.Lock()
	if trackExit {
		h.visible[abs] = cmd
	} else {
		h.visible[abs] = nil
	}
	h.mu.Unlock()
	h.fireVisibility()

	go func() {
		_ = cmd.Wait()
		if trackExit {
			h.forgetPane(abs, true)
		}
	}()
	return nil
}

// ClosePane dismisses the pane for path, killing a tracked editor process if
// one is still running. Best effort by contract.
func (h *DesktopHost) ClosePane(path string) error {
	abs := filepath.Clean(path)
	h.mu.Lock()
	cmd, ok := h.visible[abs]
	delete(h.visible, abs)
	h.mu.Unlock()
	if !ok {
		return nil
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	h.fireVisibility()
	return nil
}

func (h *DesktopHost) OnSaved(path string, fn func()) func() {
	abs := filepath.Clean(path)
	dir := filepath.Dir(abs)

	h.mu.Lock()
	h.nextSub++
	id := h.nextSub
	if h.saveSubs[abs] == nil {
		h.saveSubs[abs] = map[int]func(){}
	}
	h.saveSubs[abs][id] = fn
	h.dirRefs[dir]++
	first := h.dirRefs[dir] == 1
	w := h.watcher
	h.mu.Unlock()

	if first && w != nil {
		_ = w.Add(dir)
	}

	var once sync.Once
	return func() {
		once.Do(func() { h.releaseSave(abs, dir, id) })
	}
}

func (h *DesktopHost) releaseSave(abs, dir string, id int) {
	h.mu.Lock()
	if subs, ok := h.saveSubs[abs]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.saveSubs, abs)
			if t, ok := h.timers[abs]; ok {
				t.Stop()
				delete(h.timers, abs)
			}
		}
	}
	h.dirRefs[dir]--
	last := h.dirRefs[dir] <= 0
	if last {
		delete(h.dirRefs, dir)
	}
	w := h.watcher
	h.mu.Unlock()

	if last && w != nil {
		_ = w.Remove(dir)
	}
}

func (h *DesktopHost) OnVisibilityChanged(fn func(visible []string)) func() {
	h.mu.Lock()
	h.nextSub++
	id := h.nextSub
	h.visSubs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.visSubs, id)
			h.mu.Unlock()
		})
	}
}

func (h *DesktopHost) forgetPane(abs string, fire bool) {
	h.mu.Lock()
	_, ok := h.visible[abs]
	delete(h.visible, abs)
	h.mu.Unlock()
	if ok && fire {
		h.fireVisibility()
	}
}

func (h *DesktopHost) fireVisibility() {
	h.mu.Lock()
	paths := make([]string, 0, len(h.visible))
	for p := range h.visible {
		paths = append(paths, p)
	}
	subs := make([]func([]string), 0, len(h.visSubs))
	for _, fn := range h.visSubs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(paths)
	}
}

func systemOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "cmd /c start"
	default:
		return "xdg-open"
	}
}
