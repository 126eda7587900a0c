package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"stepweave/internal/editor"
	"stepweave/internal/events"
)

// EditSessionService runs external-edit round trips: materialize content to a
// scratch file, open it beside the current pane, and deliver the outcome back
// to the owning surface exactly once, whether the user saves, closes the pane
// without saving, or the open fails outright.
type EditSessionService struct {
	host     editor.Host
	registry *editSessionRegistry
	ctx      context.Context
}

func NewEditSessionService(host editor.Host) *EditSessionService {
	return &EditSessionService{host: host, registry: newEditSessionRegistry()}
}

func (s *EditSessionService) Startup(ctx context.Context) {
	s.ctx = ctx
}

// OpenForEdit hands content to the external editor under a caller-chosen
// session id. The outcome arrives as a single EditorContentUpdated event; a
// session id that is already live drops the request without touching the live
// session's file.
//
// The session is registered before the file is written so the duplicate check
// and the path ownership are decided atomically; every failure after that
// point claims the session back, so no failed open leaves an entry behind.
func (s *EditSessionService) OpenForEdit(sessionID string, content string, kind string, surface string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	dir := s.scratchDir()
	path := filepath.Join(dir, editor.ScratchFileName(kind, sessionID))

	session := &editSession{id: sessionID, path: path, surface: surface, original: content}
	if err := s.registry.register(session); err != nil {
		// Duplicate ids are a race resolved by design: the live session wins
		// and the new request disappears without a sound.
		return nil
	}

	if err := s.host.EnsureDir(dir); err != nil {
		s.failOpen(session, fmt.Errorf("failed to prepare scratch directory: %w", err))
		return nil
	}
	if err := s.host.WriteFile(path, content); err != nil {
		s.failOpen(session, fmt.Errorf("failed to write scratch file: %w", err))
		return nil
	}
	if err := s.host.OpenBeside(path); err != nil {
		s.failOpen(session, fmt.Errorf("failed to open external editor: %w", err))
		return nil
	}

	releaseSaved := s.host.OnSaved(path, func() {
		s.handleSaved(sessionID)
	})
	releaseVisibility := s.host.OnVisibilityChanged(func(visible []string) {
		s.handleVisibility(sessionID, path, visible)
	})
	if !s.registry.setReleases(sessionID, []func(){releaseSaved, releaseVisibility}) {
		releaseSaved()
		releaseVisibility()
	}
	return nil
}

// ActiveSessions reports how many external edits are currently live.
func (s *EditSessionService) ActiveSessions() int {
	return s.registry.count()
}

// handleSaved is the save-terminal path: the persisted text wins.
func (s *EditSessionService) handleSaved(sessionID string) {
	session, ok := s.registry.claim(sessionID)
	if !ok {
		return
	}
	content, err := s.host.ReadFile(session.path)
	if err != nil {
		// The save happened; delivery must not depend on the re-read.
		content = session.original
	}
	s.finish(session, content, true)
}

// handleVisibility is the close-terminal path: when the tracked pane is no
// longer visible the session ended without an explicit save. Text typed before
// closing is captured when the file is still readable.
func (s *EditSessionService) handleVisibility(sessionID string, path string, visible []string) {
	for _, v := range visible {
		if v == path {
			return
		}
	}
	session, ok := s.registry.claim(sessionID)
	if !ok {
		return
	}
	content := session.original
	if text, err := s.host.ReadFile(session.path); err == nil {
		content = text
	}
	s.finish(session, content, false)
}

// finish delivers the outcome for a claimed session and tears the session
// down: listeners first, then the scratch file. Read/delete problems are
// swallowed; the delivery already happened.
func (s *EditSessionService) finish(session *editSession, content string, saved bool) {
	events.EmitEditorContentUpdated(s.ctx, session.id, session.surface, content, saved)
	for _, release := range session.releases {
		release()
	}
	if saved {
		_ = s.host.ClosePane(session.path)
	}
	_ = s.host.DeleteFile(session.path)
}

// failOpen aborts a session that never reached its editor: claim it back,
// drop whatever was written, notify, and deliver the original content as an
// unsaved outcome.
func (s *EditSessionService) failOpen(session *editSession, cause error) {
	if _, ok := s.registry.claim(session.id); !ok {
		return
	}
	_ = s.host.DeleteFile(session.path)
	events.Emit(s.ctx, events.Notify, events.NewError(fmt.Sprintf("External edit failed: %v", cause)))
	events.EmitEditorContentUpdated(s.ctx, session.id, session.surface, session.original, false)
}

// scratchDir prefers a workspace-local directory so paths normalize the same
// way across platforms; without a workspace the OS temp directory serves.
func (s *EditSessionService) scratchDir() string {
	if root, ok := s.host.WorkspaceRoot(); ok {
		return filepath.Join(root, ".stepweave", "edits")
	}
	return filepath.Join(s.host.TempDir(), "stepweave-edits")
}
