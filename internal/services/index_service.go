package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"stepweave/internal/events"
	"stepweave/internal/indexer"
	"stepweave/internal/repositories"
	"stepweave/internal/utils"
)

// MessageSearchResults is the retrieval context attached to one conversation
// message: what was searched, what came back, and whether the user asked for
// it explicitly.
type MessageSearchResults struct {
	Results  []indexer.Result `json:"results"`
	Query    string           `json:"query"`
	Explicit bool             `json:"explicit"`
}

// IndexService mirrors the knowledge index lifecycle for the UI and owns the
// per-message search-result cache. The engine is the authority on status; the
// service replaces its mirror on every callback without second-guessing
// transitions.
type IndexService struct {
	settings repositories.AppSettingsRepository
	ctx      context.Context

	mu      sync.RWMutex
	engine  *indexer.Engine
	status  indexer.Status
	cancel  context.CancelFunc
	results map[string]MessageSearchResults
}

func NewIndexService(settings repositories.AppSettingsRepository) *IndexService {
	return &IndexService{
		settings: settings,
		status:   indexer.Status{State: indexer.StatusNotBuilt},
		results:  make(map[string]MessageSearchResults),
	}
}

func (s *IndexService) Startup(ctx context.Context) {
	s.ctx = ctx
}

// Stop cancels an in-flight build, if any.
func (s *IndexService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *IndexService) GetStatus() indexer.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *IndexService) IsReady() bool {
	return s.GetStatus().State == indexer.StatusReady
}

// setStatus replaces the mirror and forwards the change to the frontend.
func (s *IndexService) setStatus(status indexer.Status) {
	s.mu.Lock()
	s.status = status
	ctx := s.ctx
	s.mu.Unlock()
	events.EmitIndexStatus(ctx, status.State, status.FilesTotal, status.FilesDone, status.Commit, status.Error)
}

// BuildIndex re-reads the knowledge directory setting and rebuilds the index
// asynchronously. A build already in flight is cancelled first; progress and
// the terminal ready/error state arrive as index status events.
func (s *IndexService) BuildIndex() error {
	settings, err := s.settings.Get(context.Background())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	root := strings.TrimSpace(settings.KnowledgeDir)
	if root == "" {
		return fmt.Errorf("knowledge directory is not configured")
	}
	if !utils.DirectoryExists(root) {
		return fmt.Errorf("knowledge directory does not exist: %s", root)
	}

	buildCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	engine := indexer.New(root, s.setStatus)
	s.engine = engine
	s.mu.Unlock()

	go func() {
		defer cancel()
		// Status transitions, including the error state, flow through the
		// engine callback; nothing to do with the return value here.
		_ = engine.Build(buildCtx)
	}()
	return nil
}

// Search queries the current index. ErrNotReady surfaces until a build has
// completed.
func (s *IndexService) Search(query string, limit int) ([]indexer.Result, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return nil, indexer.ErrNotReady
	}
	return engine.Search(query, limit)
}

// RetrievalEnabled reports the persisted feature flag gating retrieval
// augmentation of refinement turns.
func (s *IndexService) RetrievalEnabled() (bool, error) {
	settings, err := s.settings.Get(context.Background())
	if err != nil {
		return false, err
	}
	return settings.RetrievalEnabled, nil
}

func (s *IndexService) SetRetrievalEnabled(enabled bool) error {
	settings, err := s.settings.Get(context.Background())
	if err != nil {
		return err
	}
	settings.RetrievalEnabled = enabled
	return s.settings.Update(context.Background(), settings)
}

// SetMessageResults caches the retrieval context used for a message.
func (s *IndexService) SetMessageResults(messageID string, results []indexer.Result, query string, explicit bool) {
	if strings.TrimSpace(messageID) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[messageID] = MessageSearchResults{Results: results, Query: query, Explicit: explicit}
}

// GetMessageResults returns the cached retrieval context for a message.
func (s *IndexService) GetMessageResults(messageID string) (MessageSearchResults, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.results[messageID]
	return entry, ok
}

// DropMessageResults removes one entry, e.g. when its message is removed.
func (s *IndexService) DropMessageResults(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, messageID)
}

// ClearMessageResults empties the cache, e.g. when a conversation is cleared
// or retargeted.
func (s *IndexService) ClearMessageResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]MessageSearchResults)
}
