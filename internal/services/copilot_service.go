package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stepweave/internal/conversation"
	"stepweave/internal/events"
	"stepweave/internal/indexer"
	"stepweave/internal/llm/client"
	"stepweave/internal/models"
	"stepweave/internal/textdiff"
	"stepweave/internal/workflow"
)

const (
	// retrievalLimit caps how many knowledge snippets ride along with one
	// refinement request.
	retrievalLimit = 3

	// defaultRefineTimeoutSecs applies when the settings row cannot be read.
	defaultRefineTimeoutSecs = 120
)

// panelRuntime is the in-memory state of one workflow's copilot panel: the
// conversation store, the request correlation session, and the cancel handle
// of the in-flight refinement, if any.
type panelRuntime struct {
	store     *conversation.Store
	session   *conversation.Session
	cancel    context.CancelFunc
	pendingID string
	modelKey  string
}

// PanelState is the pull-side snapshot of a panel, for initial renders; live
// updates arrive through copilot events.
type PanelState struct {
	Processing    bool   `json:"processing"`
	RequestID     string `json:"requestId,omitempty"`
	Iteration     int    `json:"iteration"`
	MaxIterations int    `json:"maxIterations"`
	NearLimit     bool   `json:"nearLimit"`
	Draft         string `json:"draft"`
	CanSend       bool   `json:"canSend"`
	ModelKey      string `json:"modelKey,omitempty"`
}

// refinerFactory builds a provider client. Swapped out in tests.
type refinerFactory func(ctx context.Context, providerID, apiKey string, mdl *models.LLMModel) (client.Refiner, error)

// CopilotService drives the refinement conversations of the workflow editor.
// Each open panel maps to one panelRuntime; all state transitions happen under
// panelMu so that the staleness check and the mutation it guards stay in one
// critical section.
type CopilotService struct {
	ctx            context.Context
	workflows      WorkflowService
	modelConfigs   ModelConfigService
	keyringService *KeyringService
	appSettings    AppSettingsService
	index          *IndexService

	panelMu sync.Mutex
	panels  map[uint]*panelRuntime // workflowID -> runtime

	newRefiner refinerFactory
}

func NewCopilotService(workflows WorkflowService, modelConfigs ModelConfigService, keyringService *KeyringService, appSettings AppSettingsService, index *IndexService) *CopilotService {
	return &CopilotService{
		workflows:      workflows,
		modelConfigs:   modelConfigs,
		keyringService: keyringService,
		appSettings:    appSettings,
		index:          index,
		panels:         make(map[uint]*panelRuntime),
		newRefiner:     newProviderRefiner,
	}
}

func (s *CopilotService) Startup(ctx context.Context) error {
	s.ctx = ctx
	if s.workflows == nil {
		return fmt.Errorf("workflow service not configured")
	}
	if s.modelConfigs == nil {
		return fmt.Errorf("model configuration service not configured")
	}
	if s.keyringService == nil {
		return fmt.Errorf("keyring service not configured")
	}
	if s.appSettings == nil {
		return fmt.Errorf("app settings service not configured")
	}
	if s.index == nil {
		return fmt.Errorf("index service not configured")
	}
	return nil
}

// OpenConversation loads the stored conversation of a workflow into a panel
// runtime and returns a snapshot of it. Reopening an already open panel is a
// no-op that returns the current state.
func (s *CopilotService) OpenConversation(workflowID uint) (*conversation.History, error) {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	if rt, ok := s.panels[workflowID]; ok {
		return rt.store.Snapshot(), nil
	}

	wf, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	history, err := conversation.UnmarshalHistory(wf.ConversationJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation for workflow %d: %w", workflowID, err)
	}

	store := conversation.NewStore()
	store.Load(history)
	s.panels[workflowID] = &panelRuntime{
		store:   store,
		session: conversation.NewSession(store),
	}
	return store.Snapshot(), nil
}

// CloseConversation tears down a panel runtime, cancelling any in-flight
// refinement. The stored conversation is untouched; per-message search results
// stay cached until their messages are removed.
func (s *CopilotService) CloseConversation(workflowID uint) {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, ok := s.panels[workflowID]
	if !ok {
		return
	}
	if rt.session.Processing() && rt.cancel != nil {
		rt.cancel()
	}
	rt.session.FinishProcessing()
	delete(s.panels, workflowID)
}

// GetConversation returns a snapshot of an open panel's conversation.
func (s *CopilotService) GetConversation(workflowID uint) (*conversation.History, error) {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return nil, err
	}
	return rt.store.Snapshot(), nil
}

// GetPanelState reports the processing flag, iteration budget and draft of an
// open panel.
func (s *CopilotService) GetPanelState(workflowID uint) (*PanelState, error) {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return nil, err
	}
	h := rt.store.History()
	state := &PanelState{
		Processing: rt.session.Processing(),
		RequestID:  rt.session.RequestID(),
		NearLimit:  rt.store.NearIterationLimit(),
		Draft:      rt.store.Draft(),
		CanSend:    rt.store.CanSend(rt.session.Processing()),
		ModelKey:   rt.modelKey,
	}
	if h != nil {
		state.Iteration = h.CurrentIteration
		state.MaxIterations = h.MaxIterations
	}
	return state, nil
}

// SetDraft stores the panel's composer text so CanSend can be answered and the
// draft survives panel re-renders.
func (s *CopilotService) SetDraft(workflowID uint, text string) error {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return err
	}
	rt.store.SetDraft(text)
	return nil
}

// CanSend reports whether the panel may issue a refinement right now.
func (s *CopilotService) CanSend(workflowID uint) bool {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, ok := s.panels[workflowID]
	if !ok {
		return false
	}
	return rt.store.CanSend(rt.session.Processing())
}

// Send issues one refinement turn: it appends the user message, attaches
// knowledge snippets when retrieval applies, appends the assistant
// placeholder, and runs the model call asynchronously. The returned request id
// correlates the eventual completion; failures after this point surface on the
// placeholder message, not as an error return.
//
// modelKey may be empty to use the configured default. A non-empty searchQuery
// forces an explicit knowledge search for this turn; otherwise retrieval runs
// automatically on the instruction when it is enabled and the index is ready.
func (s *CopilotService) Send(workflowID uint, text string, modelKey string, searchQuery string) (string, error) {
	instruction := strings.TrimSpace(text)
	if instruction == "" {
		return "", fmt.Errorf("message text is required")
	}

	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return "", err
	}
	if rt.session.Processing() {
		return "", conversation.ErrRequestInFlight
	}

	wf, err := s.workflows.GetWorkflow(workflowID)
	if err != nil {
		return "", err
	}

	settings := s.loadSettings()
	key := strings.TrimSpace(modelKey)
	if key == "" {
		key = strings.TrimSpace(settings.DefaultModelKey)
	}

	// Prior turns only; the current instruction travels separately.
	turns := historyTurns(rt.store.History())

	requestID := uuid.NewString()
	if err := rt.session.StartProcessing(requestID); err != nil {
		return "", err
	}
	rt.modelKey = key

	userMsg := rt.store.AppendUser(instruction)
	events.EmitCopilotMessage(s.ctx, workflowID, userMsg)

	snippets := s.attachRetrieval(userMsg.ID, instruction, searchQuery, settings)

	pending := rt.store.AppendPendingAssistant()
	rt.pendingID = pending.ID
	events.EmitCopilotMessage(s.ctx, workflowID, pending)
	s.emitState(workflowID, rt)

	refiner, _, err := s.instantiateRefiner(key)
	if err != nil {
		s.failTurnLocked(rt, workflowID, pending.ID, err)
		return requestID, nil
	}

	req := &client.RefineRequest{
		WorkflowName: wf.Name,
		Document:     wf.Document,
		Instruction:  instruction,
		History:      turns,
		Snippets:     snippets,
	}

	base := s.ctx
	if base == nil {
		base = context.Background()
	}
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout := time.Duration(settings.RefineTimeoutSecs) * time.Second; timeout > 0 {
		runCtx, cancel = context.WithTimeout(base, timeout)
	} else {
		runCtx, cancel = context.WithCancel(base)
	}
	rt.cancel = cancel

	go s.runRefine(runCtx, cancel, rt, workflowID, requestID, pending.ID, wf.Document, req, refiner)
	return requestID, nil
}

// Cancel aborts the in-flight refinement of a panel. The placeholder message
// is removed, the user message stays, and the late model completion is
// discarded by the request id check.
func (s *CopilotService) Cancel(workflowID uint) error {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return err
	}
	if !rt.session.Processing() {
		return nil
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	pendingID := rt.pendingID
	rt.session.FinishProcessing()
	if rt.store.Remove(pendingID) {
		events.EmitCopilotMessageRemoved(s.ctx, workflowID, pendingID)
	}
	s.persistLocked(rt, workflowID, nil)
	s.emitState(workflowID, rt)
	return nil
}

// ClearConversation empties the panel's history and resets its iteration
// counter. Search result caches of the removed messages are dropped with them.
func (s *CopilotService) ClearConversation(workflowID uint) error {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return err
	}
	if rt.session.Processing() {
		return fmt.Errorf("ERR_REFINE_IN_PROGRESS")
	}

	if h := rt.store.History(); h != nil && s.index != nil {
		for _, m := range h.Messages {
			s.index.DropMessageResults(m.ID)
		}
	}
	rt.store.Clear()
	s.persistLocked(rt, workflowID, nil)
	s.emitState(workflowID, rt)
	return nil
}

// RemoveMessage deletes one message from the conversation along with its
// cached search results. The placeholder of an in-flight refinement cannot be
// removed; cancel first.
func (s *CopilotService) RemoveMessage(workflowID uint, messageID string) error {
	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return err
	}
	if rt.session.Processing() && messageID == rt.pendingID {
		return fmt.Errorf("ERR_REFINE_IN_PROGRESS")
	}
	if !rt.store.Remove(messageID) {
		return nil
	}
	if s.index != nil {
		s.index.DropMessageResults(messageID)
	}
	s.persistLocked(rt, workflowID, nil)
	events.EmitCopilotMessageRemoved(s.ctx, workflowID, messageID)
	return nil
}

// SearchKnowledge runs an explicit knowledge search on behalf of an existing
// conversation message and caches the results against it, replacing whatever
// the automatic retrieval stored there.
func (s *CopilotService) SearchKnowledge(workflowID uint, messageID, query string) ([]indexer.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	rt, err := s.panel(workflowID)
	if err != nil {
		return nil, err
	}
	if _, ok := messageByID(rt.store.History(), messageID); !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}

	results, err := s.index.Search(query, retrievalLimit)
	if err != nil {
		return nil, err
	}
	s.index.SetMessageResults(messageID, results, query, true)
	return results, nil
}

// runRefine is the async half of Send. It owns no panel state: every read or
// write of the runtime happens under panelMu behind a Matches check, so a
// cancelled or superseded request cannot touch the conversation.
func (s *CopilotService) runRefine(ctx context.Context, cancel context.CancelFunc, rt *panelRuntime, workflowID uint, requestID, pendingID, baseDoc string, req *client.RefineRequest, refiner client.Refiner) {
	defer cancel()

	var (
		result   *client.RefineResult
		err      error
		streamed bool
	)
	if streamer, ok := refiner.(client.StreamingRefiner); ok {
		streamed = true
		result, err = streamer.RefineStream(ctx, req, func(delta string) {
			s.panelMu.Lock()
			if rt.session.Matches(requestID) && rt.store.AppendContent(pendingID, delta) {
				events.EmitCopilotStream(s.ctx, workflowID, pendingID, delta)
			}
			s.panelMu.Unlock()
		})
	} else {
		result, err = refiner.Refine(ctx, req)
	}

	if err != nil {
		s.panelMu.Lock()
		if rt.session.Matches(requestID) {
			s.failTurnLocked(rt, workflowID, pendingID, err)
		}
		s.panelMu.Unlock()
		return
	}

	doc, err := workflow.ParseAndValidate(result.Document)
	if err == nil {
		var canonical string
		canonical, err = workflow.Marshal(doc)
		if err == nil {
			s.applyResult(rt, workflowID, requestID, pendingID, baseDoc, canonical, result.Summary, streamed)
			return
		}
	}

	s.panelMu.Lock()
	if rt.session.Matches(requestID) {
		s.failTurnLocked(rt, workflowID, pendingID, err)
	}
	s.panelMu.Unlock()
}

// applyResult lands a validated refinement: the placeholder becomes the ready
// assistant message, the iteration is counted, and document plus conversation
// are persisted together.
func (s *CopilotService) applyResult(rt *panelRuntime, workflowID uint, requestID, pendingID, baseDoc, document, summary string, streamed bool) {
	content := strings.TrimSpace(summary)
	if content == "" {
		content = "Applied the requested changes."
	}
	diff := textdiff.Summary(baseDoc, document)

	s.panelMu.Lock()
	defer s.panelMu.Unlock()

	if !rt.session.Matches(requestID) {
		return
	}

	applied := false
	if streamed {
		// Streamed raw model output is replaced by the clean summary.
		if rt.store.SetContent(pendingID, content) {
			rt.store.Resolve(pendingID, diff)
			rt.store.CountIteration()
			applied = true
		}
		rt.session.FinishProcessing()
	} else {
		if msgs, ok := withResolved(rt.store.History(), pendingID, content, diff); ok {
			rt.session.HandleSuccess(msgs)
			applied = true
		} else {
			rt.session.FinishProcessing()
		}
	}
	if !applied {
		// Placeholder was removed mid-flight; drop the result.
		s.emitState(workflowID, rt)
		return
	}

	s.persistLocked(rt, workflowID, map[string]interface{}{"document": document})

	if msg, ok := messageByID(rt.store.History(), pendingID); ok {
		events.EmitCopilotMessage(s.ctx, workflowID, msg)
	}
	s.emitState(workflowID, rt)
}

// failTurnLocked marks the placeholder failed with the code classified from
// err and returns the session to idle. Callers hold panelMu.
func (s *CopilotService) failTurnLocked(rt *panelRuntime, workflowID uint, pendingID string, err error) {
	code := models.FailureCodeOf(err)
	rt.session.HandleFailure(pendingID, string(code))
	s.persistLocked(rt, workflowID, nil)

	if msg, ok := messageByID(rt.store.History(), pendingID); ok {
		events.EmitCopilotMessage(s.ctx, workflowID, msg)
	}
	s.emitState(workflowID, rt)
}

// persistLocked writes the serialized conversation, plus any extra column
// updates, to the workflow row. Persistence failures are reported as a
// notification; the in-memory conversation stays authoritative.
func (s *CopilotService) persistLocked(rt *panelRuntime, workflowID uint, extra map[string]interface{}) {
	raw, err := conversation.MarshalHistory(rt.store.History())
	if err != nil {
		events.Emit(s.ctx, events.Notify, events.NewError(fmt.Sprintf("Failed to save conversation: %v", err)))
		return
	}
	updates := map[string]interface{}{"conversation_json": raw}
	for k, v := range extra {
		updates[k] = v
	}
	if err := s.workflows.UpdateByID(workflowID, updates); err != nil {
		events.Emit(s.ctx, events.Notify, events.NewError(fmt.Sprintf("Failed to save conversation: %v", err)))
	}
}

// attachRetrieval runs the knowledge search for a turn and caches the results
// against the user message. It returns the snippets to send with the request:
// nil when retrieval does not apply or the index is not ready.
func (s *CopilotService) attachRetrieval(messageID, instruction, searchQuery string, settings *models.AppSettings) []client.Snippet {
	query := strings.TrimSpace(searchQuery)
	explicit := query != ""
	if !explicit {
		if settings == nil || !settings.RetrievalEnabled {
			return nil
		}
		query = instruction
	}
	if s.index == nil || !s.index.IsReady() {
		return nil
	}

	results, err := s.index.Search(query, retrievalLimit)
	if err != nil {
		return nil
	}
	s.index.SetMessageResults(messageID, results, query, explicit)

	snippets := make([]client.Snippet, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, client.Snippet{Path: r.Path, Text: r.Snippet})
	}
	return snippets
}

// instantiateRefiner resolves a model key to a ready provider client. Every
// resolution failure carries COMMAND_NOT_FOUND: the model cannot be run,
// whether it is unknown, disabled, or missing its API key.
func (s *CopilotService) instantiateRefiner(modelKey string) (client.Refiner, *models.LLMModel, error) {
	if s.ctx == nil {
		return nil, nil, fmt.Errorf("copilot service not initialized")
	}

	key := strings.TrimSpace(modelKey)
	if key == "" {
		return nil, nil, models.NewRefineError(models.FailureCommandNotFound, "no model is selected and no default model is configured")
	}

	mdl, err := s.modelConfigs.GetModel(key)
	if err != nil {
		return nil, nil, models.WrapRefineError(models.FailureCommandNotFound, err)
	}
	if !mdl.Enabled {
		return nil, nil, models.NewRefineError(models.FailureCommandNotFound, "model %s is disabled", mdl.DisplayName)
	}

	providerID := strings.TrimSpace(mdl.ProviderID)
	if providerID == "" {
		return nil, nil, models.NewRefineError(models.FailureCommandNotFound, "model %s is missing provider information", mdl.DisplayName)
	}

	apiKey, err := s.keyringService.GetApiKey(providerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get API key for %s: %w", providerID, err)
	}
	if apiKey == "" {
		return nil, nil, models.NewRefineError(models.FailureCommandNotFound, "API key for %s is not configured", providerID)
	}

	refiner, err := s.newRefiner(s.ctx, providerID, apiKey, mdl)
	if err != nil {
		return nil, nil, err
	}
	return refiner, mdl, nil
}

// newProviderRefiner is the production refinerFactory.
func newProviderRefiner(ctx context.Context, providerID, apiKey string, mdl *models.LLMModel) (client.Refiner, error) {
	var (
		refiner   client.Refiner
		createErr error
	)
	switch providerID {
	case "anthropic":
		refiner, createErr = client.NewClaudeClient(ctx, apiKey, client.ClaudeModelOptions{
			Model:     mdl.APIName,
			MaxTokens: mdl.MaxTokens,
		})
	case "openai":
		refiner, createErr = client.NewOpenAIClient(ctx, apiKey, client.OpenAIModelOptions{
			Model:     mdl.APIName,
			MaxTokens: mdl.MaxTokens,
		})
	case "gemini":
		refiner, createErr = client.NewGeminiClient(ctx, apiKey, client.GeminiModelOptions{
			Model:     mdl.APIName,
			MaxTokens: mdl.MaxTokens,
		})
	default:
		return nil, models.NewRefineError(models.FailureCommandNotFound, "unsupported provider: %s", providerID)
	}
	if createErr != nil {
		return nil, models.WrapRefineError(models.FailureCommandNotFound,
			fmt.Errorf("failed to create %s client: %w", providerID, createErr))
	}
	return refiner, nil
}

// loadSettings returns the stored settings, or defaults when the row cannot
// be read; a broken settings table must not block sending.
func (s *CopilotService) loadSettings() *models.AppSettings {
	if s.appSettings != nil {
		if settings, err := s.appSettings.Get(); err == nil && settings != nil {
			return settings
		}
	}
	return &models.AppSettings{RefineTimeoutSecs: defaultRefineTimeoutSecs}
}

func (s *CopilotService) panel(workflowID uint) (*panelRuntime, error) {
	rt, ok := s.panels[workflowID]
	if !ok {
		return nil, fmt.Errorf("no conversation is open for workflow %d", workflowID)
	}
	return rt, nil
}

func (s *CopilotService) emitState(workflowID uint, rt *panelRuntime) {
	iteration := 0
	if h := rt.store.History(); h != nil {
		iteration = h.CurrentIteration
	}
	events.EmitCopilotState(s.ctx, workflowID,
		rt.session.Processing(), rt.session.RequestID(),
		iteration, rt.store.NearIterationLimit())
}

// historyTurns maps the ready messages of a conversation to prompt turns.
// Pending and failed messages never replay.
func historyTurns(h *conversation.History) []client.Turn {
	if h == nil {
		return nil
	}
	turns := make([]client.Turn, 0, len(h.Messages))
	for _, m := range h.Messages {
		if m.State != conversation.StateReady {
			continue
		}
		turns = append(turns, client.Turn{Role: m.Sender, Content: m.Content})
	}
	return turns
}

// withResolved builds the post-turn message list with the pending placeholder
// flipped to a ready message. ok is false when the placeholder is gone.
func withResolved(h *conversation.History, pendingID, content, diffSummary string) ([]conversation.Message, bool) {
	if h == nil {
		return nil, false
	}
	out := make([]conversation.Message, len(h.Messages))
	copy(out, h.Messages)
	for i := range out {
		if out[i].ID == pendingID && out[i].State == conversation.StatePending {
			out[i].Content = content
			out[i].State = conversation.StateReady
			out[i].DiffSummary = diffSummary
			return out, true
		}
	}
	return nil, false
}

func messageByID(h *conversation.History, id string) (conversation.Message, bool) {
	if h == nil {
		return conversation.Message{}, false
	}
	for _, m := range h.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return conversation.Message{}, false
}
