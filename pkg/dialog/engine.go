package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/laitim2001/itsm-intent-router/pkg/audit"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/metrics"
)

// IntentRouter is the single entry into the classifier cascade. The engine
// calls it exactly once per conversation, in StartDialog.
type IntentRouter interface {
	Route(ctx context.Context, text, correlationID string) *intent.RoutingDecision
}

// FieldExtractor re-extracts fields and recomputes completeness each turn.
type FieldExtractor interface {
	Check(category intent.Category, text string, collected map[string]string) (intent.CompletenessInfo, map[string]string)
}

// Engine is the guided dialog state machine:
// initial -> gathering (repeats) -> complete | handoff | clarification.
// Turns for the same conversation are serialized by a per-conversation
// lock; different conversations are fully independent.
type Engine struct {
	router     IntentRouter
	extractor  FieldExtractor
	questions  *QuestionGenerator
	refiner    *Refiner
	contextMgr ContextManager
	store      Store
	auditor    *audit.Logger
	maxTurns   int

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewEngine assembles the dialog engine. maxTurns bounds dialog cost: once
// reached, the engine forces a terminal handoff regardless of completeness.
func NewEngine(router IntentRouter, extractor FieldExtractor, questions *QuestionGenerator, refiner *Refiner, store Store, auditor *audit.Logger, maxTurns int) *Engine {
	return &Engine{
		router:    router,
		extractor: extractor,
		questions: questions,
		refiner:   refiner,
		store:     store,
		auditor:   auditor,
		maxTurns:  maxTurns,
		locks:     make(map[string]*sync.Mutex),
	}
}

// StartDialog classifies the opening text — the only classifier-cascade
// invocation of the whole conversation — and evaluates completeness.
func (e *Engine) StartDialog(ctx context.Context, text string) (*Response, error) {
	conversationID := uuid.NewString()

	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	decision := e.router.Route(ctx, text, conversationID)

	state := newState(conversationID)
	state.Decision = decision
	state.TurnCount = 1
	e.contextMgr.MergeTurn(state, text)

	if decision.IntentCategory != intent.CategoryUnknown {
		info, extracted := e.extractor.Check(decision.IntentCategory, text, nil)
		e.contextMgr.MergeFields(state, extracted)
		decision.Completeness = info
	}

	e.evaluate(state)

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save dialog state: %w", err)
	}

	metrics.RecordDialogTurn(string(state.Phase))
	e.auditTurn(state, text)
	return e.response(state), nil
}

// ProcessResponse merges the user's answer into the conversation context,
// re-extracts fields, applies at most one refinement rule, and re-evaluates
// completeness. It never invokes the classifier cascade.
func (e *Engine) ProcessResponse(ctx context.Context, conversationID, text string) (*Response, error) {
	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if state.Phase.terminal() {
		return e.response(state), nil
	}

	state.TurnCount++
	e.contextMgr.MergeTurn(state, text)
	merged := e.contextMgr.MergedText(state)

	decision := state.Decision
	if decision.IntentCategory != intent.CategoryUnknown {
		info, extracted := e.extractor.Check(decision.IntentCategory, merged, state.Collected)
		e.contextMgr.MergeFields(state, extracted)
		decision.Completeness = info

		if rule, ok := e.refiner.Refine(decision.IntentCategory, decision.SubIntent, state.Collected); ok {
			if rule.TargetSubIntent != decision.SubIntent {
				logging.Infof("Conversation %s: sub-intent refined %q -> %q by rule %s",
					conversationID, decision.SubIntent, rule.TargetSubIntent, rule.ID)
				decision.SubIntent = rule.TargetSubIntent
				decision.Metadata["refined_by_rule"] = rule.ID
			}
		}
	}

	e.evaluate(state)

	if err := e.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save dialog state: %w", err)
	}

	metrics.RecordDialogTurn(string(state.Phase))
	e.auditTurn(state, text)
	return e.response(state), nil
}

// Get returns the current dialog state for a conversation.
func (e *Engine) Get(ctx context.Context, conversationID string) (*State, error) {
	return e.store.Get(ctx, conversationID)
}

// Reset discards all engine and context state for a conversation so the id
// space can be reused by a new exchange.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	lock := e.conversationLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.store.Delete(ctx, conversationID); err != nil {
		return err
	}

	e.lockMu.Lock()
	delete(e.locks, conversationID)
	e.lockMu.Unlock()
	return nil
}

// evaluate drives the phase transitions shared by the initial and
// follow-up turns, then enforces the turn ceiling.
func (e *Engine) evaluate(state *State) {
	decision := state.Decision

	switch {
	case decision.IntentCategory == intent.CategoryUnknown:
		state.Phase = PhaseClarification
		state.Questions = []string{e.questions.ClarificationQuestion()}
	case decision.Completeness.IsComplete:
		state.Phase = PhaseComplete
		state.Completed = true
		state.Questions = nil
	default:
		state.Phase = PhaseGathering
		state.Questions = e.questions.Generate(decision.IntentCategory, decision.Completeness.MissingFields)
	}

	if !state.Phase.terminal() && state.TurnCount >= e.maxTurns {
		state.Phase = PhaseHandoff
		state.Questions = nil
		decision.WorkflowType = intent.WorkflowHandoff
		decision.Reasoning = "max turns reached"
	}
}

func (e *Engine) response(state *State) *Response {
	return &Response{
		ConversationID: state.ConversationID,
		Phase:          state.Phase,
		Decision:       state.Decision,
		Questions:      state.Questions,
		ShouldContinue: !state.Phase.terminal(),
		TurnCount:      state.TurnCount,
	}
}

func (e *Engine) conversationLock(conversationID string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	lock, ok := e.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[conversationID] = lock
	}
	return lock
}

func (e *Engine) auditTurn(state *State, text string) {
	if e.auditor == nil {
		return
	}
	e.auditor.Record(audit.Entry{
		CorrelationID: state.ConversationID,
		EventType:     audit.EventDialogTurn,
		UserInput:     text,
		Decision:      state.Decision,
		Metadata: map[string]string{
			"phase": string(state.Phase),
			"turn":  fmt.Sprintf("%d", state.TurnCount),
		},
	})
}
