// Package dialog drives guided multi-turn exchanges that fill missing
// information after an initial classification. The classifier cascade is
// invoked exactly once per conversation; every later turn refines the
// decision through rules only.
package dialog

import (
	"time"

	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

// Phase is the dialog state-machine phase.
type Phase string

const (
	PhaseInitial       Phase = "initial"
	PhaseGathering     Phase = "gathering"
	PhaseComplete      Phase = "complete"
	PhaseHandoff       Phase = "handoff"
	PhaseClarification Phase = "clarification"
)

// terminal reports whether the phase ends the conversation.
func (p Phase) terminal() bool {
	return p == PhaseComplete || p == PhaseHandoff
}

// State is the per-conversation dialog state. Created on the first turn,
// mutated each turn under the conversation lock, discarded on completion,
// handoff, or TTL expiry.
type State struct {
	ConversationID string                  `json:"conversation_id"`
	Phase          Phase                   `json:"phase"`
	Decision       *intent.RoutingDecision `json:"decision"`
	Collected      map[string]string       `json:"collected"`
	Transcript     []string                `json:"transcript"`
	Questions      []string                `json:"questions"`
	Completed      bool                    `json:"completed"`
	TurnCount      int                     `json:"turn_count"`
	StartedAt      time.Time               `json:"started_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// newState allocates fresh per-conversation state. Collections are never
// shared between conversations.
func newState(conversationID string) *State {
	now := time.Now().UTC()
	return &State{
		ConversationID: conversationID,
		Phase:          PhaseInitial,
		Collected:      make(map[string]string),
		Transcript:     []string{},
		Questions:      []string{},
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// clone returns a deep copy. The store hands out and keeps only clones so
// the engine owns its working state exclusively and readers never observe a
// conversation mid-mutation.
func (s *State) clone() *State {
	c := *s
	c.Decision = s.Decision.Clone()
	c.Collected = make(map[string]string, len(s.Collected))
	for k, v := range s.Collected {
		c.Collected[k] = v
	}
	c.Transcript = append([]string(nil), s.Transcript...)
	c.Questions = append([]string(nil), s.Questions...)
	return &c
}

// Response is the engine's answer to one dialog turn.
type Response struct {
	ConversationID string                  `json:"conversation_id"`
	Phase          Phase                   `json:"phase"`
	Decision       *intent.RoutingDecision `json:"decision"`
	Questions      []string                `json:"questions,omitempty"`
	ShouldContinue bool                    `json:"should_continue"`
	TurnCount      int                     `json:"turn_count"`
}
