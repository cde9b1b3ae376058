package dialog

import (
	"strings"
	"time"
)

// ContextManager accumulates conversation context across turns: the
// transcript and the collected field values. It is stateless itself and
// operates on the per-conversation State under the engine's lock.
type ContextManager struct{}

// MergeTurn appends the turn text to the transcript.
func (ContextManager) MergeTurn(state *State, text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		state.Transcript = append(state.Transcript, text)
	}
	state.UpdatedAt = time.Now().UTC()
}

// MergedText joins the whole transcript so field extraction always sees
// everything said so far, not just the latest turn.
func (ContextManager) MergedText(state *State) string {
	return strings.Join(state.Transcript, " ")
}

// MergeFields folds freshly extracted field values into the collected map.
// Later values overwrite earlier ones: a user correcting themselves in a
// later turn must win.
func (ContextManager) MergeFields(state *State, extracted map[string]string) {
	for field, value := range extracted {
		if value != "" {
			state.Collected[field] = value
		}
	}
}
