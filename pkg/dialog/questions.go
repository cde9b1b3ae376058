package dialog

import (
	"fmt"

	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

// maxQuestionsPerTurn bounds how many follow-ups a single turn asks; more
// than this overwhelms the user and stalls the dialog.
const maxQuestionsPerTurn = 3

// QuestionGenerator turns missing required fields into follow-up questions,
// preferring the per-field question configured in the field definitions.
type QuestionGenerator struct {
	checker *classification.CompletenessChecker
}

// NewQuestionGenerator creates a generator backed by the field definitions
// held by the completeness checker.
func NewQuestionGenerator(checker *classification.CompletenessChecker) *QuestionGenerator {
	return &QuestionGenerator{checker: checker}
}

// Generate produces at most maxQuestionsPerTurn questions for the missing
// fields, in the order the fields are defined.
func (g *QuestionGenerator) Generate(category intent.Category, missingFields []string) []string {
	questions := make([]string, 0, maxQuestionsPerTurn)
	for _, field := range missingFields {
		if len(questions) >= maxQuestionsPerTurn {
			break
		}
		question := ""
		if g.checker != nil {
			question = g.checker.Question(category, field)
		}
		if question == "" {
			question = fmt.Sprintf("Could you provide the %s?", field)
		}
		questions = append(questions, question)
	}
	return questions
}

// ClarificationQuestion is asked when the initial classification could not
// determine an intent at all.
func (g *QuestionGenerator) ClarificationQuestion() string {
	return "I couldn't determine what you need. Could you describe the problem or request in more detail?"
}
