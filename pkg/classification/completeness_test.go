package classification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
)

func testFieldDefs() map[string]config.CategoryFields {
	return map[string]config.CategoryFields{
		"incident": {
			RequiredFields: []config.FieldDefinition{
				{
					Name:     "affected_system",
					Keywords: []string{"etl", "database", "資料庫"},
					Question: "Which system is affected?",
				},
				{
					Name:     "error_description",
					Keywords: []string{"fail", "error", "失敗"},
					Question: "What error are you seeing?",
				},
			},
			OptionalFields: []config.FieldDefinition{
				{
					Name:     "occurred_at",
					Patterns: []string{`(\d{1,2}:\d{2})`},
				},
			},
		},
		"query": {},
	}
}

func TestCheckAllFieldsPresent(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())

	info, extracted := c.Check(intent.CategoryIncident, "the etl job hit an error at 03:15", nil)
	assert.True(t, info.IsComplete)
	assert.Equal(t, 1.0, info.CompletenessScore)
	assert.Empty(t, info.MissingFields)
	assert.Equal(t, "etl", extracted["affected_system"])
	assert.Equal(t, "error", extracted["error_description"])
	assert.Equal(t, "03:15", extracted["occurred_at"])
}

func TestCheckMissingField(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())

	info, _ := c.Check(intent.CategoryIncident, "the etl job is acting strange", nil)
	assert.False(t, info.IsComplete)
	assert.Equal(t, 0.5, info.CompletenessScore)
	assert.Equal(t, []string{"error_description"}, info.MissingFields)
	require.Len(t, info.Suggestions, 1)
	assert.Contains(t, info.Suggestions[0], "error_description")
}

func TestCheckCollectedValuesTakePrecedence(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())

	collected := map[string]string{"error_description": "timeout after 30s"}
	info, extracted := c.Check(intent.CategoryIncident, "it is the etl pipeline", collected)
	assert.True(t, info.IsComplete)
	assert.Equal(t, "timeout after 30s", extracted["error_description"])
}

func TestCheckNoRequiredFieldsTriviallyComplete(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())

	for _, category := range []intent.Category{intent.CategoryQuery, intent.CategoryRequest} {
		info, _ := c.Check(category, "anything at all", nil)
		assert.True(t, info.IsComplete, "category %s", category)
		assert.Equal(t, 1.0, info.CompletenessScore)
	}
}

func TestCheckDeterministic(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())
	input := "資料庫出現失敗"

	first, firstExtracted := c.Check(intent.CategoryIncident, input, nil)
	for i := 0; i < 10; i++ {
		info, extracted := c.Check(intent.CategoryIncident, input, nil)
		assert.Equal(t, first, info)
		assert.Equal(t, firstExtracted, extracted)
	}
}

func TestCheckThresholdBelowOne(t *testing.T) {
	threshold := 0.5
	defs := testFieldDefs()
	incident := defs["incident"]
	incident.CompletenessThreshold = &threshold
	defs["incident"] = incident

	c := NewCompletenessChecker(defs)
	info, _ := c.Check(intent.CategoryIncident, "the etl job is acting strange", nil)
	// One of two required fields present meets the 0.5 threshold.
	assert.True(t, info.IsComplete)
	assert.Equal(t, 0.5, info.CompletenessScore)
}

func TestQuestionLookup(t *testing.T) {
	c := NewCompletenessChecker(testFieldDefs())
	assert.Equal(t, "Which system is affected?", c.Question(intent.CategoryIncident, "affected_system"))
	assert.Empty(t, c.Question(intent.CategoryIncident, "nonexistent"))
	assert.Empty(t, c.Question(intent.CategoryChange, "affected_system"))
}
