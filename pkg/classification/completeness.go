package classification

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/intent"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
)

const defaultSuggestionTemplate = "Please provide the %s"

// preppedField stores a field definition with lowercased keywords and
// pre-compiled extraction patterns.
type preppedField struct {
	def      config.FieldDefinition
	keywords []string
	compiled []*regexp.Regexp
}

type preppedCategoryFields struct {
	required           []preppedField
	optional           []preppedField
	threshold          float64
	suggestionTemplate string
}

// CompletenessChecker scores how complete the supplied information is for a
// given intent category. Extraction is stateless and deterministic: the same
// input and collected-info always produce the same result.
type CompletenessChecker struct {
	categories map[intent.Category]preppedCategoryFields
}

// NewCompletenessChecker compiles the per-category field definitions.
// Malformed extraction patterns are skipped with a warning; the field then
// relies on keywords and collected-info alone.
func NewCompletenessChecker(defs map[string]config.CategoryFields) *CompletenessChecker {
	c := &CompletenessChecker{categories: make(map[intent.Category]preppedCategoryFields)}

	for rawCategory, fields := range defs {
		category := intent.ParseCategory(rawCategory)
		prepped := preppedCategoryFields{
			threshold:          fields.Threshold(),
			suggestionTemplate: fields.SuggestionTemplate,
		}
		if prepped.suggestionTemplate == "" {
			prepped.suggestionTemplate = defaultSuggestionTemplate
		}
		prepped.required = prepFields(rawCategory, fields.RequiredFields)
		prepped.optional = prepFields(rawCategory, fields.OptionalFields)
		c.categories[category] = prepped
	}

	return c
}

func prepFields(category string, defs []config.FieldDefinition) []preppedField {
	prepped := make([]preppedField, 0, len(defs))
	for _, def := range defs {
		p := preppedField{def: def}
		for _, kw := range def.Keywords {
			p.keywords = append(p.keywords, strings.ToLower(kw))
		}
		for _, pattern := range def.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				logging.Warnf("Skipping malformed extraction pattern %q for field %s/%s: %v",
					pattern, category, def.Name, err)
				continue
			}
			p.compiled = append(p.compiled, re)
		}
		prepped = append(prepped, p)
	}
	return prepped
}

// Check evaluates completeness of the text plus collected-info for the
// category. It returns the completeness report and the merged field values
// (collected entries take precedence over freshly extracted ones).
// Categories with no required fields are trivially complete with score 1.0.
func (c *CompletenessChecker) Check(category intent.Category, text string, collected map[string]string) (intent.CompletenessInfo, map[string]string) {
	extracted := make(map[string]string)

	prepped, ok := c.categories[category]
	if !ok || len(prepped.required) == 0 {
		info := intent.CompletenessInfo{
			IsComplete:        true,
			CompletenessScore: 1.0,
			MissingFields:     []string{},
		}
		if ok {
			c.extractInto(prepped.optional, text, collected, extracted, &info.MissingOptionalFields)
		}
		return info, extracted
	}

	info := intent.CompletenessInfo{MissingFields: []string{}}
	lowerText := strings.ToLower(text)

	present := 0
	for _, field := range prepped.required {
		value, found := c.extractField(field, text, lowerText, collected)
		if found {
			extracted[field.def.Name] = value
			present++
			continue
		}
		info.MissingFields = append(info.MissingFields, field.def.Name)
		info.Suggestions = append(info.Suggestions, fmt.Sprintf(prepped.suggestionTemplate, field.def.Name))
	}

	c.extractInto(prepped.optional, text, collected, extracted, &info.MissingOptionalFields)

	info.CompletenessScore = float64(present) / float64(len(prepped.required))
	info.IsComplete = info.CompletenessScore >= prepped.threshold
	return info, extracted
}

// extractInto extracts optional fields into the merged value map; optional
// fields never affect the score but feed downstream question generation.
func (c *CompletenessChecker) extractInto(fields []preppedField, text string, collected, extracted map[string]string, missing *[]string) {
	lowerText := strings.ToLower(text)
	for _, field := range fields {
		if value, found := c.extractField(field, text, lowerText, collected); found {
			extracted[field.def.Name] = value
		} else {
			*missing = append(*missing, field.def.Name)
		}
	}
}

// extractField checks field presence via the fixed precedence: explicitly
// collected value, then keyword containment, then extraction pattern.
func (c *CompletenessChecker) extractField(field preppedField, text, lowerText string, collected map[string]string) (string, bool) {
	if collected != nil {
		if value, ok := collected[field.def.Name]; ok && value != "" {
			return value, true
		}
	}

	for _, kw := range field.keywords {
		if strings.Contains(lowerText, kw) {
			return kw, true
		}
	}

	for _, re := range field.compiled {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		// Prefer the first non-empty capture group; fall back to the
		// whole match.
		for _, group := range match[1:] {
			if group != "" {
				return group, true
			}
		}
		return match[0], true
	}

	return "", false
}

// Question returns the configured follow-up question for a missing field of
// the category, or an empty string when none is defined.
func (c *CompletenessChecker) Question(category intent.Category, fieldName string) string {
	prepped, ok := c.categories[category]
	if !ok {
		return ""
	}
	for _, field := range prepped.required {
		if field.def.Name == fieldName {
			return field.def.Question
		}
	}
	for _, field := range prepped.optional {
		if field.def.Name == fieldName {
			return field.def.Question
		}
	}
	return ""
}
