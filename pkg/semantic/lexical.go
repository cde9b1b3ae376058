package semantic

import (
	"strings"
	"unicode"
)

// LexicalSimilarity is the in-process fallback scorer: a blend of word-level
// Jaccard overlap and character-bigram Dice overlap, in [0,1]. Han
// characters tokenize individually so Chinese input scores without word
// segmentation.
func LexicalSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	jaccard := setOverlap(tokensA, tokensB)

	bigramsA := charBigrams(a)
	bigramsB := charBigrams(b)
	dice := diceCoefficient(bigramsA, bigramsB)

	return 0.5*jaccard + 0.5*dice
}

// tokenize splits into lowercase word tokens; each Han rune is its own token.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens[strings.ToLower(current.String())] = true
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens[string(r)] = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func setOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for token := range a {
		if b[token] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func charBigrams(text string) map[string]int {
	runes := []rune(strings.ToLower(strings.TrimSpace(text)))
	bigrams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		bigrams[string(runes[i:i+2])]++
	}
	return bigrams
}

func diceCoefficient(a, b map[string]int) float64 {
	totalA := 0
	for _, n := range a {
		totalA += n
	}
	totalB := 0
	for _, n := range b {
		totalB += n
	}
	if totalA == 0 || totalB == 0 {
		return 0
	}

	inter := 0
	for bigram, countA := range a {
		if countB, ok := b[bigram]; ok {
			inter += min(countA, countB)
		}
	}
	return 2 * float64(inter) / float64(totalA+totalB)
}
