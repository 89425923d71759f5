package migration

import (
	"regexp"
	"strings"
)

var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

var numericOnlyPattern = regexp.MustCompile(`^[0-9 ]+$`)

// InferGroupName derives a readable name for an account group from its
// member descriptions. It picks the longest phrase of at most four words
// that occurs in at least half the descriptions, rounding up. Short
// single-word matches and short numeric phrases are suppressed. Returns ""
// when no phrase qualifies.
func InferGroupName(descriptions []string) string {
	if len(descriptions) == 0 {
		return ""
	}
	threshold := (len(descriptions) + 1) / 2

	tokenized := make([][]string, 0, len(descriptions))
	for _, d := range descriptions {
		tokens := tokenizeDescription(d)
		if len(tokens) > 0 {
			tokenized = append(tokenized, tokens)
		}
	}

	best := ""
	bestWords := 0
	for n := 4; n >= 1; n-- {
		counts := map[string]int{}
		for _, tokens := range tokenized {
			seen := map[string]bool{}
			for i := 0; i+n <= len(tokens); i++ {
				phrase := strings.Join(tokens[i:i+n], " ")
				if !seen[phrase] {
					seen[phrase] = true
					counts[phrase]++
				}
			}
		}
		for phrase, count := range counts {
			if count < threshold {
				continue
			}
			if !phraseQualifies(phrase, n) {
				continue
			}
			// Longer phrases beat shorter ones; ties break toward the
			// lexically smaller phrase for stable output.
			if n > bestWords || (n == bestWords && (best == "" || phrase < best)) {
				best = phrase
				bestWords = n
			}
		}
		if best != "" {
			break
		}
	}
	return best
}

func tokenizeDescription(description string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(description), " ")
	return strings.Fields(cleaned)
}

func phraseQualifies(phrase string, words int) bool {
	if words == 1 && len([]rune(phrase)) < 3 {
		return false
	}
	if numericOnlyPattern.MatchString(phrase) && len(strings.ReplaceAll(phrase, " ", "")) < 3 {
		return false
	}
	return true
}
