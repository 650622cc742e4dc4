package errors

import (
	"fmt"
	"strings"
)

// SuggestKeyword suggests the closest keyword for a misspelt identifier,
// or "" when nothing is close enough.
func SuggestKeyword(unknown string, keywords []string) string {
	best, dist := closest(strings.ToLower(unknown), keywords)
	if best == "" || dist > 2 || dist >= len(unknown) {
		return ""
	}
	return fmt.Sprintf("Did you mean '%s'?", best)
}

// SuggestEnforcement suggests a valid enforcement action.
func SuggestEnforcement(unknown string, valid []string) string {
	best, dist := closest(strings.ToUpper(unknown), valid)
	if best != "" && dist < 4 {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	return fmt.Sprintf("Valid actions: %s", strings.Join(valid, ", "))
}

// SuggestMissingField suggests adding a required field.
func SuggestMissingField(fieldName string, exampleValue string) string {
	if exampleValue != "" {
		return fmt.Sprintf("Add '%s: %s' to the policy", fieldName, exampleValue)
	}
	return fmt.Sprintf("Add '%s' field to the policy", fieldName)
}

func closest(unknown string, candidates []string) (string, int) {
	minDistance := -1
	var bestMatch string
	for _, c := range candidates {
		d := levenshteinDistance(unknown, c)
		if minDistance < 0 || d < minDistance {
			minDistance = d
			bestMatch = c
		}
	}
	return bestMatch, minDistance
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
