package agent

import "strings"

// similarityFloor is the minimum normalized similarity for a fuzzy
// tool-name match. Below it, resolution fails outright rather than
// guessing.
const similarityFloor = 0.6

// resolveTool maps a requested tool name onto the live registry. An
// exact match wins immediately; otherwise the closest name at or above
// the similarity floor is chosen. Ties keep the earliest registry
// entry. The comparison is case-insensitive but the returned name is
// the registry's canonical spelling.
func resolveTool(requested string, available []string) (string, bool) {
	if requested == "" || len(available) == 0 {
		return "", false
	}
	for _, name := range available {
		if name == requested {
			return name, true
		}
	}

	best := ""
	bestScore := 0.0
	reqLower := strings.ToLower(requested)
	for _, name := range available {
		score := similarity(reqLower, strings.ToLower(name))
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	if bestScore >= similarityFloor {
		return best, true
	}
	return "", false
}

// similarity normalizes Levenshtein distance into [0, 1], where 1 means
// identical.
func similarity(s1, s2 string) float64 {
	longest := len(s1)
	if len(s2) > longest {
		longest = len(s2)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(s1, s2))/float64(longest)
}

// levenshtein calculates the edit distance between two strings.
func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}
