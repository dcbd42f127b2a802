package similarity

// Levenshtein returns the edit-distance similarity of two strings in [0,1],
// computed over runes so that diacritics count as single characters.
func Levenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance(ra, rb))/float64(maxLen)
}

// LevenshteinDistance returns the edit distance between two strings.
func LevenshteinDistance(a, b string) int {
	return distance([]rune(a), []rune(b))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows of the dynamic programming matrix are enough.
	prevRow := make([]int, len(b)+1)
	row := make([]int, len(b)+1)
	for j := range prevRow {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}
