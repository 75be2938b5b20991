// Package similarity finds the closest product name for a package name.
package similarity

// DefaultCutoff is the minimum ratio a candidate needs to be reported.
const DefaultCutoff = 0.6

// Ratio returns 2*M/T where T is the total number of runes in a and b and
// M the number of runes in matching blocks, found by recursively taking the
// longest common substring left and right of the previous one
// (Ratcliff/Obershelp). The result is in [0, 1]; two empty strings are 1.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+size:], b[j+size:])
}

// longestMatch returns the earliest longest common substring of a and b as
// (start in a, start in b, length).
func longestMatch(a, b []rune) (int, int, int) {
	var bestI, bestJ, bestSize int
	// lengths[j+1] is the length of the common suffix of a[:i+1] and b[:j+1]
	lengths := make([]int, len(b)+1)
	for i := range a {
		prev := 0
		for j := range b {
			cur := lengths[j+1]
			if a[i] == b[j] {
				lengths[j+1] = prev + 1
				if lengths[j+1] > bestSize {
					bestSize = lengths[j+1]
					bestI = i - bestSize + 1
					bestJ = j - bestSize + 1
				}
			} else {
				lengths[j+1] = 0
			}
			prev = cur
		}
	}
	return bestI, bestJ, bestSize
}

// BestMatch returns the candidate with the highest ratio against target,
// provided it reaches cutoff. Ties go to the earliest candidate.
func BestMatch(target string, candidates []string, cutoff float64) (string, float64, bool) {
	var (
		best      string
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		score := Ratio(target, c)
		if score < cutoff {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}
