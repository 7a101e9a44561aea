package search

// longestCommonSubstring finds the longest contiguous run common to a and b
// and returns its start offsets and length, via an O(len(a)*len(b)) DP table
// kept to two rows.
func longestCommonSubstring(a, b []rune) (ai, bi, length int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > length {
					length = curr[j]
					ai = i - length
					bi = j - length
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, length
}

// matchingLength returns the total length of matching blocks found by
// recursively taking the longest common substring and splitting left/right
// of it — the block-matching step behind Ratcliff/Obershelp similarity.
func matchingLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, l := longestCommonSubstring(a, b)
	if l == 0 {
		return 0
	}
	return l + matchingLength(a[:ai], b[:bi]) + matchingLength(a[ai+l:], b[bi+l:])
}

// gestaltRatio is the Ratcliff/Obershelp ("Gestalt pattern matching")
// similarity used by Python's difflib.SequenceMatcher.ratio(): 2*M /
// (len(a)+len(b)), where M is the total length of matching blocks.
func gestaltRatio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 && len(br) == 0 {
		return 1.0
	}
	m := matchingLength(ar, br)
	return 2 * float64(m) / float64(len(ar)+len(br))
}
