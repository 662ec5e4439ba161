package scoring

// WordOverlap is the Jaccard index of the token sets of two normalized texts.
func WordOverlap(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// KeywordOverlap is the share of the reference's keywords (tokens of at least
// minLen bytes) that also appear in the candidate. It is not symmetric.
func KeywordOverlap(reference, candidate string, minLen int) float64 {
	ref := keywords(reference, minLen)
	if len(ref) == 0 {
		return 0
	}
	cand := keywords(candidate, minLen)
	matched := 0
	for w := range ref {
		if _, ok := cand[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(ref))
}

func keywords(s string, minLen int) map[string]struct{} {
	set := tokenSet(s)
	for w := range set {
		if len(w) < minLen {
			delete(set, w)
		}
	}
	return set
}
