package lineage

import "strings"

// TokenSimilarity scores how alike two transaction descriptions are, as the
// Jaccard overlap of their lowercased token sets. Symmetric, bounded in [0,1].
// Statement descriptions are short and token order varies between issuers
// ("AMAZON PAYMENT REFUND" vs "REFUND AMAZON PAYMENT"), so token overlap
// outperforms edit distance here.
func TokenSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	overlap := 0
	for tok := range tokensA {
		if tokensB[tok] {
			overlap++
		}
	}
	union := len(tokensA) + len(tokensB) - overlap
	return float64(overlap) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}
