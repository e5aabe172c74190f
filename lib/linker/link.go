// Package linker matches student identifiers across platforms. Exports from
// different systems rarely agree on usernames exactly, so unmatched entries
// fall back to string similarity.
package linker

import (
	"github.com/antzucaro/matchr"
)

// Link pairs an identifier from the left list with one from the right.
// Correlation is 1 for exact matches, otherwise the Jaro-Winkler similarity
// of the pair.
type Link struct {
	Left        string
	Right       string
	Correlation float64
}

// CreateImplicitLinks greedily pairs the two identifier lists: exact
// matches first, then each remaining left entry with its most similar
// unmatched right entry. Entries with no similarity at all stay unlinked.
func CreateImplicitLinks(leftList, rightList []string) []Link {
	swapped := false
	if len(rightList) < len(leftList) {
		leftList, rightList = rightList, leftList
		swapped = true
	}

	var result []Link
	matchedLeft := make(map[string]struct{})
	matchedRight := make(map[string]struct{})

	emit := func(left, right string, correlation float64) {
		if swapped {
			left, right = right, left
		}
		result = append(result, Link{Left: left, Right: right, Correlation: correlation})
	}

	for _, left := range leftList {
		for _, right := range rightList {
			if _, taken := matchedRight[right]; taken {
				continue
			}
			if left == right {
				emit(left, right, 1)
				matchedLeft[left] = struct{}{}
				matchedRight[right] = struct{}{}
				break
			}
		}
	}

	for _, left := range leftList {
		if _, taken := matchedLeft[left]; taken {
			continue
		}

		var bestSimilarity float64
		var bestRight string
		for _, right := range rightList {
			if _, taken := matchedRight[right]; taken {
				continue
			}
			similarity := matchr.JaroWinkler(left, right, false)
			if similarity > bestSimilarity {
				bestSimilarity = similarity
				bestRight = right
			}
		}

		if bestSimilarity > 0 {
			emit(left, bestRight, bestSimilarity)
			matchedLeft[left] = struct{}{}
			matchedRight[bestRight] = struct{}{}
		}
	}

	return result
}
