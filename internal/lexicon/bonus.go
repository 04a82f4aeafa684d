package lexicon

import (
	"math"
	"strings"
)

// Bonus is the lexicon contribution to one segment's score.
type Bonus struct {
	Value       float64
	Hits        int
	TotalWeight float64
}

// ComputeBonus rewards a segment whose normalized content contains an
// admin term of a matched entry (max(1.5, 5*weight) per entry hit). When
// entries with admin terms matched but none hit, the segment is penalized
// once by max(1, 3*totalWeight).
func ComputeBonus(normalizedContent string, matches []Entry) Bonus {
	var b Bonus
	if len(matches) == 0 || normalizedContent == "" {
		return b
	}
	for _, entry := range matches {
		if len(entry.NormalizedAdmin) == 0 {
			continue
		}
		b.TotalWeight += entry.Weight
		for _, term := range entry.NormalizedAdmin {
			if strings.Contains(normalizedContent, term) {
				b.Hits++
				b.Value += math.Max(1.5, entry.Weight*5)
				break
			}
		}
	}
	if b.Hits == 0 && b.TotalWeight > 0 {
		b.Value -= math.Max(1.0, b.TotalWeight*3)
	}
	return b
}
