package merger

import (
	"math/rand"
	"sort"
	"testing"
)

func TestTopKOrdersAndBounds(t *testing.T) {
	got := TopK([]Candidate{
		{Index: 0, Score: 1},
		{Index: 1, Score: 5},
		{Index: 2, Score: 3},
		{Index: 3, Score: 5},
		{Index: 4, Score: 4},
	}, 3)
	want := []int{1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, idx := range want {
		if got[i].Index != idx {
			t.Errorf("position %d: got index %d, want %d", i, got[i].Index, idx)
		}
	}
}

func TestTopKMatchesStableSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		candidates := make([]Candidate, 40)
		for i := range candidates {
			candidates[i] = Candidate{Index: i, Score: float64(rng.Intn(6))}
		}
		sorted := append([]Candidate(nil), candidates...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

		got := TopK(candidates, 3)
		for i := range got {
			if got[i] != sorted[i] {
				t.Fatalf("round %d position %d: got %+v, want %+v", round, i, got[i], sorted[i])
			}
		}
	}
}

func TestTopKEmpty(t *testing.T) {
	if TopK(nil, 3) != nil || TopK([]Candidate{{Index: 0, Score: 1}}, 0) != nil {
		t.Error("expected nil")
	}
}
