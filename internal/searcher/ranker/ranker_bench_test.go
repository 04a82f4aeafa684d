package ranker

import (
	"context"
	"fmt"
	"testing"

	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/lexicon"
)

var benchQuestions = map[string]string{
	"tariff":   "Quel est le tarif de la cantine ?",
	"long":     "Combien coûte la cantine pour les enfants le mercredi ?",
	"lexicon":  "Je cherche une nourrice pour mon fils",
	"misspelt": "inscripton au centre de loisir le mercredy",
	"no-match": "xylophone",
}

func benchRanker(b *testing.B, copies int) *Ranker {
	b.Helper()
	segments := make([]corpus.Segment, 0, copies*len(municipal))
	for i := 0; i < copies; i++ {
		for _, seg := range municipal {
			seg.Source = fmt.Sprintf("%d-%s", i, seg.Source)
			segments = append(segments, seg)
		}
	}
	lex := lexicon.NewIndex()
	entries := []lexicon.Entry{
		{UserTerm: "nourrice", AdminTerms: []string{"assistante maternelle"}, Weight: 0.8},
		{UserTerm: "cantine", AdminTerms: []string{"restauration scolaire"}, Weight: 0.5},
	}
	if err := lex.Load(context.Background(), lexicon.StaticSource(entries)); err != nil {
		b.Fatalf("loading lexicon: %v", err)
	}
	r := New(corpus.New(segments), lex, Options{})
	// Derived segment forms are computed on first use; warm them up.
	r.Rank("cantine")
	return r
}

func BenchmarkRank(b *testing.B) {
	r := benchRanker(b, 100)
	for name, q := range benchQuestions {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(q)
			}
		})
	}
}

func BenchmarkRankParallel(b *testing.B) {
	r := benchRanker(b, 100)
	q := benchQuestions["tariff"]
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = r.Rank(q)
		}
	})
}

func BenchmarkRankCorpusSize(b *testing.B) {
	for _, copies := range []int{10, 100, 1000} {
		r := benchRanker(b, copies)
		b.Run(fmt.Sprintf("segments=%d", copies*len(municipal)), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = r.Rank(benchQuestions["tariff"])
			}
		})
	}
}
