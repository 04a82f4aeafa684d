package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"short words dropped", "Le prix de la cantine", []string{"prix", "cantine"}},
		{"accents", "Combien coûte l'école ?", []string{"combien", "coute", "ecole"}},
		{"digits kept", "Tarifs 2024 : 3,50 €", []string{"tarifs", "2024"}},
		{"duplicates kept", "repas repas", []string{"repas", "repas"}},
		{"underscore is a word char", "terme_usager", []string{"terme_usager"}},
		{"non latin letters split", "cœur", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokensLongerThanTwo(t *testing.T) {
	text := "À quelle heure ouvre le centre de loisirs de la Ferme de Grâce, et y a-t-il un accueil le mercredi ?"
	for _, token := range Tokenize(text) {
		if len([]rune(token)) <= 2 {
			t.Errorf("token %q is too short", token)
		}
		if token != strings.ToLower(token) {
			t.Errorf("token %q is not lower-case", token)
		}
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"tarif", "cantine", "tarif", "repas", "cantine"})
	want := []string{"tarif", "cantine", "repas"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unique = %v, want %v", got, want)
	}
}

var benchText = strings.Repeat(`La restauration scolaire est ouverte aux enfants scolarisés dans les
	écoles maternelles et élémentaires publiques d'Amiens. Les tarifs sont calculés selon
	le quotient familial : de 0,50 € à 5,20 € par repas. `, 20)

func BenchmarkTokenize(b *testing.B) {
	b.ReportAllocs()
	b.SetBytes(int64(len(benchText)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(benchText)
	}
}
