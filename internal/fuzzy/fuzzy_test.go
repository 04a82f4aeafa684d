package fuzzy

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"tarif", "tarif", 0},
		{"tarrif", "tarif", 1},
		{"kitten", "sitting", 3},
		{"école", "ecole", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenMatches(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"empty", "", "tarif", false},
		{"equal", "cantine", "cantine", true},
		{"prefix", "tarif", "tarifs", true},
		{"contains", "scolaire", "periscolaire", true},
		{"typo long", "tarrif", "tarif", true},
		{"two edits long", "inscripton", "inscriptoin", true},
		{"shared stem", "tarification", "tarificateur", true},
		{"short one edit", "bus", "bue", true},
		{"short two edits", "bus", "bar", false},
		{"short contained", "abc", "abcde", true},
		{"short unrelated", "ami", "eau", false},
		{"long unrelated", "cantine", "horaires", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenMatches(tt.a, tt.b); got != tt.want {
				t.Errorf("TokenMatches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenMatchesSymmetric(t *testing.T) {
	words := []string{"tarif", "tarrif", "tarifs", "cantine", "cantines", "repas", "ecole", "ecoles",
		"inscription", "inscrire", "horaire", "horaires", "bus", "bue", "centre", "centrre", "mercredi"}
	for _, a := range words {
		for _, b := range words {
			if TokenMatches(a, b) != TokenMatches(b, a) {
				t.Errorf("TokenMatches(%q, %q) is not symmetric", a, b)
			}
		}
	}
}

func TestMatchesAny(t *testing.T) {
	if !MatchesAny("tarrif", []string{"repas", "tarif"}) {
		t.Error("expected a match")
	}
	if MatchesAny("tarif", nil) {
		t.Error("no candidates must not match")
	}
}

func BenchmarkTokenMatches(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		TokenMatches("inscription", "inscriptoin")
	}
}
