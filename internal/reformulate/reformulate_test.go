package reformulate

import "testing"

func TestIntent(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"opening hours", "À quelle heure ouvre le centre de loisir ?", "les horaires d'ouverture du centre de loisirs"},
		{"opening hours plural", "à quelle heure ouvrent les crèches", "les horaires d'ouverture des crèches"},
		{"opening hours feminine", "à quelle heure ouvre la piscine", "les horaires d'ouverture de la piscine"},
		{"opening hours bare subject", "à quelle heure ouvre Amiens Métropole", "les horaires d'ouverture du amiens métropole"},
		{"question word", "Quel est le tarif de la cantine ?", "le tarif de la cantine"},
		{"price", "Combien coûte la cantine ?", "la cantine"},
		{"polite prefix", "Je cherche une nourrice", "une nourrice"},
		{"typo", "horraires du centere", "horaires du centre"},
		{"proper case", "Horaires de la ferme de grace", "horaires de la Ferme de Grâce"},
		{"city", "les écoles d'amiens", "les écoles d'Amiens"},
		{"only question marks", "???", Fallback},
		{"empty", "   ", Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intent(tt.in); got != tt.want {
				t.Errorf("Intent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFollowUp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Souhaitez-vous que je vous indique les tarifs du périscolaire ?", "Les tarifs du périscolaire ?"},
		{"<p>Voulez-vous connaître les dates d'inscription.</p>", "Connaître les dates d'inscription."},
		{"Je voudrais savoir votre quotient familial", "Voudrais savoir votre quotient familial?"},
		{"Pouvez-vous me préciser l'âge de l'enfant", "Préciser l'âge de l'enfant?"},
		{"", ""},
		{"<br>", ""},
	}
	for _, tt := range tests {
		if got := FollowUp(tt.in); got != tt.want {
			t.Errorf("FollowUp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyFoldsInOrder(t *testing.T) {
	rules := []Rule{rule(`a`, "b"), rule(`b`, "c")}
	if got := Apply("aab", rules); got != "ccc" {
		t.Errorf("Apply = %q, want ccc", got)
	}
	if got := Apply("", rules); got != "" {
		t.Errorf("Apply on empty = %q", got)
	}
}
