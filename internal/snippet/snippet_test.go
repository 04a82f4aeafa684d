package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractShortContentIsCollapsed(t *testing.T) {
	got := Extract("  La cantine\n\n ouvre   à 11h30.  ", []string{"cantine"})
	if got != "La cantine ouvre à 11h30." {
		t.Errorf("Extract = %q", got)
	}
	if Extract("", []string{"cantine"}) != "" {
		t.Error("empty content must yield empty snippet")
	}
}

func TestExtractPicksBestSentence(t *testing.T) {
	filler := strings.Repeat("Le service enfance accompagne les familles amiénoises toute l'année. ", 6)
	content := filler + "Le tarif de la cantine dépend du quotient familial; " + filler
	got := Extract(content, []string{"tarif", "cantine"})
	if got != "Le tarif de la cantine dépend du quotient familial;" {
		t.Errorf("Extract = %q", got)
	}
}

func TestExtractFirstBestWins(t *testing.T) {
	a := "La cantine est ouverte. "
	b := "La cantine est fermée. "
	content := a + b + strings.Repeat("Texte sans rapport avec la question posée ici. ", 10)
	if got := Extract(content, []string{"cantine"}); got != strings.TrimSpace(a) {
		t.Errorf("Extract = %q, want first best sentence", got)
	}
}

func TestExtractTruncatesLongSentence(t *testing.T) {
	content := strings.Repeat("cantine scolaire ", 40)
	got := Extract(content, []string{"cantine"})
	if utf8.RuneCountInString(got) > DefaultMaxChars {
		t.Fatalf("snippet has %d characters", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated snippet should end with an ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "…"), " ") {
		t.Errorf("trailing space before ellipsis: %q", got)
	}
}

func TestExtractNoTokenSentencesFallsBackToFirst(t *testing.T) {
	content := strings.Repeat("a b c. ", 80)
	if got := Extract(content, []string{"cantine"}); got != "a b c." {
		t.Errorf("Extract = %q", got)
	}
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name     string
		question []string
		snippet  string
		content  string
		want     Tone
	}{
		{"no keywords", []string{"les", "des"}, "texte", "", ToneNeutral},
		{"empty passage", []string{"cantine"}, "", "", ToneNeutral},
		{"strong", []string{"tarif", "cantine"}, "Tarif de la cantine", "", ToneOK},
		{"partial", []string{"tarif", "cantine", "mercredi", "vacances"}, "Tarif des centres", "le mercredi", ToneInfo},
		{"weak", []string{"tarif", "cantine", "mercredi"}, "Horaires des centres", "", ToneWarn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.question, tt.snippet, tt.content)
			if got.Tone != tt.want {
				t.Errorf("Assess tone = %s, want %s (%q)", got.Tone, tt.want, got.Message)
			}
		})
	}
	got := Assess([]string{"tarif", "cantine"}, "Tarif de la cantine", "")
	if got.Message != "Analyse RAG : correspondance forte avec votre requête (tarif, cantine)." {
		t.Errorf("unexpected message %q", got.Message)
	}
}

func TestGranularityPrompt(t *testing.T) {
	tests := []struct {
		snippet string
		tokens  []string
		want    string
	}{
		{"Tarifs selon le quotient familial", nil, "Si oui, à quelle catégorie appartenez-vous ?"},
		{"Ouvert une semaine sur deux", nil, "Si oui, quelle période ou quelle semaine souhaitez-vous explorer ?"},
		{"", []string{"prix", "repas"}, "Si oui, souhaitez-vous que je détaille la formule (repas, demi-pension, fréquentation) ?"},
		{"Le centre de loisirs", nil, "Si oui, quelle structure ou quel site visez-vous ?"},
		{"Bonjour", nil, defaultGranularity},
	}
	for _, tt := range tests {
		if got := GranularityPrompt(tt.snippet, tt.tokens); got != tt.want {
			t.Errorf("GranularityPrompt(%q, %v) = %q, want %q", tt.snippet, tt.tokens, got, tt.want)
		}
	}
}
