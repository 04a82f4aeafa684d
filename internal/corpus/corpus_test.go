package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

func intPtr(v int) *int { return &v }

func TestSourceKey(t *testing.T) {
	tests := map[string]string{
		"Pages/Cantine.html#tarifs":     "pages-cantine",
		"pages/cantine__2.html":         "pages-cantine",
		`Pages\Cantine.html?x=1`:        "pages-cantine",
		"  Restauration scolaire  ":     "restauration-scolaire",
		"":                              "",
		"export/centre-de-loisirs.json": "export-centre-de-loisirs",
	}
	for in, want := range tests {
		if got := SourceKey(in); got != want {
			t.Errorf("SourceKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveAndAnchorURL(t *testing.T) {
	c := New([]Segment{
		{Label: "Cantine", Source: "pages/cantine.html", URL: "https://www.amiens.fr/cantine", Content: "a"},
		{Label: "Cantine (suite)", Source: "pages/cantine__2.html", Content: "b", Section: intPtr(2)},
		{Label: "Accueil", Source: "pages/accueil.html", Content: "c", Anchor: "horaires"},
		{Label: "Orpheline", Source: "pages/orpheline.html", Content: "d"},
	})

	if got := c.ResolveURL(c.Segment(1)); got != "https://www.amiens.fr/cantine" {
		t.Errorf("ResolveURL inherited = %q", got)
	}
	if got := c.AnchoredURL(c.Segment(1)); got != "https://www.amiens.fr/cantine#voir-plus-section-2" {
		t.Errorf("AnchoredURL section = %q", got)
	}
	if got := c.AnchoredURL(c.Segment(0)); got != "https://www.amiens.fr/cantine#voir-plus" {
		t.Errorf("AnchoredURL default = %q", got)
	}
	if got := c.AnchoredURL(c.Segment(3)); got != "" {
		t.Errorf("unresolvable segment should have no URL, got %q", got)
	}

	withHash := New([]Segment{{Source: "p", URL: "https://x/#top", Anchor: "tarifs"}})
	if got := withHash.AnchoredURL(withHash.Segment(0)); got != "https://x/#toptarifs" {
		t.Errorf("AnchoredURL with existing hash = %q", got)
	}
}

func TestNormalizedContentIncludesMetadata(t *testing.T) {
	c := New([]Segment{{Label: "Tarifs Cantine", Source: "restauration.html", Content: "Repas à 3 €"}})
	if got := c.NormalizedContent(0); got != "repas a e tarifs cantine restauration html" {
		t.Errorf("NormalizedContent = %q", got)
	}
	if got := c.Tokens(0); len(got) != 1 || got[0] != "repas" {
		t.Errorf("Tokens = %v", got)
	}
}

func TestDerivedFormsAreConcurrencySafe(t *testing.T) {
	c := New([]Segment{{Content: "Inscription à la cantine scolaire"}})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.NormalizedContent(0) == "" || len(c.Tokens(0)) == 0 {
				t.Error("derived forms missing")
			}
		}()
	}
	wg.Wait()
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	data := `[{"label":"Cantine","source":"c.html","content":"Tarifs","score":0.4,"section":1},
	          {"label":"","source":"d.html","content":"Horaires"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(context.Background(), FileSource{Path: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 segments, got %d", c.Len())
	}
	if s := c.Segment(0); s.SemanticScore() != 0.4 || s.Section == nil || *s.Section != 1 {
		t.Errorf("optional fields not decoded: %+v", s)
	}
	if c.Segment(1).Title() != "d.html" {
		t.Errorf("Title should fall back to source")
	}
}

func TestLoadErrorIsCorpusLoad(t *testing.T) {
	_, err := Load(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.json")})
	if !errors.Is(err, apperrors.ErrCorpusLoad) {
		t.Fatalf("expected ErrCorpusLoad, got %v", err)
	}
}
