// Package intent classifies what a parent wants to do with an answer, from
// "call or pay now" (action) down to "plan for later" (anticipation). The
// weight is added to every segment score and forwarded to the backend.
package intent

import (
	"strings"

	"github.com/FJDaz/I-Am/internal/textnorm"
)

// Label names an intent class.
type Label string

const (
	Action        Label = "action"
	Planification Label = "planification"
	Comprehension Label = "comprehension"
	Organisation  Label = "organisation"
	Anticipation  Label = "anticipation"
	Unknown       Label = "inconnue"
)

// Intent is a label with its weight.
type Intent struct {
	Label  Label   `json:"label"`
	Weight float64 `json:"weight"`
}

var weights = map[Label]float64{
	Action:        1.0,
	Planification: 0.8,
	Comprehension: 0.5,
	Organisation:  0.3,
	Anticipation:  0.1,
	Unknown:       0.0,
}

type class struct {
	label    Label
	keywords []string
}

// classes is checked in order; keywords are normalized at init so they
// compare against normalized questions.
var classes = []class{
	{Action, []string{
		"payer", "ouvrir", "fermer", "ou", "quand", "contact", "telephone", "tel",
		"téléphone", "appeler", "adresse", "horaire", "heures", "mail", "email",
		"combien", "coute", "cout", "coûte", "coût",
	}},
	{Planification, []string{
		"inscription", "inscrire", "periode", "période", "calendrier", "date limite",
		"deadline", "reserver", "réserver", "pre-inscription", "pré-inscription",
		"preinscription", "préinscription", "planning",
	}},
	{Comprehension, []string{
		"explication", "expliquer", "comment", "procedure", "procédure", "fonctionne",
		"fonctionnement", "dossier", "conditions", "documents",
	}},
	{Organisation, []string{
		"plusieurs", "cumul", "coordination", "repartition", "répartition",
		"combien de temps", "temps de garde", "planning multiple", "alternance",
	}},
	{Anticipation, []string{
		"si jamais", "au cas ou", "au cas où", "futur", "prevoir", "prévoir",
		"anticiper", "risque", "eventuel", "éventuel", "prevision", "prévision",
		"projection",
	}},
}

func init() {
	for i := range classes {
		seen := make(map[string]struct{})
		normalized := classes[i].keywords[:0]
		for _, kw := range classes[i].keywords {
			n := textnorm.Normalize(kw)
			if _, dup := seen[n]; dup || n == "" {
				continue
			}
			seen[n] = struct{}{}
			normalized = append(normalized, n)
		}
		classes[i].keywords = normalized
	}
}

// WeightOf returns the weight of label, 0 for unknown labels.
func WeightOf(label Label) float64 {
	return weights[label]
}

// Detect returns the highest-weighted class with a keyword occurring as a
// substring of the normalized question, or Unknown.
func Detect(question string) Intent {
	text := textnorm.Normalize(question)
	best := Intent{Label: Unknown}
	if text == "" {
		return best
	}
	for _, c := range classes {
		w := weights[c.label]
		if w <= best.Weight {
			continue
		}
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				best = Intent{Label: c.label, Weight: w}
				break
			}
		}
	}
	return best
}
