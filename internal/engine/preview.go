package engine

import (
	"fmt"

	"github.com/FJDaz/I-Am/internal/reformulate"
	"github.com/FJDaz/I-Am/internal/searcher/ranker"
	"github.com/FJDaz/I-Am/internal/snippet"
	"github.com/FJDaz/I-Am/internal/tokenizer"
)

const noMatchHint = "Reformulez légèrement votre question ou consultez le portail famille pour plus de détails."

// buildPreview answers from the ranking alone. Keyword coverage is measured
// against the raw question, not the fused one, so that context pulled from
// earlier turns does not inflate it.
func buildPreview(question string, res *ranker.Result) Preview {
	if res.Empty() {
		return Preview{
			Message: fmt.Sprintf("Aucune information locale n'a été trouvée pour : %s. %s", question, noMatchHint),
		}
	}

	top := res.Segments[0]
	tokens := tokenizer.Tokenize(question)
	preview := Preview{
		Reformulated: fmt.Sprintf("Je suppose que vous recherchez %s.", reformulate.Intent(question)),
		FollowUp:     snippet.GranularityPrompt(top.Segment.Content, tokens),
		SourceURL:    top.AnchoredURL,
	}
	if preview.SourceURL == "" {
		preview.SourceURL = top.URL
	}
	if alignment := snippet.Assess(tokens, top.Excerpt, top.Segment.Content); alignment.Tone != snippet.ToneNeutral {
		preview.Alignment = &alignment
	}
	return preview
}
