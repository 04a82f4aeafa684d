package assistant

import "strings"

// RagSegment is one ranked passage as the backend expects it.
type RagSegment struct {
	Label   string  `json:"label"`
	URL     *string `json:"url"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"excerpt"`
	Content string  `json:"content"`
}

// Turn is one conversation entry sent with the question.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body POSTed to the assistant endpoint.
type Request struct {
	Question           string       `json:"question"`
	NormalizedQuestion string       `json:"normalized_question"`
	RagResults         []RagSegment `json:"rag_results"`
	Conversation       []Turn       `json:"conversation"`
	Instructions       string       `json:"instructions"`
	IntentLabel        string       `json:"intent_label"`
	IntentWeight       float64      `json:"intent_weight"`
}

// Alignment is the backend's own judgement of how well the passages cover
// the question.
type Alignment struct {
	Status  string `json:"status"`
	Label   string `json:"label"`
	Summary string `json:"summary"`
}

// Source is a citation returned by the backend. Older backends send label
// instead of title.
type Source struct {
	Title      string `json:"title,omitempty"`
	Label      string `json:"label,omitempty"`
	URL        string `json:"url,omitempty"`
	Confidence any    `json:"confidence,omitempty"`
}

// Name returns the display name of the source.
func (s Source) Name() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Label != "" {
		return s.Label
	}
	return s.URL
}

// Response is the decoded backend answer.
type Response struct {
	AnswerText       string     `json:"answer_text,omitempty"`
	AnswerHTML       string     `json:"answer_html"`
	FollowUpQuestion string     `json:"follow_up_question,omitempty"`
	Alignment        *Alignment `json:"alignment,omitempty"`
	Sources          []Source   `json:"sources,omitempty"`
}

// HistoryText is what the conversation remembers of this answer.
func (r *Response) HistoryText() string {
	if r.AnswerText != "" {
		return r.AnswerText
	}
	return r.AnswerHTML
}

// StripOpening removes the trailing "Ouverture" section from the HTML
// answer; the follow-up question is offered separately.
func (r *Response) StripOpening() {
	r.AnswerHTML = strings.TrimSpace(openingSection.ReplaceAllString(r.AnswerHTML, ""))
}

// Reply is a successful call with the number of attempts it took.
type Reply struct {
	Response Response
	Attempts int
}
