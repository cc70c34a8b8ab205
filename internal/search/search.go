// Package search lets applicants and advisors find answers across a plan
// session, Meilisearch first with Postgres full-text search as fallback.
package search

// Result is a single answer hit.
type Result struct {
	SessionID  string `json:"sessionId"`
	SectionID  string `json:"sectionId"`
	QuestionID string `json:"questionId"`
	Prompt     string `json:"prompt"`
	Snippet    string `json:"snippet"`
}

// Query describes a search request, always scoped to one session.
type Query struct {
	SessionID string
	Text      string
	SectionID string // empty = all sections
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over answers.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// AnswerRecord is the data indexed per answer.
type AnswerRecord struct {
	ID         string `json:"id"` // sessionID:questionID
	SessionID  string `json:"sessionId"`
	SectionID  string `json:"sectionId"`
	QuestionID string `json:"questionId"`
	Prompt     string `json:"prompt"`
	Body       string `json:"body"`
}
