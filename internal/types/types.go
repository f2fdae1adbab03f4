// Package types holds the request and response bodies of the HTTP API.
package types

import "github.com/ZanzyTHEbar/quizstat/internal/answers"

// AnalyzeRequest carries raw quiz texts, one per respondent. Collated
// documents are posted as text/plain instead.
type AnalyzeRequest struct {
	Respondents []string `json:"respondents" binding:"required,min=1"`
}

// ExtractRequest carries a single respondent's quiz text.
type ExtractRequest struct {
	Text string `json:"text" binding:"required"`
}

// ExtractResponse is one extracted answer vector.
type ExtractResponse struct {
	Answers        []int   `json:"answers"`
	Answered       int     `json:"answered"`
	CompletionRate float64 `json:"completion_rate"`
	Summary        string  `json:"summary"`
}

// NewExtractResponse describes v.
func NewExtractResponse(v answers.Vector) ExtractResponse {
	return ExtractResponse{
		Answers:        v.Slice(),
		Answered:       v.Answered(),
		CompletionRate: v.CompletionRate(),
		Summary:        answers.SummaryLine(v),
	}
}

// HealthResponse is served by GET /health.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   string                 `json:"timestamp"`
	Version     string                 `json:"version"`
	Metrics     map[string]interface{} `json:"metrics"`
	Cache       map[string]interface{} `json:"cache,omitempty"`
	RateLimit   map[string]interface{} `json:"rate_limit"`
	Compression map[string]interface{} `json:"compression"`
}
