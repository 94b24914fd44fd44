package http

import (
	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/rewrite"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// AnalyzeRequest is the request body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Text       string   `json:"text"`
	ChildNames []string `json:"child_names,omitempty"`
}

// AnalyzeResponse is the response body for POST /api/v1/analyze.
type AnalyzeResponse struct {
	Analysis   analyzer.Analysis `json:"analysis"`
	QuickCheck bool              `json:"quick_check"`
}

// ValidateRequest is the request body for POST /api/v1/validate.
// Text validates a single rewrite; Rewrite1 and Rewrite2 validate a pair.
type ValidateRequest struct {
	Text     string `json:"text,omitempty"`
	Rewrite1 string `json:"rewrite1,omitempty"`
	Rewrite2 string `json:"rewrite2,omitempty"`
}

// ValidateResponse is the response body for POST /api/v1/validate.
type ValidateResponse struct {
	Result       *rewrite.Result             `json:"result,omitempty"`
	Intervention *rewrite.InterventionResult `json:"intervention,omitempty"`
}
