// Package ai defines the provider boundary the synthesis layer and the
// resolver's ai tier call through, plus the rate limiting, circuit
// breaking, and retry machinery that wrap it. Nothing in this package
// knows which model or vendor is behind Provider.
package ai

import "context"

// Provider is the interface every AI-backed operation calls through.
// Classify adjudicates entity-resolution candidate pairs (resolver's ai
// tier); Chat and Embed back the synthesis layer's narrative, relationship,
// and cross-document passes.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error)
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Messages       []Message
	Temperature    float64
	MaxTokens      int
	ResponseFormat string // "json_object" to request strict JSON mode
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatResponse is a chat completion result.
type ChatResponse struct {
	Content          string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ClassifyPair is one candidate pair the resolver's ai tier wants
// adjudicated.
type ClassifyPair struct {
	A, B string
}

// ClassifyVerdict answers one ClassifyPair, aligned by index.
type ClassifyVerdict struct {
	SameEntity bool
	Confidence float64
}
