package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/danvers-labs/provkg/errs"
	"github.com/danvers-labs/provkg/llm"
)

// VendorConfig selects and authenticates a concrete LLM backend. It mirrors
// llm.Config so callers never need to import the llm package directly.
type VendorConfig struct {
	// Vendor names one of: ollama, lmstudio, openrouter, openai, groq,
	// xai, gemini, custom. Empty defaults to "gemini".
	Vendor  string
	Model   string
	BaseURL string
	APIKey  string
}

// NewVendorProvider builds a Provider backed by one of the llm package's
// HTTP clients. VisionProvider / ChatWithImages is deliberately not
// exposed here: image understanding sits behind a separate collaborator
// this engine does not call.
func NewVendorProvider(cfg VendorConfig) (Provider, error) {
	vendor := cfg.Vendor
	if vendor == "" {
		vendor = "gemini"
	}
	inner, err := llm.NewProvider(llm.Config{
		Provider: vendor,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: vendor provider: %w", err)
	}
	return &vendorProvider{inner: inner}, nil
}

// vendorProvider adapts an llm.Provider (one concrete HTTP client per
// vendor) to the ai.Provider interface, adding the Classify operation the
// llm package has no notion of.
type vendorProvider struct {
	inner llm.Provider
}

func (p *vendorProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	resp, err := p.inner.Chat(ctx, llm.ChatRequest{
		Messages:       toLLMMessages(req.Messages),
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: req.ResponseFormat,
	})
	if err != nil {
		return ChatResponse{}, errs.ExternalWrap(err)
	}
	return ChatResponse{
		Content:          resp.Content,
		Model:            resp.Model,
		FinishReason:     resp.FinishReason,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}, nil
}

func (p *vendorProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := p.inner.Embed(ctx, texts)
	if err != nil {
		return nil, errs.ExternalWrap(err)
	}
	return out, nil
}

// classifyResponse is the JSON shape asked of the model for a Classify
// batch: one verdict per pair, aligned by index.
type classifyResponse struct {
	Verdicts []struct {
		Index      int     `json:"index"`
		SameEntity bool    `json:"same_entity"`
		Confidence float64 `json:"confidence"`
	} `json:"verdicts"`
}

// Classify asks the chat model to adjudicate every pair in one round trip,
// in JSON mode, then aligns the response back onto the input order. A pair
// the model omits from its response defaults to not-same at zero
// confidence rather than failing the whole batch.
func (p *vendorProvider) Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	resp, err := p.inner.Chat(ctx, llm.ChatRequest{
		Messages:       []llm.Message{{Role: "user", Content: classifyPrompt(pairs)}},
		Temperature:    0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, errs.ExternalWrap(err)
	}
	var parsed classifyResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		return nil, errs.ExternalWrap(fmt.Errorf("ai: classify: decoding verdicts: %w", err))
	}
	out := make([]ClassifyVerdict, len(pairs))
	for _, v := range parsed.Verdicts {
		if v.Index >= 0 && v.Index < len(out) {
			out[v.Index] = ClassifyVerdict{SameEntity: v.SameEntity, Confidence: v.Confidence}
		}
	}
	return out, nil
}

func classifyPrompt(pairs []ClassifyPair) string {
	var b strings.Builder
	b.WriteString("For each numbered pair below, decide whether A and B name the same real-world entity.\n")
	b.WriteString(`Respond with JSON only: {"verdicts":[{"index":0,"same_entity":true,"confidence":0.9},...]}` + "\n\n")
	for i, pair := range pairs {
		fmt.Fprintf(&b, "%d. A=%q B=%q\n", i, pair.A, pair.B)
	}
	return b.String()
}

func toLLMMessages(msgs []Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// codeBlockRe strips a markdown code fence around a model's JSON response.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := codeBlockRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}
