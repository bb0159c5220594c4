package provkg

import (
	"os"

	"github.com/danvers-labs/provkg/ai"
)

// Config holds all configuration for the engine: storage location,
// AI provider credentials, retrieval weights, and resolver/graph knobs.
type Config struct {
	// DatabasePath is the full path to the SQLite store file. Read from
	// DATABASE_PATH when not set explicitly.
	DatabasePath string

	// Chat configures the vendor backing the synthesis layer's narrative,
	// relationship, and cross-document passes.
	Chat ai.VendorConfig

	// Embedding configures the vendor backing chunk embeddings and
	// retrieval's vector arm. May name a different vendor than Chat (a
	// cheaper embedding-only model, a local Ollama instance, etc).
	Embedding ai.VendorConfig

	// Resolver configures the vendor backing the resolver's ai tier
	// (Classify), built by ResolverClassifier. Left empty,
	// ResolverClassifier falls back to Chat and ChatRPS.
	Resolver ai.VendorConfig

	// ChatRPS/EmbeddingRPS/ResolverRPS cap each vendor's requests per
	// second; each provider is wrapped in a token-bucket limiter at this
	// rate with a burst of the same size (rounded down, at least 1). Zero
	// or a negative value falls back to 2 requests per second.
	ChatRPS      float64
	EmbeddingRPS float64
	ResolverRPS  float64

	// MaxRetries bounds the exponential-backoff retries NewFromConfig
	// wraps around every vendor provider for ExternalError failures.
	MaxRetries uint64

	// BreakerFailureThreshold/BreakerOpenSeconds configure the circuit
	// breaker NewFromConfig wraps around every vendor provider.
	BreakerFailureThreshold int
	BreakerOpenSeconds      int

	// ImageOutputDir is where extracted/optimized images are written.
	// Read from IMAGE_OUTPUT_DIR when not set explicitly.
	ImageOutputDir string

	// LogLevel controls the root slog handler's minimum level ("debug",
	// "info", "warn", "error"). Read from LOG_LEVEL when not set
	// explicitly.
	LogLevel string

	// EmbeddingDim must match the configured embedding model's output
	// dimension.
	EmbeddingDim int

	// Retrieval weights for reciprocal rank fusion across the vector,
	// full-text, and graph search arms.
	WeightVector float64
	WeightFTS    float64
	WeightGraph  float64

	// ExpandSynonyms records whether the domain synonym expansion pass on
	// the BM25 retrieval arm is wanted. Engine.Search does not read it;
	// expansion follows each call's retrieval.SearchOptions.ExpandSynonyms.
	ExpandSynonyms bool

	// MaxFuzzyGroupSize mirrors the resolver's fuzzy-tier bucket limit.
	// The engine does not read it; the limit applied is the constant
	// resolver.MaxFuzzyGroupSize (1000).
	MaxFuzzyGroupSize int

	// MaxCooccurrenceEntities mirrors the graph build's co-occurrence cap.
	// The engine does not read it; the cap applied is the constant
	// graph.MaxCooccurrenceEntities (200).
	MaxCooccurrenceEntities int
}

// DefaultConfig returns a Config with sensible defaults, reading common
// environment variables for anything not already set.
func DefaultConfig() Config {
	cfg := Config{
		DatabasePath: envOr("DATABASE_PATH", "provkg.db"),
		Chat: ai.VendorConfig{
			Vendor:  envOr("AI_CHAT_PROVIDER", "gemini"),
			Model:   os.Getenv("AI_CHAT_MODEL"),
			BaseURL: os.Getenv("AI_CHAT_BASE_URL"),
			APIKey:  firstNonEmpty(os.Getenv("AI_CHAT_API_KEY"), os.Getenv("GEMINI_API_KEY")),
		},
		Embedding: ai.VendorConfig{
			Vendor:  envOr("AI_EMBED_PROVIDER", "gemini"),
			Model:   os.Getenv("AI_EMBED_MODEL"),
			BaseURL: os.Getenv("AI_EMBED_BASE_URL"),
			APIKey:  firstNonEmpty(os.Getenv("AI_EMBED_API_KEY"), os.Getenv("GEMINI_API_KEY")),
		},
		ChatRPS:                 2,
		EmbeddingRPS:            5,
		ResolverRPS:             2,
		MaxRetries:              3,
		BreakerFailureThreshold: 5,
		BreakerOpenSeconds:      30,
		ImageOutputDir:          envOr("IMAGE_OUTPUT_DIR", os.TempDir()),
		LogLevel:                envOr("LOG_LEVEL", "info"),
		EmbeddingDim:            768,
		WeightVector:            1.0,
		WeightFTS:               1.0,
		WeightGraph:             0.5,
		ExpandSynonyms:          true,
		MaxFuzzyGroupSize:       1000,
		MaxCooccurrenceEntities: 200,
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
