package services

import (
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIClient returns the shared OpenAI-compatible client used by the
// triple extractor. OPENAI_BASE_URL allows pointing it at any compatible
// endpoint.
var DefaultOpenAIClient = sync.OnceValue(func() *openai.Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		panic("OPENAI_API_KEY is not set")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	return openai.NewClientWithConfig(config)
})

// ExtractionModel returns the completion model for triple extraction.
func ExtractionModel() string {
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		return model
	}
	return openai.GPT3Dot5Turbo
}

// HasOpenAICredentials reports whether the LLM extraction path is usable.
func HasOpenAICredentials() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}
