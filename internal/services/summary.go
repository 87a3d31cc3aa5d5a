package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/deepchat-backend/internal/logger"
)

const structuredAbstractPrompt = `Please generate a structured academic abstract based on the research content below, strictly following the format requirements:

# Format Specification
1. Use the following six-level heading structure (bolded):
**Abstract**
**Introduction**
**Related Work**
**Methodology**
**Experiment**
**Conclusion**

2. Each section should contain 3-5 bullet points (%s at the beginning), which must:
- Start with a capital letter and have no punctuation at the end
- Include key technical terms
- Highlight innovations and experimental validation

3. Terminology usage guidelines:
- Spell out abbreviations in full when they first appear
- Enclose mathematical symbols with $ ... $

# Research Content Input
%s

Please strictly follow the example terminology guidelines, mathematical symbol formatting, and structural requirements to generate the abstract.`

// SummaryGenerator turns a document into a structured abstract by running
// the injected extraction and generation capabilities. It performs no
// retries and no caching; both belong to the coordinator.
type SummaryGenerator interface {
	Generate(ctx context.Context, doc Document) (string, error)
}

type summaryGenerator struct {
	log         *logger.Logger
	extractor   TextExtractor
	llm         LLMClient
	temperature float64
	maxTokens   int
}

func NewSummaryGenerator(log *logger.Logger, extractor TextExtractor, llm LLMClient, temperature float64, maxTokens int) SummaryGenerator {
	return &summaryGenerator{
		log:         log.With("service", "SummaryGenerator"),
		extractor:   extractor,
		llm:         llm,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (g *summaryGenerator) Generate(ctx context.Context, doc Document) (string, error) {
	text, err := g.extractor.Extract(ctx, doc)
	if err != nil {
		return "", err
	}
	if normalizeWhitespace(text) == "" {
		return "", &ExtractionError{Reason: "no extractable content"}
	}

	prompt := fmt.Sprintf(structuredAbstractPrompt, "•", text)

	completion, err := g.llm.Complete(ctx, prompt, CompletionOptions{
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(completion) == "" {
		return "", &ValidationError{Reason: "empty completion"}
	}

	g.log.Debug("Summary generated", "file_name", doc.FileName, "chars", len(completion))
	return completion, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
