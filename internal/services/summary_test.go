package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummaryGenerator_BuildsStructuredPrompt(t *testing.T) {
	extractor := &fakeExtractor{text: "quantum entanglement in photonic lattices"}
	llm := &fakeLLM{reply: "**Abstract**\n• A finding"}
	gen := NewSummaryGenerator(newTestLogger(t), extractor, llm, 0.3, 1500)

	doc := NewDocument([]byte("raw pdf bytes"), "paper.pdf", MediaTypePDF)
	summary, err := gen.Generate(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, "**Abstract**\n• A finding", summary)

	prompt := llm.lastPrompt()
	for _, heading := range []string{"**Abstract**", "**Introduction**", "**Related Work**", "**Methodology**", "**Experiment**", "**Conclusion**"} {
		require.Contains(t, prompt, heading)
	}
	require.Contains(t, prompt, "quantum entanglement in photonic lattices")

	require.Len(t, llm.opts, 1)
	require.InDelta(t, 0.3, llm.opts[0].Temperature, 1e-9)
	require.Equal(t, 1500, llm.opts[0].MaxTokens)
}

func TestSummaryGenerator_EmptyExtraction(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		extractor := &fakeExtractor{text: text}
		llm := &fakeLLM{reply: "should not be called"}
		gen := NewSummaryGenerator(newTestLogger(t), extractor, llm, 0.3, 1500)

		_, err := gen.Generate(context.Background(), NewDocument([]byte("x"), "empty.pdf", MediaTypePDF))
		var extractionErr *ExtractionError
		require.ErrorAs(t, err, &extractionErr)
		require.Empty(t, llm.prompts, "no generation call for empty text")
	}
}

func TestSummaryGenerator_ExtractionErrorPropagates(t *testing.T) {
	extractor := &fakeExtractor{err: &ExtractionError{Reason: "unsupported file type"}}
	gen := NewSummaryGenerator(newTestLogger(t), extractor, &fakeLLM{}, 0.3, 1500)

	_, err := gen.Generate(context.Background(), NewDocument([]byte("x"), "f.bin", "application/zip"))
	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
}

func TestSummaryGenerator_EmptyCompletion(t *testing.T) {
	extractor := &fakeExtractor{text: "some text"}
	llm := &fakeLLM{reply: "   \n"}
	gen := NewSummaryGenerator(newTestLogger(t), extractor, llm, 0.3, 1500)

	_, err := gen.Generate(context.Background(), NewDocument([]byte("x"), "f.txt", MediaTypeText))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestSummaryGenerator_GenerationErrorPropagates(t *testing.T) {
	extractor := &fakeExtractor{text: "some text"}
	llm := &fakeLLM{err: &GenerationError{Kind: GenerationStatus}}
	gen := NewSummaryGenerator(newTestLogger(t), extractor, llm, 0.3, 1500)

	_, err := gen.Generate(context.Background(), NewDocument([]byte("x"), "f.txt", MediaTypeText))
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, GenerationStatus, genErr.Kind)
}
