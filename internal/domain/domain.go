package domain

import (
	"strings"
	"time"
)

type Sentence struct {
	Text string
}

func NewSentence(text string) Sentence {
	return Sentence{Text: text}
}

// WordCount counts whitespace-separated words.
func (s Sentence) WordCount() int {
	return len(strings.Fields(s.Text))
}

type Chunk struct {
	Sentences []Sentence
	Words     int
}

func (c Chunk) Empty() bool {
	return len(c.Sentences) == 0
}

// Text joins the chunk sentences with a single space.
func (c Chunk) Text() string {
	parts := make([]string, 0, len(c.Sentences))
	for _, s := range c.Sentences {
		parts = append(parts, s.Text)
	}

	return strings.Join(parts, " ")
}

// GenerationParams are sent verbatim with every completion request.
type GenerationParams struct {
	Temperature      float64
	MaxOutputWords   int64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

type CompletionRequest struct {
	Index  int
	Prompt string
	Params GenerationParams
}

type CompletionResult struct {
	Index int
	Text  string
	Err   error
}

func (r CompletionResult) Failed() bool {
	return r.Err != nil
}

type PipelineInput struct {
	ProductDescription string
	UserDescription    string
	Requirements       string
}

type PipelineResult struct {
	Requirements        string
	TestCases           string
	SkippedRequirements []int
	SkippedTestCases    []int
}

type Run struct {
	ID                 string
	ProductDescription string
	UserDescription    string
	Source             string
	TestCases          string
	SkippedChunks      int64
	CreatedAt          time.Time
}
