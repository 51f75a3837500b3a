package segmenter

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"reqcraft/internal/domain"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// tokenizer loads the punkt training data once per process.
//
//nolint:gochecknoglobals // Lazy singleton behind Tokenizer.
var tokenizer = sync.OnceValues(func() (*sentences.DefaultSentenceTokenizer, error) {
	return english.NewSentenceTokenizer(nil)
})

// Tokenizer returns the shared English sentence tokenizer.
func Tokenizer() (*sentences.DefaultSentenceTokenizer, error) {
	return tokenizer()
}

// Segment splits text into lines, then each line on grammatical sentence
// boundaries. Extracted pages put every heading, list item and table cell on
// its own line, so a line break always ends a sentence. Blank sentences are
// dropped, so whitespace-only text yields no sentences.
func Segment(text string) (sentencesOut []domain.Sentence, err error) {
	if !utf8.ValidString(text) {
		return nil, &domain.TextProcessingError{Err: errors.New("text is not valid UTF-8")}
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	t, err := Tokenizer()
	if err != nil {
		return nil, &domain.TextProcessingError{Err: fmt.Errorf("load tokenizer: %w", err)}
	}

	defer func() {
		if r := recover(); r != nil {
			sentencesOut = nil
			err = &domain.TextProcessingError{Err: fmt.Errorf("tokenize: %v", r)}
		}
	}()

	for line := range strings.Lines(text) {
		if strings.TrimSpace(line) == "" {
			continue
		}

		for _, s := range t.Tokenize(line) {
			trimmed := strings.TrimSpace(s.Text)
			if trimmed == "" {
				continue
			}

			sentencesOut = append(sentencesOut, domain.NewSentence(trimmed))
		}
	}

	return sentencesOut, nil
}
