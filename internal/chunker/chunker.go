package chunker

import "reqcraft/internal/domain"

// Chunk packs sentences greedily into chunks of at most limit words. A
// sentence that would push the running total past limit starts a new chunk,
// so only a chunk holding a single over-long sentence can exceed the limit.
// No sentences yield one empty chunk.
func Chunk(sentences []domain.Sentence, limit int) []domain.Chunk {
	chunks := []domain.Chunk{{}}
	total := 0

	for _, sentence := range sentences {
		words := sentence.WordCount()
		total += words

		if total > limit && !chunks[len(chunks)-1].Empty() {
			chunks = append(chunks, domain.Chunk{})
			total = words
		}

		last := &chunks[len(chunks)-1]
		last.Sentences = append(last.Sentences, sentence)
		last.Words = total
	}

	return chunks
}

// NonEmpty drops chunks without sentences and keeps the rest in order.
func NonEmpty(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Empty() {
			continue
		}
		out = append(out, c)
	}

	return out
}
