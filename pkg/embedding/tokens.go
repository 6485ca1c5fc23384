package embedding

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// maxEmbeddingTokens is the input limit of the OpenAI embedding models.
const maxEmbeddingTokens = 8191

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// truncateTokens cuts text to at most limit cl100k tokens. Texts with no more
// bytes than limit cannot exceed it and skip the tokenizer.
func truncateTokens(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if encErr != nil {
		// Without the tokenizer assume the worst case of one token per byte.
		return truncateRunes(text, limit)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return enc.Decode(tokens[:limit])
}

func truncateRunes(text string, maxBytes int) string {
	n := 0
	for i := range text {
		if i > maxBytes {
			break
		}
		n = i
	}
	return text[:n]
}
