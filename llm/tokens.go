package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates token counts for accounting when the backend
// does not report usage itself.
type tokenCounter interface {
	Count(text string) int
}

// lazyCounter defers tiktoken initialization to first use (the
// encoding data may be fetched on demand) and falls back to the
// character heuristic when no encoding is available.
type lazyCounter struct {
	modelID string
	once    sync.Once
	impl    tokenCounter
}

func newTokenCounter(modelID string) tokenCounter {
	return &lazyCounter{modelID: modelID}
}

func (c *lazyCounter) Count(text string) int {
	c.once.Do(func() {
		if enc, err := tiktoken.EncodingForModel(c.modelID); err == nil {
			c.impl = &tiktokenCounter{enc: enc}
			return
		}
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			c.impl = &tiktokenCounter{enc: enc}
			return
		}
		c.impl = estimatorCounter{}
	})
	return c.impl.Count(text)
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// estimatorCounter approximates tokens as one per four characters for
// ASCII text and one per character otherwise.
type estimatorCounter struct{}

func (estimatorCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	ascii := 0
	other := 0
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			other++
		}
	}
	n := (ascii+3)/4 + other
	if n < 1 {
		n = 1
	}
	return n
}
