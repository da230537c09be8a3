// Package tokenizer counts provider tokens for rate budgeting.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter returns the number of provider tokens in a text.
type Counter interface {
	Count(text string) int
}

var loaderOnce sync.Once

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken resolves the encoding for model, falling back to cl100k_base
// for models the table does not know. BPE ranks are loaded from the embedded
// offline copy so counting never touches the network.
func NewTiktoken(model string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Approx estimates one token per whitespace-separated word, used by
// providers without a public tokenizer.
type Approx struct{}

func (Approx) Count(text string) int { return len(strings.Fields(text)) }

// Sum counts the tokens of all texts.
func Sum(c Counter, texts []string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}
