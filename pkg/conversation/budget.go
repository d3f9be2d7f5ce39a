package conversation

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// perTurnOverhead approximates the role and separator tokens chat models add
// around every message.
const perTurnOverhead = 4

// TokenCounter counts tokens with the tiktoken encoding of a model.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a counter for model, falling back to cl100k_base
// for models the tokenizer does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return &TokenCounter{codec: c}, nil
		}
		log.Debug().Str("model", model).Err(err).Msg("no tokenizer for model, using cl100k_base")
	}
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not load cl100k_base tokenizer")
	}
	return &TokenCounter{codec: c}, nil
}

func (t *TokenCounter) Count(s string) int {
	ids, _, err := t.codec.Encode(s)
	if err != nil {
		// rough estimate if encoding fails
		return len(s) / 4
	}
	return len(ids)
}

// TrimToTokenBudget drops the oldest turns until the remaining ones fit in
// budget tokens. The latest turn is always kept. A budget <= 0 disables
// trimming.
func (t *TokenCounter) TrimToTokenBudget(turns []Turn, budget int) []Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}

	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n := t.Count(turns[i].Text) + perTurnOverhead
		if total+n > budget && i != len(turns)-1 {
			break
		}
		total += n
		start = i
	}

	if start > 0 {
		log.Debug().Int("dropped", start).Int("kept", len(turns)-start).Int("tokens", total).Msg("trimmed conversation history")
	}
	return turns[start:]
}
